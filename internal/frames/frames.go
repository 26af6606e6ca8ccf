package frames

import (
	"context"
	"fmt"
	"image"
	"time"
)

// Metadata is an immutable snapshot of the properties of a video file.
type Metadata struct {
	Duration     float64    `json:"duration"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	Codec        string     `json:"codec"`
	CreationDate *time.Time `json:"creationDate,omitempty"`
	SourcePath   string     `json:"sourcePath"`
}

// Aspect returns width/height, or 0 when either dimension is unknown.
func (m Metadata) Aspect() float64 {
	if m.Width <= 0 || m.Height <= 0 {
		return 0
	}
	return float64(m.Width) / float64(m.Height)
}

// Resolution returns the video size formatted as WxH.
func (m Metadata) Resolution() string {
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}

// Source provides metadata and decoded frames for a video path.
type Source interface {
	LoadMetadata(ctx context.Context, path string) (Metadata, error)
	DecodeFrame(ctx context.Context, path string, ts float64) (image.Image, error)
}

// DecodeError reports a frame that could not be decoded.
type DecodeError struct {
	Path      string
	Timestamp float64
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame at %.3fs of %s: %v", e.Timestamp, e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// MetadataError reports a file whose metadata could not be read.
type MetadataError struct {
	Path string
	Err  error
}

func (e *MetadataError) Error() string {
	return fmt.Sprintf("read metadata of %s: %v", e.Path, e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}
