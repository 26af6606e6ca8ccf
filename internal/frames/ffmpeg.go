package frames

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"os/exec"
	"strconv"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"video-mosaic/internal/logging"
)

// Pipe codecs understood by DecodeFrame.
const (
	PipeCodecPNG = "png"
	PipeCodecBMP = "bmp"
)

// ErrNoVideoStream is returned for files without a video stream.
var ErrNoVideoStream = errors.New("no video stream")

// FFmpeg implements Source with the ffprobe and ffmpeg binaries.
type FFmpeg struct {
	FFprobePath string
	FFmpegPath  string
	// PipeCodec selects the image format ffmpeg writes to stdout. BMP skips
	// compression and is faster for large frames.
	PipeCodec string
}

// NewFFmpeg returns an FFmpeg source using binaries found on PATH.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{
		FFprobePath: "ffprobe",
		FFmpegPath:  "ffmpeg",
		PipeCodec:   PipeCodecPNG,
	}
}

// Available reports whether both binaries can be found.
func (f *FFmpeg) Available() error {
	if _, err := exec.LookPath(f.ffprobe()); err != nil {
		return fmt.Errorf("ffprobe not found: %w", err)
	}
	if _, err := exec.LookPath(f.ffmpeg()); err != nil {
		return fmt.Errorf("ffmpeg not found: %w", err)
	}
	return nil
}

func (f *FFmpeg) ffprobe() string {
	if f.FFprobePath == "" {
		return "ffprobe"
	}
	return f.FFprobePath
}

func (f *FFmpeg) ffmpeg() string {
	if f.FFmpegPath == "" {
		return "ffmpeg"
	}
	return f.FFmpegPath
}

func (f *FFmpeg) pipeCodec() string {
	switch f.PipeCodec {
	case PipeCodecBMP:
		return PipeCodecBMP
	default:
		return PipeCodecPNG
	}
}

type ffprobeOutput struct {
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		CodecType string            `json:"codec_type"`
		CodecName string            `json:"codec_name"`
		Width     int               `json:"width"`
		Height    int               `json:"height"`
		Duration  string            `json:"duration"`
		Tags      map[string]string `json:"tags"`
	} `json:"streams"`
}

// LoadMetadata runs ffprobe and reads the first video stream.
func (f *FFmpeg) LoadMetadata(ctx context.Context, path string) (Metadata, error) {
	cmd := exec.CommandContext(ctx, f.ffprobe(),
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Metadata{}, ctx.Err()
		}
		return Metadata{}, &MetadataError{Path: path, Err: fmt.Errorf("ffprobe: %w - %s", err, strings.TrimSpace(stderr.String()))}
	}

	meta, err := parseFFprobe(stdout.Bytes(), path)
	if err != nil {
		return Metadata{}, &MetadataError{Path: path, Err: err}
	}
	logging.Debug("Read %s: %s %s %.2fs", path, meta.Codec, meta.Resolution(), meta.Duration)
	return meta, nil
}

func parseFFprobe(data []byte, path string) (Metadata, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Metadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	meta := Metadata{SourcePath: path}
	found := false
	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		// Attached cover art shows up as a one-frame video stream.
		if s.CodecName == "mjpeg" || s.CodecName == "png" {
			if !found {
				meta.Codec = s.CodecName
				meta.Width, meta.Height = s.Width, s.Height
			}
			continue
		}
		meta.Codec = s.CodecName
		meta.Width, meta.Height = s.Width, s.Height
		if rotated(s.Tags["rotate"]) {
			meta.Width, meta.Height = meta.Height, meta.Width
		}
		if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
			meta.Duration = d
		}
		if t, ok := parseCreation(s.Tags); ok {
			meta.CreationDate = &t
		}
		found = true
		break
	}
	if meta.Codec == "" {
		return Metadata{}, ErrNoVideoStream
	}

	// The container duration is authoritative when present.
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil && d > 0 {
		meta.Duration = d
	}
	if meta.CreationDate == nil {
		if t, ok := parseCreation(out.Format.Tags); ok {
			meta.CreationDate = &t
		}
	}
	return meta, nil
}

func rotated(tag string) bool {
	deg, err := strconv.Atoi(strings.TrimSpace(tag))
	if err != nil {
		return false
	}
	deg = ((deg % 360) + 360) % 360
	return deg == 90 || deg == 270
}

func parseCreation(tags map[string]string) (time.Time, bool) {
	for _, key := range []string{"creation_time", "com.apple.quicktime.creationdate"} {
		v, ok := tags[key]
		if !ok || v == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05-0700", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// DecodeFrame extracts the frame at ts seconds. Seeks past the last
// keyframe sometimes yield no output, so a failed seek is retried from the
// first frame.
func (f *FFmpeg) DecodeFrame(ctx context.Context, path string, ts float64) (image.Image, error) {
	if ts < 0 {
		ts = 0
	}
	codec := f.pipeCodec()
	seek := []string{"-ss", strconv.FormatFloat(ts, 'f', 3, 64)}
	tail := []string{"-i", path, "-frames:v", "1", "-f", "image2pipe", "-vcodec", codec, "-"}

	out, err := f.runFFmpeg(ctx, append(seek, tail...))
	if err != nil || len(out) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logging.Debug("FFmpeg seek to %.3fs failed for %s: %v, retrying without seek", ts, path, err)
		out, err = f.runFFmpeg(ctx, tail)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &DecodeError{Path: path, Timestamp: ts, Err: err}
		}
	}
	if len(out) == 0 {
		return nil, &DecodeError{Path: path, Timestamp: ts, Err: errors.New("ffmpeg produced no output")}
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, &DecodeError{Path: path, Timestamp: ts, Err: fmt.Errorf("decode ffmpeg output: %w", err)}
	}
	return img, nil
}

func (f *FFmpeg) runFFmpeg(ctx context.Context, args []string) ([]byte, error) {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-nostdin"}, args...)
	cmd := exec.CommandContext(ctx, f.ffmpeg(), full...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
