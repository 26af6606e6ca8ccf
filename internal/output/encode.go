package output

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

// ErrVipsUnavailable is returned for vips formats when libvips was not
// initialized.
var ErrVipsUnavailable = errors.New("libvips not available")

// DefaultQuality is used when an Encoder has no quality set.
const DefaultQuality = 85

// Encoder turns an image into bytes of a given format.
type Encoder struct {
	// Quality applies to lossy formats (1-100).
	Quality int
}

// NewEncoder returns an Encoder with the given quality, clamped to 1-100.
func NewEncoder(quality int) *Encoder {
	if quality <= 0 {
		quality = DefaultQuality
	}
	return &Encoder{Quality: min(quality, 100)}
}

func (e *Encoder) quality() int {
	if e == nil || e.Quality <= 0 {
		return DefaultQuality
	}
	return min(e.Quality, 100)
}

// Encode encodes img in the given format.
func (e *Encoder) Encode(img image.Image, format Format) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.quality())); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), nil
	case FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.DefaultCompression)); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), nil
	case FormatWebP, FormatHEIF, FormatAVIF:
		return e.encodeVips(img, format)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// encodeVips hands the image to libvips through a lossless PNG buffer.
func (e *Encoder) encodeVips(img image.Image, format Format) ([]byte, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("encode %s: %w", format, ErrVipsUnavailable)
	}

	var src bytes.Buffer
	// Compression is wasted on a buffer that is decoded immediately.
	if err := imaging.Encode(&src, img, imaging.PNG, imaging.PNGCompressionLevel(png.NoCompression)); err != nil {
		return nil, fmt.Errorf("encode %s: stage png: %w", format, err)
	}

	ref, err := vips.NewImageFromBuffer(src.Bytes())
	if err != nil {
		return nil, fmt.Errorf("encode %s: load into vips: %w", format, err)
	}
	defer ref.Close()

	q := e.quality()
	var out []byte
	switch format {
	case FormatWebP:
		params := vips.NewWebpExportParams()
		params.Quality = q
		out, _, err = ref.ExportWebp(params)
	case FormatHEIF:
		params := vips.NewHeifExportParams()
		params.Quality = q
		out, _, err = ref.ExportHeif(params)
	case FormatAVIF:
		params := vips.NewAvifExportParams()
		params.Quality = q
		out, _, err = ref.ExportAvif(params)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return out, nil
}
