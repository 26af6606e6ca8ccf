package output

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is an output image format.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatHEIF Format = "heif"
	FormatAVIF Format = "avif"
)

var extFormats = map[string]Format{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".webp": FormatWebP,
	".heic": FormatHEIF,
	".heif": FormatHEIF,
	".avif": FormatAVIF,
}

// FormatFromPath picks the format from the file extension of path, which
// may also be an s3:// or gs:// URL.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := extFormats[ext]; ok {
		return f, nil
	}
	return "", fmt.Errorf("unsupported output extension %q", ext)
}

// Extension returns the canonical file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatHEIF:
		return ".heic"
	default:
		return "." + string(f)
	}
}

// ContentType returns the MIME type used when uploading.
func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatHEIF:
		return "image/heic"
	case FormatAVIF:
		return "image/avif"
	default:
		return "application/octet-stream"
	}
}

// NeedsVips reports whether the format is encoded through libvips.
func (f Format) NeedsVips() bool {
	return f == FormatWebP || f == FormatHEIF || f == FormatAVIF
}
