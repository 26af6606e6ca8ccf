// Package output encodes finished mosaics.
//
// JPEG and PNG are encoded in-process with imaging. WebP, HEIF and AVIF
// are handed to libvips through govips, which must be started once with
// InitVips; without it those formats fail with ErrVipsUnavailable.
package output
