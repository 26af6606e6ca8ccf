// Package frames reads video metadata and decodes single frames.
//
// The Source interface is the only thing the rest of the engine depends on.
// FFmpeg implements it by shelling out to ffprobe and ffmpeg, piping each
// decoded frame back as an image so no temporary files are written.
package frames
