package discovery

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"video-mosaic/internal/density"
	"video-mosaic/internal/filesystem"
	"video-mosaic/internal/logging"
	"video-mosaic/internal/mosaic"
)

// Options controls a directory scan.
type Options struct {
	Recursive bool
	// IncludeHidden also visits dot files and dot directories.
	IncludeHidden bool
	Retry         filesystem.RetryConfig
}

// DefaultOptions scans recursively and skips hidden entries.
func DefaultOptions() Options {
	return Options{
		Recursive: true,
		Retry:     filesystem.DefaultRetryConfig(),
	}
}

// Find expands roots into a sorted, de-duplicated list of video files.
// Files are returned as given when they have a video extension; a file
// root with any other extension is an error because the caller named it
// explicitly. Unreadable subdirectories are logged and skipped.
func Find(ctx context.Context, roots []string, opts Options) ([]string, error) {
	seen := make(map[string]bool)
	var found []string

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			found = append(found, p)
		}
	}

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
		}

		info, err := filesystem.StatWithRetry(abs, opts.Retry)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", root, err)
		}

		if !info.IsDir() {
			if !IsVideo(abs) {
				return nil, fmt.Errorf("%s is not a supported video file", root)
			}
			add(abs)
			continue
		}

		if err := walk(ctx, abs, opts, add); err != nil {
			return nil, err
		}
	}

	sort.Strings(found)
	return found, nil
}

func walk(ctx context.Context, dir string, opts Options, add func(string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := filesystem.ReadDirWithRetry(dir, opts.Retry)
	if err != nil {
		logging.Warn("Error reading directory %s: %v", dir, err)
		return nil
	}

	for _, entry := range entries {
		if !opts.IncludeHidden && isHidden(entry.Name()) {
			continue
		}

		full := filepath.Join(dir, entry.Name())
		switch {
		case entry.IsDir():
			if opts.Recursive {
				if err := walk(ctx, full, opts, add); err != nil {
					return err
				}
			}
		case entry.Type()&os.ModeSymlink != 0:
			// Follow links to files only; linked directories can form cycles.
			if info, err := os.Stat(full); err == nil && !info.IsDir() && IsVideo(full) {
				add(full)
			}
		case entry.Type().IsRegular() && IsVideo(full):
			add(full)
		}
	}
	return nil
}

// OutputName returns the file name used for a mosaic of input.
func OutputName(input string, width int, level density.Level, ext string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s-%d-%s.%s", stem, width, level, ext)
}

// OutputPath places the mosaic for input under outputRoot. An empty root
// writes next to the input; a URL root joins the name as an object key.
func OutputPath(input, outputRoot string, width int, level density.Level, ext string) string {
	name := OutputName(input, width, level, ext)
	switch {
	case outputRoot == "":
		return filepath.Join(filepath.Dir(input), name)
	case strings.Contains(outputRoot, "://"):
		scheme, rest, _ := strings.Cut(outputRoot, "://")
		return scheme + "://" + path.Join(rest, name)
	default:
		return filepath.Join(outputRoot, name)
	}
}

// Jobs builds one request per input from template, deriving each output
// path with OutputPath. Template fields other than Input, Output and ID are
// copied unchanged.
func Jobs(inputs []string, template mosaic.JobRequest, outputRoot, ext string) []mosaic.JobRequest {
	jobs := make([]mosaic.JobRequest, 0, len(inputs))
	for _, in := range inputs {
		req := template
		req.ID = ""
		req.Input = in
		req.Output = OutputPath(in, outputRoot, req.Width, req.Density, ext)
		jobs = append(jobs, req)
	}
	return jobs
}
