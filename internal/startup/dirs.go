package startup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"video-mosaic/internal/logging"
)

// ensureDir makes sure path is a directory, creating it and its parents
// when missing.
func ensureDir(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		logging.Debug("    created %s", path)
		return nil
	case err != nil:
		return fmt.Errorf("stat %s: %w", path, err)
	case !info.IsDir():
		return fmt.Errorf("%s exists but is not a directory", path)
	}
	return nil
}

// checkWritable creates and removes a temp file in dir.
func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".mosaic-write-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		logging.Warn("Could not remove %s: %v", name, err)
	}
	return nil
}

// optionalDir prepares a directory whose absence only disables a feature.
// It reports whether the directory is usable.
func optionalDir(path, feature string) bool {
	err := ensureDir(path)
	if err == nil {
		err = checkWritable(path)
	}
	if err != nil {
		logging.Warn("  %s directory unusable, %s disabled: %v", feature, feature, err)
		return false
	}
	logging.Debug("  [OK] %s directory ready: %s", feature, path)
	return true
}

// binaryVersion resolves bin on PATH and returns the first line it prints
// for -version, which is how ffmpeg and ffprobe identify their build.
func binaryVersion(bin string) (string, error) {
	path, err := exec.LookPath(bin)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", bin)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", path, err)
	}
	first, _, _ := bytes.Cut(out, []byte("\n"))
	return string(bytes.TrimSpace(first)), nil
}
