package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"video-mosaic/internal/logging"
)

const unknownVolume = "unknown"

// VolumeResolver labels paths with the name of the configured directory
// that contains them, choosing the longest matching prefix.
type VolumeResolver struct {
	mounts []mount
}

type mount struct {
	prefix string // absolute, with a trailing slash
	name   string
}

// NewVolumeResolver builds a resolver from volume name to directory, e.g.
// {"media": "/videos", "output": "/mosaics"}. Empty directories are ignored.
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	vr := &VolumeResolver{}
	for name, dir := range volumes {
		if dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
		vr.mounts = append(vr.mounts, mount{prefix: strings.TrimSuffix(dir, "/") + "/", name: name})
	}
	slices.SortFunc(vr.mounts, func(a, b mount) int { return len(b.prefix) - len(a.prefix) })
	return vr
}

// Resolve returns the volume containing path, or "unknown". A nil resolver
// resolves everything to "unknown".
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return unknownVolume
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return unknownVolume
	}
	abs += "/"
	for _, m := range vr.mounts {
		if strings.HasPrefix(abs, m.prefix) {
			return m.name
		}
	}
	return unknownVolume
}

var defaultResolver *VolumeResolver

// SetDefaultVolumeResolver sets the resolver used when a RetryConfig has
// none of its own.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver = vr
}

// RetryConfig bounds the retries of one operation.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver overrides the package default for metric labels.
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig retries three times, backing off 50ms, 100ms, 200ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c *RetryConfig) resolveVolume(path string) string {
	if c.VolumeResolver != nil {
		return c.VolumeResolver.Resolve(path)
	}
	return defaultResolver.Resolve(path)
}

// isStale reports whether err is, or wraps, ESTALE.
func isStale(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ESTALE
}

// withRetry calls fn until it succeeds, fails with anything but ESTALE, or
// has been retried config.MaxRetries times.
func withRetry[T any](op, path string, config RetryConfig, fn func() (T, error)) (T, error) {
	ev := RetryEvent{Op: op, Volume: config.resolveVolume(path)}
	start := time.Now()
	defer func() {
		ev.Outcome, ev.Elapsed = RetryFinished, time.Since(start)
		notify(ev)
	}()
	emit := func(o RetryOutcome) {
		ev.Outcome = o
		notify(ev)
	}

	backoff := config.InitialBackoff
	for attempt := 0; ; attempt++ {
		v, err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("NFS %s of %s recovered on retry %d", op, path, attempt)
				emit(RetryRecovered)
			}
			return v, nil
		}
		if !isStale(err) {
			var zero T
			return zero, err
		}
		emit(RetryStale)

		if attempt >= config.MaxRetries {
			logging.Warn("NFS %s of %s still stale after %d retries: %v", op, path, config.MaxRetries, err)
			emit(RetryExhausted)
			var zero T
			return zero, err
		}

		emit(RetryScheduled)
		logging.Debug("NFS %s of %s hit a stale handle, retry %d/%d in %v", op, path, attempt+1, config.MaxRetries, backoff)
		time.Sleep(backoff)
		backoff = min(backoff*2, config.MaxBackoff)
	}
}

// StatWithRetry is os.Stat retried on stale NFS handles.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	return withRetry("stat", path, config, func() (os.FileInfo, error) { return os.Stat(path) })
}

// OpenWithRetry is os.Open retried on stale NFS handles.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	return withRetry("open", path, config, func() (*os.File, error) { return os.Open(path) })
}

// ReadDirWithRetry is os.ReadDir retried on stale NFS handles.
func ReadDirWithRetry(path string, config RetryConfig) ([]os.DirEntry, error) {
	return withRetry("readdir", path, config, func() ([]os.DirEntry, error) { return os.ReadDir(path) })
}

// WriteFileAtomic writes data to a temporary file beside path and renames it
// into place, creating parent directories first. Readers never see a
// partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode, config RetryConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	_, err := withRetry("write", path, config, func() (struct{}, error) {
		return struct{}{}, replaceFile(dir, path, data, perm)
	})
	return err
}

func replaceFile(dir, path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
