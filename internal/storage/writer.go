package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/api/option"

	"video-mosaic/internal/filesystem"
	"video-mosaic/internal/logging"
	"video-mosaic/internal/metrics"
)

// Config holds credentials for the cloud backends. Local writes need none.
type Config struct {
	S3Region    string `koanf:"s3_region"`
	S3AccessKey string `koanf:"s3_access_key"`
	S3SecretKey string `koanf:"s3_secret_key"`
	// S3Endpoint targets S3-compatible stores such as MinIO.
	S3Endpoint string `koanf:"s3_endpoint"`
	// GCSCredentialsFile is a service account JSON key. Empty uses
	// application default credentials.
	GCSCredentialsFile string `koanf:"gcs_credentials_file"`

	FileMode os.FileMode `koanf:"-"`
}

// Uploader puts an object into a bucket. It is satisfied by the S3 and GCS
// adapters and by test doubles.
type Uploader interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error
}

// Writer routes encoded mosaics to their target.
type Writer struct {
	cfg   Config
	retry filesystem.RetryConfig

	mu       sync.Mutex
	uploader map[Backend]Uploader
}

// NewWriter returns a Writer. Cloud clients are created on first use.
func NewWriter(cfg Config) *Writer {
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o644
	}
	return &Writer{
		cfg:      cfg,
		retry:    filesystem.DefaultRetryConfig(),
		uploader: make(map[Backend]Uploader),
	}
}

// SetUploader overrides the uploader used for a cloud backend.
func (w *Writer) SetUploader(b Backend, u Uploader) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.uploader[b] = u
}

// Write stores data at the raw target and returns its canonical location.
func (w *Writer) Write(ctx context.Context, raw string, data []byte, contentType string) (string, error) {
	target, err := ParseTarget(raw)
	if err != nil {
		return "", err
	}

	start := time.Now()
	err = w.write(ctx, target, data, contentType)
	metrics.StorageWriteDuration.WithLabelValues(string(target.Backend)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StorageWritesTotal.WithLabelValues(string(target.Backend), "error").Inc()
		return "", err
	}
	metrics.StorageWritesTotal.WithLabelValues(string(target.Backend), "success").Inc()
	logging.Debug("Wrote %d bytes to %s in %v", len(data), target, time.Since(start))
	return target.String(), nil
}

func (w *Writer) write(ctx context.Context, target Target, data []byte, contentType string) error {
	if target.Backend == BackendLocal {
		if err := filesystem.WriteFileAtomic(target.Path, data, w.cfg.FileMode, w.retry); err != nil {
			return fmt.Errorf("write %s: %w", target.Path, err)
		}
		return nil
	}

	up, err := w.uploaderFor(ctx, target.Backend)
	if err != nil {
		return err
	}
	if err := up.Upload(ctx, target.Bucket, target.Key, contentType, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("upload %s: %w", target, err)
	}
	return nil
}

func (w *Writer) uploaderFor(ctx context.Context, b Backend) (Uploader, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if up, ok := w.uploader[b]; ok {
		return up, nil
	}

	var up Uploader
	switch b {
	case BackendS3:
		up = newS3Uploader(w.cfg)
	case BackendGCS:
		g, err := newGCSUploader(ctx, w.cfg)
		if err != nil {
			return nil, err
		}
		up = g
	default:
		return nil, fmt.Errorf("no uploader for backend %q", b)
	}
	w.uploader[b] = up
	return up, nil
}

// Close releases cloud clients.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	for b, up := range w.uploader {
		if c, ok := up.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("close %s client: %w", b, err)
			}
		}
		delete(w.uploader, b)
	}
	return firstErr
}

type s3Uploader struct {
	uploader *manager.Uploader
}

func newS3Uploader(cfg Config) *s3Uploader {
	opts := s3.Options{
		Region: cfg.S3Region,
	}
	if cfg.S3AccessKey != "" {
		opts.Credentials = credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")
	}
	if cfg.S3Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.S3Endpoint)
		opts.UsePathStyle = true
	}
	return &s3Uploader{uploader: manager.NewUploader(s3.New(opts))}
}

func (u *s3Uploader) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s to bucket %s: %w", key, bucket, err)
	}
	logging.Info("Uploaded s3://%s/%s", bucket, key)
	return nil
}

type gcsUploader struct {
	client *gcs.Client
}

func newGCSUploader(ctx context.Context, cfg Config) (*gcsUploader, error) {
	var opts []option.ClientOption
	if cfg.GCSCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
	}
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &gcsUploader{client: client}, nil
}

func (u *gcsUploader) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	wc := u.client.Bucket(bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType

	if _, err := io.Copy(wc, body); err != nil {
		_ = wc.Close()
		return fmt.Errorf("io.Copy: %w", err)
	}
	// The object is committed on Close.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %w", err)
	}
	logging.Info("Uploaded gs://%s/%s", bucket, key)
	return nil
}

func (u *gcsUploader) Close() error {
	return u.client.Close()
}
