package discovery

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"video-mosaic/internal/density"
	"video-mosaic/internal/layout"
	"video-mosaic/internal/mosaic"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestIsVideo(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.mp4", true},
		{"A.MKV", true},
		{"clip.webm", true},
		{"photo.jpg", false},
		{"notes.txt", false},
		{"noext", false},
	}
	for _, tt := range tests {
		if got := IsVideo(tt.path); got != tt.want {
			t.Errorf("IsVideo(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.mp4"))
	touch(t, filepath.Join(root, "a.mov"))
	touch(t, filepath.Join(root, "cover.jpg"))
	touch(t, filepath.Join(root, ".hidden.mp4"))
	touch(t, filepath.Join(root, ".cache", "x.mp4"))
	touch(t, filepath.Join(root, "season1", "e01.mkv"))

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "recursive",
			opts: DefaultOptions(),
			want: []string{"a.mov", "b.mp4", "season1/e01.mkv"},
		},
		{
			name: "top level only",
			opts: Options{Recursive: false},
			want: []string{"a.mov", "b.mp4"},
		},
		{
			name: "hidden included",
			opts: Options{Recursive: true, IncludeHidden: true},
			want: []string{".cache/x.mp4", ".hidden.mp4", "a.mov", "b.mp4", "season1/e01.mkv"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Find(context.Background(), []string{root}, tt.opts)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			want := make([]string, len(tt.want))
			for i, rel := range tt.want {
				want[i] = filepath.Join(root, filepath.FromSlash(rel))
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("Find() = %v, want %v", got, want)
			}
		})
	}
}

func TestFindDeduplicatesRoots(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.mp4")
	touch(t, file)

	got, err := Find(context.Background(), []string{root, file, file}, DefaultOptions())
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if len(got) != 1 || got[0] != file {
		t.Errorf("Find() = %v, want [%s]", got, file)
	}
}

func TestFindErrors(t *testing.T) {
	root := t.TempDir()
	doc := filepath.Join(root, "readme.txt")
	touch(t, doc)

	if _, err := Find(context.Background(), []string{filepath.Join(root, "missing")}, DefaultOptions()); err == nil {
		t.Error("expected error for a missing root")
	}
	if _, err := Find(context.Background(), []string{doc}, DefaultOptions()); err == nil {
		t.Error("expected error for an explicit non-video file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Find(ctx, []string{root}, DefaultOptions()); err == nil {
		t.Error("expected error for a cancelled context")
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name string
		root string
		want string
	}{
		{"next to input", "", "/media/show/ep1-1920-M.jpg"},
		{"local root", "/out", "/out/ep1-1920-M.jpg"},
		{"s3 root", "s3://bucket/mosaics", "s3://bucket/mosaics/ep1-1920-M.jpg"},
		{"gcs root with slash", "gs://bucket/", "gs://bucket/ep1-1920-M.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutputPath("/media/show/ep1.mp4", tt.root, 1920, density.M, ".jpg")
			if got != filepath.FromSlash(tt.want) && got != tt.want {
				t.Errorf("OutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJobs(t *testing.T) {
	template := mosaic.JobRequest{
		ID:        "ignored",
		Width:     1280,
		Density:   density.XL,
		Strategy:  layout.Custom,
		Overwrite: true,
	}
	jobs := Jobs([]string{"/m/a.mp4", "/m/b.mkv"}, template, "/out", "png")

	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	for i, want := range []string{"/out/a-1280-XL.png", "/out/b-1280-XL.png"} {
		job := jobs[i]
		if job.Output != filepath.FromSlash(want) {
			t.Errorf("jobs[%d].Output = %q, want %q", i, job.Output, want)
		}
		if job.ID != "" {
			t.Errorf("jobs[%d].ID = %q, want empty", i, job.ID)
		}
		if job.Strategy != layout.Custom || !job.Overwrite || job.Width != 1280 {
			t.Errorf("jobs[%d] lost template fields: %+v", i, job)
		}
	}
}
