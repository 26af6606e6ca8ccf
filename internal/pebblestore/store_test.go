package pebblestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"video-mosaic/internal/density"
	"video-mosaic/internal/frames"
	"video-mosaic/internal/layout"
	"video-mosaic/internal/mosaic"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "index")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, dir
}

func record(hash string, created time.Time) mosaic.Record {
	return mosaic.Record{
		Key:       mosaic.Key{ContentHash: hash, Width: 1920, Density: density.M, Strategy: layout.Custom},
		Input:     "/v/" + hash + ".mkv",
		Output:    "/m/" + hash + ".jpg",
		Metadata:  frames.Metadata{Duration: 42, Width: 1280, Height: 720, Codec: "hevc"},
		CreatedAt: created,
	}
}

func TestExistsRecordGet(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()
	ctx := context.Background()
	rec := record("abc", time.Now().UTC())

	if ok, err := s.Exists(ctx, rec.Key); err != nil || ok {
		t.Fatalf("Exists before Record = %v, %v", ok, err)
	}
	if got, err := s.Get(rec.Key); err != nil || got != nil {
		t.Fatalf("Get before Record = %v, %v; want nil, nil", got, err)
	}

	if err := s.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if ok, err := s.Exists(ctx, rec.Key); err != nil || !ok {
		t.Fatalf("Exists after Record = %v, %v", ok, err)
	}

	got, err := s.Get(rec.Key)
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if got.Key != rec.Key || got.Output != rec.Output || got.Metadata.Codec != "hevc" {
		t.Errorf("Get = %+v, want %+v", got, rec)
	}

	other := rec.Key
	other.Strategy = layout.Classic
	if ok, _ := s.Exists(ctx, other); ok {
		t.Error("a different strategy must not match")
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	s, dir := openTestStore(t)
	rec := record("persist", time.Now().UTC())
	if err := s.Record(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if ok, err := s.Exists(context.Background(), rec.Key); err != nil || !ok {
		t.Errorf("Exists after reopen = %v, %v; want true", ok, err)
	}
}

func TestListAndStats(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()
	ctx := context.Background()

	for _, h := range []string{"c", "a", "b"} {
		if err := s.Record(ctx, record(h, time.Now().UTC())); err != nil {
			t.Fatal(err)
		}
	}

	records, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("List returned %d records, want 3", len(records))
	}
	if records[0].Key.ContentHash != "a" || records[2].Key.ContentHash != "c" {
		t.Errorf("List not in key order: %s..%s", records[0].Key.ContentHash, records[2].Key.ContentHash)
	}
	if got := s.GetStats().TotalMosaics; got != 3 {
		t.Errorf("GetStats().TotalMosaics = %d, want 3", got)
	}
}

func TestPrune(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	_ = s.Record(ctx, record("old", now.Add(-48*time.Hour)))
	_ = s.Record(ctx, record("new", now))

	removed, err := s.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("Prune removed %d, want 1", removed)
	}
	if ok, _ := s.Exists(ctx, record("old", now).Key); ok {
		t.Error("old record should be pruned")
	}
	if ok, _ := s.Exists(ctx, record("new", now).Key); !ok {
		t.Error("new record should remain")
	}
}

func TestCancelledContext(t *testing.T) {
	s, _ := openTestStore(t)
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Exists(ctx, record("x", time.Now()).Key); err == nil {
		t.Error("Exists with cancelled context should fail")
	}
	if err := s.Record(ctx, record("x", time.Now())); err == nil {
		t.Error("Record with cancelled context should fail")
	}
}
