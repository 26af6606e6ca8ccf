package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"video-mosaic/internal/density"
	"video-mosaic/internal/layout"
	"video-mosaic/internal/logging"
	"video-mosaic/internal/mosaic"
)

var _ mosaic.Index = (*Database)(nil)

// MosaicEntry is one row of the index as returned by ListMosaics.
type MosaicEntry struct {
	ID          int64           `json:"id"`
	ContentHash string          `json:"contentHash"`
	Width       int             `json:"width"`
	Density     density.Level   `json:"density"`
	Strategy    layout.Strategy `json:"strategy"`
	InputPath   string          `json:"inputPath"`
	OutputPath  string          `json:"outputPath"`
	Duration    float64         `json:"duration"`
	VideoWidth  int             `json:"videoWidth"`
	VideoHeight int             `json:"videoHeight"`
	Codec       string          `json:"codec,omitempty"`
	ThumbCount  int             `json:"thumbCount"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ListOptions pages through ListMosaics. InputPath filters to one video.
type ListOptions struct {
	InputPath string
	Page      int
	PageSize  int
}

// MosaicListing is a page of index entries.
type MosaicListing struct {
	Items      []MosaicEntry `json:"items"`
	TotalItems int           `json:"totalItems"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

// Exists reports whether a mosaic was recorded for key.
func (d *Database) Exists(ctx context.Context, key mosaic.Key) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("mosaic_exists", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var exists bool
	err = d.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM mosaics
			WHERE content_hash = ? AND width = ? AND density = ? AND strategy = ?
		)
	`, key.ContentHash, key.Width, key.Density.String(), key.Strategy.String()).Scan(&exists)
	return exists, err
}

// Record upserts the provenance of a generated mosaic. Regenerating an
// existing key replaces its output path and layout.
func (d *Database) Record(ctx context.Context, rec mosaic.Record) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("record_mosaic", start, err) }()

	layoutJSON, err := json.Marshal(rec.Layout)
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO mosaics (content_hash, width, density, strategy, input_path, output_path,
			duration, video_width, video_height, codec, thumb_count, layout_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash, width, density, strategy) DO UPDATE SET
			input_path = excluded.input_path,
			output_path = excluded.output_path,
			duration = excluded.duration,
			video_width = excluded.video_width,
			video_height = excluded.video_height,
			codec = excluded.codec,
			thumb_count = excluded.thumb_count,
			layout_json = excluded.layout_json,
			created_at = excluded.created_at
	`,
		rec.Key.ContentHash, rec.Key.Width, rec.Key.Density.String(), rec.Key.Strategy.String(),
		rec.Input, rec.Output,
		rec.Metadata.Duration, rec.Metadata.Width, rec.Metadata.Height, rec.Metadata.Codec,
		rec.Layout.ThumbCount, string(layoutJSON), created.Unix(),
	)
	if err != nil {
		return err
	}

	d.refreshTotal(ctx)
	return nil
}

// refreshTotal updates the cached count. Callers hold d.mu.
func (d *Database) refreshTotal(ctx context.Context) {
	var total int
	if err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM mosaics").Scan(&total); err != nil {
		logging.Debug("Failed to refresh mosaic count: %v", err)
		return
	}
	d.statsMu.Lock()
	d.stats.TotalMosaics = total
	d.statsMu.Unlock()
}

// CountMosaics returns the number of recorded mosaics.
func (d *Database) CountMosaics(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_mosaics", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var total int
	err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM mosaics").Scan(&total)
	return total, err
}

// GetLayout returns the stored layout for key, or sql.ErrNoRows.
func (d *Database) GetLayout(ctx context.Context, key mosaic.Key) (layout.Layout, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var raw sql.NullString
	err := d.db.QueryRowContext(ctx, `
		SELECT layout_json FROM mosaics
		WHERE content_hash = ? AND width = ? AND density = ? AND strategy = ?
	`, key.ContentHash, key.Width, key.Density.String(), key.Strategy.String()).Scan(&raw)
	if err != nil {
		return layout.Layout{}, err
	}

	var l layout.Layout
	if raw.Valid && raw.String != "" {
		if err := json.Unmarshal([]byte(raw.String), &l); err != nil {
			return layout.Layout{}, fmt.Errorf("decode layout: %w", err)
		}
	}
	return l, nil
}

// ListMosaics returns index entries, newest first.
func (d *Database) ListMosaics(ctx context.Context, opts ListOptions) (*MosaicListing, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_mosaics", start, err) }()

	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 100
	}
	if opts.PageSize > 500 {
		opts.PageSize = 500
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	where := ""
	args := []interface{}{}
	if opts.InputPath != "" {
		where = "WHERE input_path = ?"
		args = append(args, opts.InputPath)
	}

	var total int
	if err = d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM mosaics "+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	query := `
	SELECT id, content_hash, width, density, strategy, input_path, output_path,
		duration, video_width, video_height, COALESCE(codec, ''), thumb_count, created_at
	FROM mosaics ` + where + `
	ORDER BY created_at DESC, id DESC
	LIMIT ? OFFSET ?`

	rows, err := d.db.QueryContext(ctx, query, append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listing := &MosaicListing{
		Items:      []MosaicEntry{},
		TotalItems: total,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalPages: (total + opts.PageSize - 1) / opts.PageSize,
	}

	for rows.Next() {
		var (
			e                  MosaicEntry
			densityName, strat string
			created            int64
		)
		if err = rows.Scan(&e.ID, &e.ContentHash, &e.Width, &densityName, &strat, &e.InputPath, &e.OutputPath,
			&e.Duration, &e.VideoWidth, &e.VideoHeight, &e.Codec, &e.ThumbCount, &created); err != nil {
			return nil, err
		}
		if e.Density, err = density.Parse(densityName); err != nil {
			return nil, fmt.Errorf("row %d: %w", e.ID, err)
		}
		if e.Strategy, err = layout.ParseStrategy(strat); err != nil {
			return nil, fmt.Errorf("row %d: %w", e.ID, err)
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		listing.Items = append(listing.Items, e)
	}
	err = rows.Err()
	return listing, err
}
