package database

import (
	"context"
	"fmt"
	"math"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
)

// Page is one cursor-connection page of entities, per spec §4.4.
type Page struct {
	Entities        []model.Entity
	HasNextPage     bool
	HasPreviousPage bool
}

// EntitiesForMonitor pages through the entities belonging to monitorID (nil
// meaning the unattributed bucket). Exactly one of first/last should be
// non-nil; if both are nil, last defaults to 10, matching spec §4.4's table.
func (d *Database) EntitiesForMonitor(ctx context.Context, monitorID *string, after, before *int64, first, last *int) (Page, error) {
	if first != nil {
		return d.forwardPage(ctx, monitorID, after, *first)
	}

	k := 10
	if last != nil {
		k = *last
	}
	return d.backwardPage(ctx, monitorID, before, k)
}

func (d *Database) forwardPage(ctx context.Context, monitorID *string, after *int64, first int) (Page, error) {
	afterID := int64(0)
	if after != nil {
		afterID = *after
	}

	if first <= 0 {
		return Page{HasPreviousPage: afterID > 0}, nil
	}

	var (
		rows []model.Entity
		err  error
	)
	if monitorID != nil {
		rows, err = d.scan(ctx,
			`SELECT id, image_id, label, confidence, monitor_id, created_at
			 FROM entities WHERE monitor_id = $1 AND id > $2 ORDER BY id ASC LIMIT $3`,
			*monitorID, afterID, int64(first)+1)
	} else {
		rows, err = d.scan(ctx,
			`SELECT id, image_id, label, confidence, monitor_id, created_at
			 FROM entities WHERE monitor_id IS NULL AND id > $1 ORDER BY id ASC LIMIT $2`,
			afterID, int64(first)+1)
	}
	if err != nil {
		return Page{}, err
	}

	rows, hasNext := truncate(rows, first)

	return Page{
		Entities:        rows,
		HasNextPage:     hasNext,
		HasPreviousPage: afterID > 0,
	}, nil
}

func (d *Database) backwardPage(ctx context.Context, monitorID *string, before *int64, last int) (Page, error) {
	beforeID := int64(math.MaxInt32)
	if before != nil {
		beforeID = *before
	}

	if last <= 0 {
		return Page{HasPreviousPage: beforeID < math.MaxInt32}, nil
	}

	var (
		rows []model.Entity
		err  error
	)
	if monitorID != nil {
		rows, err = d.scan(ctx,
			`SELECT id, image_id, label, confidence, monitor_id, created_at
			 FROM entities WHERE monitor_id = $1 AND id < $2 ORDER BY id DESC LIMIT $3`,
			*monitorID, beforeID, int64(last)+1)
	} else {
		rows, err = d.scan(ctx,
			`SELECT id, image_id, label, confidence, monitor_id, created_at
			 FROM entities WHERE monitor_id IS NULL AND id < $1 ORDER BY id DESC LIMIT $2`,
			beforeID, int64(last)+1)
	}
	if err != nil {
		return Page{}, err
	}

	rows, hasNext := truncate(rows, last)
	// Results arrive newest-first from the DESC scan and are returned that
	// way: a backward/default page is descending by id, matching the
	// original reference's query.rs, which never reverses the DESC fetch.

	return Page{
		Entities:        rows,
		HasNextPage:     hasNext,
		HasPreviousPage: beforeID < math.MaxInt32,
	}, nil
}

func (d *Database) scan(ctx context.Context, query string, args ...any) ([]model.Entity, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database: query entities: %w", err)
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		var e model.Entity
		if err := rows.Scan(&e.ID, &e.ImageID, &e.Label, &e.Confidence, &e.MonitorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("database: scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// truncate implements the over-fetch-by-1 trick (spec §9): rows was fetched
// with LIMIT limit+1, so its length alone tells us whether another page
// exists, without a second COUNT query.
func truncate(rows []model.Entity, limit int) ([]model.Entity, bool) {
	if limit < 0 {
		limit = 0
	}
	hasMore := len(rows) > limit
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, hasMore
}
