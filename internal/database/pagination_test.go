package database

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Database{db: db}, mock
}

func entityRows(ids ...int64) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "image_id", "label", "confidence", "monitor_id", "created_at"})
	for _, id := range ids {
		rows.AddRow(id, "img", "person", "0.9000", "A", time.Unix(0, 0))
	}
	return rows
}

// Scenario 3: forward pagination over ids 1..25.
func TestEntitiesForMonitorForwardPagination(t *testing.T) {
	db, mock := newMockDatabase(t)
	monitorID := "A"

	ids := make([]int64, 25)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	mock.ExpectQuery("FROM entities WHERE monitor_id = \\$1 AND id > \\$2").
		WithArgs("A", int64(0), int64(11)).
		WillReturnRows(entityRows(ids[0:11]...))

	first := 10
	page, err := db.EntitiesForMonitor(context.Background(), &monitorID, nil, nil, &first, nil)
	if err != nil {
		t.Fatalf("EntitiesForMonitor: %v", err)
	}
	if len(page.Entities) != 10 || page.Entities[0].ID != 1 || page.Entities[9].ID != 10 {
		t.Fatalf("got ids %v, want 1..10", entityIDs(page))
	}
	if !page.HasNextPage || page.HasPreviousPage {
		t.Fatalf("got hasNext=%v hasPrev=%v, want true/false", page.HasNextPage, page.HasPreviousPage)
	}

	mock.ExpectQuery("FROM entities WHERE monitor_id = \\$1 AND id > \\$2").
		WithArgs("A", int64(10), int64(11)).
		WillReturnRows(entityRows(ids[10:21]...))

	after := int64(10)
	page, err = db.EntitiesForMonitor(context.Background(), &monitorID, &after, nil, &first, nil)
	if err != nil {
		t.Fatalf("EntitiesForMonitor (after=10): %v", err)
	}
	if len(page.Entities) != 10 || page.Entities[0].ID != 11 || page.Entities[9].ID != 20 {
		t.Fatalf("got ids %v, want 11..20", entityIDs(page))
	}
	if !page.HasNextPage || !page.HasPreviousPage {
		t.Fatalf("got hasNext=%v hasPrev=%v, want true/true", page.HasNextPage, page.HasPreviousPage)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// Scenario 4: default backward pagination returns ids 25..16 in descending order.
func TestEntitiesForMonitorBackwardDefault(t *testing.T) {
	db, mock := newMockDatabase(t)
	monitorID := "A"

	descIDs := make([]int64, 11)
	for i := range descIDs {
		descIDs[i] = int64(25 - i) // 25..15
	}

	mock.ExpectQuery("FROM entities WHERE monitor_id = \\$1 AND id < \\$2").
		WithArgs("A", int64(1<<31-1), int64(11)).
		WillReturnRows(entityRows(descIDs...))

	page, err := db.EntitiesForMonitor(context.Background(), &monitorID, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("EntitiesForMonitor: %v", err)
	}
	if len(page.Entities) != 10 {
		t.Fatalf("got %d entities, want 10", len(page.Entities))
	}
	// Descending id order in the returned slice, covering ids 25 down to 16.
	if page.Entities[0].ID != 25 || page.Entities[9].ID != 16 {
		t.Fatalf("got ids %v, want 25..16 descending", entityIDs(page))
	}
	if page.HasPreviousPage || !page.HasNextPage {
		t.Fatalf("got hasPrev=%v hasNext=%v, want false/true", page.HasPreviousPage, page.HasNextPage)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// Scenario 5: the unattributed bucket (nil monitor id) never leaks into a
// named monitor's scan.
func TestEntitiesForMonitorUnattributedBucket(t *testing.T) {
	db, mock := newMockDatabase(t)

	mock.ExpectQuery("FROM entities WHERE monitor_id IS NULL AND id > \\$1").
		WithArgs(int64(0), int64(11)).
		WillReturnRows(entityRows(1))

	first := 10
	page, err := db.EntitiesForMonitor(context.Background(), nil, nil, nil, &first, nil)
	if err != nil {
		t.Fatalf("EntitiesForMonitor: %v", err)
	}
	if len(page.Entities) != 1 {
		t.Fatalf("got %d entities, want 1", len(page.Entities))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// Boundary: first=0 returns an empty page with hasNextPage=false, without
// issuing any query.
func TestEntitiesForMonitorZeroFirst(t *testing.T) {
	db, _ := newMockDatabase(t)
	monitorID := "A"

	first := 0
	page, err := db.EntitiesForMonitor(context.Background(), &monitorID, nil, nil, &first, nil)
	if err != nil {
		t.Fatalf("EntitiesForMonitor: %v", err)
	}
	if len(page.Entities) != 0 || page.HasNextPage {
		t.Fatalf("got %+v, want empty page with hasNextPage=false", page)
	}
}

func entityIDs(page Page) []int64 {
	out := make([]int64, len(page.Entities))
	for i, e := range page.Entities {
		out[i] = e.ID
	}
	return out
}
