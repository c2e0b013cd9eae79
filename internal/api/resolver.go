// Package api implements the query surface over monitors and entities,
// independent of whatever transport frames it. Resolver is the one type
// consumed by the HTTP handlers in http.go, which cmd/api serves.
package api

import (
	"context"
	"fmt"

	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/database"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/model"
	"github.com/nkust-monitor-iot-project-2024/iot-system/internal/storage"
)

// presignTTLSeconds is fixed at one hour, matching the original storage
// collaborator's EXPIRE_AT constant.
const presignTTLSeconds = 3600

// EntityStore is the persistence surface the resolver needs, narrowed from
// *database.Database so tests can substitute a fake without a live
// connection.
type EntityStore interface {
	ListMonitors(ctx context.Context) ([]model.Monitor, error)
	MonitorExists(ctx context.Context, id string) (bool, error)
	GetEntity(ctx context.Context, id int64) (model.Entity, error)
	EntitiesForMonitor(ctx context.Context, monitorID *string, after, before *int64, first, last *int) (database.Page, error)
}

// Resolver answers the query operations over monitors and entities.
type Resolver struct {
	db    EntityStore
	store storage.Store
}

// New builds a Resolver over db and store.
func New(db EntityStore, store storage.Store) *Resolver {
	return &Resolver{db: db, store: store}
}

// Edge is one entity paired with its opaque cursor (its id, per spec §4.4 —
// the cursor is the numeric id itself, not a wrapped/encoded token).
type Edge struct {
	Cursor int64
	Node   EntityView
}

// Connection is a Relay-style page of entities.
type Connection struct {
	Edges           []Edge
	HasNextPage     bool
	HasPreviousPage bool
}

// EntityView is an entity enriched with its resolved, presigned image URL.
type EntityView struct {
	model.Entity
	ImageURL string
}

// PageArgs mirrors a GraphQL connection's four standard arguments.
type PageArgs struct {
	After, Before *int64
	First, Last   *int
}

// Monitors lists every known monitor, plus the synthetic unattributed
// monitor (nil id) for entities that never named one.
func (r *Resolver) Monitors(ctx context.Context) ([]model.Monitor, error) {
	monitors, err := r.db.ListMonitors(ctx)
	if err != nil {
		return nil, fmt.Errorf("api: list monitors: %w", err)
	}
	return append(monitors, model.Monitor{ID: nil}), nil
}

// Monitor looks up a single monitor by id. A nil id always resolves to the
// unattributed monitor without touching the database.
func (r *Resolver) Monitor(ctx context.Context, id *string) (*model.Monitor, error) {
	if id == nil {
		return &model.Monitor{ID: nil}, nil
	}
	exists, err := r.db.MonitorExists(ctx, *id)
	if err != nil {
		return nil, fmt.Errorf("api: check monitor %s: %w", *id, err)
	}
	if !exists {
		return nil, nil
	}
	return &model.Monitor{ID: id}, nil
}

// Entity looks up a single entity by id, resolving its presigned image URL.
func (r *Resolver) Entity(ctx context.Context, id int64) (*EntityView, error) {
	e, err := r.db.GetEntity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("api: get entity %d: %w", id, err)
	}
	return r.view(ctx, e)
}

// Entities pages through the entities belonging to monitor (a nil Monitor.ID
// selecting the unattributed bucket), per spec §4.4's cursor-connection
// contract.
func (r *Resolver) Entities(ctx context.Context, monitor model.Monitor, args PageArgs) (*Connection, error) {
	page, err := r.db.EntitiesForMonitor(ctx, monitor.ID, args.After, args.Before, args.First, args.Last)
	if err != nil {
		return nil, fmt.Errorf("api: page entities: %w", err)
	}

	conn := &Connection{
		HasNextPage:     page.HasNextPage,
		HasPreviousPage: page.HasPreviousPage,
	}
	for _, e := range page.Entities {
		view, err := r.view(ctx, e)
		if err != nil {
			return nil, err
		}
		conn.Edges = append(conn.Edges, Edge{Cursor: e.ID, Node: *view})
	}
	return conn, nil
}

func (r *Resolver) view(ctx context.Context, e model.Entity) (*EntityView, error) {
	url, err := r.store.PresignGet(ctx, e.ImageID, presignTTLSeconds)
	if err != nil {
		return nil, fmt.Errorf("api: presign image for entity %d: %w", e.ID, err)
	}
	return &EntityView{Entity: e, ImageURL: url}, nil
}
