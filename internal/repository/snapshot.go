package repository

import (
	"context"
	"errors"

	"filepanel/internal/model"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotRepository persists file-list snapshots so the query cache survives restarts
// and is shared between panel replicas. No cache policy lives here.
type SnapshotRepository interface {
	// Get returns the snapshot stored under key, or ErrSnapshotNotFound.
	Get(ctx context.Context, key string) (*model.Snapshot, error)

	// Save inserts or replaces the snapshot stored under snap.Key.
	Save(ctx context.Context, snap *model.Snapshot) error

	// Delete removes the snapshot stored under key. A missing key is not an error.
	Delete(ctx context.Context, key string) error

	// DeleteAll removes every snapshot and reports how many rows were dropped.
	DeleteAll(ctx context.Context) (int64, error)

	// PingContext checks the store is reachable.
	PingContext(ctx context.Context) error
}
