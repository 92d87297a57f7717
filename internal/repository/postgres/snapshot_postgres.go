package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"filepanel/internal/model"
	"filepanel/internal/repository"
)

// SnapshotPostgres is a PostgreSQL implementation of repository.SnapshotRepository.
// Records are stored as a msgpack payload; the row only indexes what the cache needs.
type SnapshotPostgres struct {
	db *sql.DB
}

// NewSnapshotPostgres creates a new SnapshotPostgres repository.
func NewSnapshotPostgres(db *sql.DB) *SnapshotPostgres {
	return &SnapshotPostgres{db: db}
}

var _ repository.SnapshotRepository = (*SnapshotPostgres)(nil)

// Get fetches a snapshot by cache key.
func (r *SnapshotPostgres) Get(ctx context.Context, key string) (*model.Snapshot, error) {
	const q = `
		SELECT cache_key, filter_query, payload, fetched_at
		FROM file_list_snapshots
		WHERE cache_key = $1
	`
	var (
		snap    model.Snapshot
		payload []byte
	)
	err := r.db.QueryRowContext(ctx, q, key).Scan(&snap.Key, &snap.Query, &payload, &snap.FetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrSnapshotNotFound
		}
		return nil, err
	}

	files, err := DecodeFiles(payload)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	snap.Files = files
	return &snap, nil
}

// Save upserts a snapshot keyed by its cache key.
func (r *SnapshotPostgres) Save(ctx context.Context, snap *model.Snapshot) error {
	payload, err := EncodeFiles(snap.Files)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.Key, err)
	}

	const q = `
		INSERT INTO file_list_snapshots (cache_key, filter_query, payload, record_count, fetched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cache_key) DO UPDATE
		SET filter_query = EXCLUDED.filter_query,
		    payload      = EXCLUDED.payload,
		    record_count = EXCLUDED.record_count,
		    fetched_at   = EXCLUDED.fetched_at
	`
	_, err = r.db.ExecContext(ctx, q, snap.Key, snap.Query, payload, len(snap.Files), snap.FetchedAt)
	return err
}

// Delete drops the snapshot stored under key.
func (r *SnapshotPostgres) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM file_list_snapshots WHERE cache_key = $1`
	_, err := r.db.ExecContext(ctx, q, key)
	return err
}

// DeleteAll drops every stored snapshot.
func (r *SnapshotPostgres) DeleteAll(ctx context.Context) (int64, error) {
	const q = `DELETE FROM file_list_snapshots`
	res, err := r.db.ExecContext(ctx, q)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SnapshotPostgres) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// EncodeFiles serializes records with msgpack, reusing their JSON field names.
func EncodeFiles(files []model.FileRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(files); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeFiles is the inverse of EncodeFiles. A nil payload decodes to an empty list.
func DecodeFiles(payload []byte) ([]model.FileRecord, error) {
	files := make([]model.FileRecord, 0)
	if len(payload) == 0 {
		return files, nil
	}
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(&files); err != nil {
		return nil, err
	}
	if files == nil {
		files = make([]model.FileRecord, 0)
	}
	// msgpack restores timestamps in the local zone.
	for i := range files {
		files[i].UploadedAt = files[i].UploadedAt.UTC()
	}
	return files, nil
}
