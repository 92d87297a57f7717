package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"filepanel/internal/model"
	"filepanel/internal/repository"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFiles() []model.FileRecord {
	return []model.FileRecord{
		{
			ID:               "1",
			OriginalFilename: "a.pdf",
			FileType:         "pdf",
			Size:             2048,
			UploadedAt:       time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
			File:             "/media/a.pdf",
			FileHash:         "abc",
		},
		{
			ID:               "2",
			OriginalFilename: "b.png",
			FileType:         "image",
			Size:             512,
			UploadedAt:       time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC),
			File:             "s3://uploads/b.png",
		},
	}
}

func TestEncodeDecodeFiles(t *testing.T) {
	payload, err := EncodeFiles(sampleFiles())
	require.NoError(t, err)

	files, err := DecodeFiles(payload)
	require.NoError(t, err)
	assert.Equal(t, sampleFiles(), files)

	empty, err := DecodeFiles(nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = DecodeFiles([]byte{0xc1})
	assert.Error(t, err)
}

func TestSnapshotPostgres_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewSnapshotPostgres(db)
	ctx := context.Background()
	fetched := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		payload, err := EncodeFiles(sampleFiles())
		require.NoError(t, err)

		rows := sqlmock.NewRows([]string{"cache_key", "filter_query", "payload", "fetched_at"}).
			AddRow("files:k", "fileType=pdf", payload, fetched)
		mock.ExpectQuery("SELECT (.+) FROM file_list_snapshots WHERE cache_key = ?").
			WithArgs("files:k").
			WillReturnRows(rows)

		snap, err := repo.Get(ctx, "files:k")

		require.NoError(t, err)
		assert.Equal(t, "files:k", snap.Key)
		assert.Equal(t, "fileType=pdf", snap.Query)
		assert.Equal(t, fetched, snap.FetchedAt)
		assert.Equal(t, sampleFiles(), snap.Files)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM file_list_snapshots WHERE cache_key = ?").
			WithArgs("files:missing").
			WillReturnRows(sqlmock.NewRows([]string{"cache_key", "filter_query", "payload", "fetched_at"}))

		snap, err := repo.Get(ctx, "files:missing")

		assert.Nil(t, snap)
		assert.ErrorIs(t, err, repository.ErrSnapshotNotFound)
	})

	t.Run("corrupt payload", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"cache_key", "filter_query", "payload", "fetched_at"}).
			AddRow("files:bad", "", []byte{0xc1}, fetched)
		mock.ExpectQuery("SELECT (.+) FROM file_list_snapshots").
			WithArgs("files:bad").
			WillReturnRows(rows)

		_, err := repo.Get(ctx, "files:bad")
		assert.ErrorContains(t, err, "decode snapshot files:bad")
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotPostgres_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewSnapshotPostgres(db)
	snap := &model.Snapshot{
		Key:       "files:k",
		Query:     "fileType=pdf",
		Files:     sampleFiles(),
		FetchedAt: time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec("INSERT INTO file_list_snapshots").
		WithArgs(snap.Key, snap.Query, sqlmock.AnyArg(), 2, snap.FetchedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Save(context.Background(), snap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotPostgres_DeleteAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewSnapshotPostgres(db)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM file_list_snapshots").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteAll(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mock.ExpectExec("DELETE FROM file_list_snapshots").
		WillReturnError(errors.New("db down"))

	_, err = repo.DeleteAll(ctx)
	assert.EqualError(t, err, "db down")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewSnapshotPostgres(db)
	ctx := context.Background()

	mock.ExpectExec("DELETE FROM file_list_snapshots WHERE cache_key").
		WithArgs("k1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(ctx, "k1"))

	mock.ExpectExec("DELETE FROM file_list_snapshots WHERE cache_key").
		WithArgs("k2").
		WillReturnError(errors.New("db down"))

	assert.EqualError(t, repo.Delete(ctx, "k2"), "db down")
	assert.NoError(t, mock.ExpectationsWereMet())
}
