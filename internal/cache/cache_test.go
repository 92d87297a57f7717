package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"filepanel/internal/model"
	"filepanel/internal/repository"
	repoMocks "filepanel/internal/repository/mocks"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func countingFetcher(calls *int32, files []model.FileRecord) Fetcher {
	return func(ctx context.Context) ([]model.FileRecord, error) {
		atomic.AddInt32(calls, 1)
		return files, nil
	}
}

var files = []model.FileRecord{{ID: "1", OriginalFilename: "a.pdf"}}

func TestLoad_ReusesFreshEntry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(WithTTL(time.Minute), WithClock(clock.Now))

	var calls int32
	first, err := c.Load(ctx, "k", "q", countingFetcher(&calls, files))
	require.NoError(t, err)
	assert.False(t, first.Hit)
	assert.Equal(t, clock.Now(), first.FetchedAt)

	second, err := c.Load(ctx, "k", "q", countingFetcher(&calls, files))
	require.NoError(t, err)
	assert.True(t, second.Hit)
	assert.Equal(t, files, second.Files)
	assert.Equal(t, int32(1), calls)

	clock.Advance(time.Minute)
	third, err := c.Load(ctx, "k", "q", countingFetcher(&calls, files))
	require.NoError(t, err)
	assert.False(t, third.Hit)
	assert.Equal(t, int32(2), calls)
}

func TestLoad_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Now()}
	c := New(WithClock(clock.Now))

	var calls int32
	_, _ = c.Load(ctx, "k", "q", countingFetcher(&calls, files))
	clock.Advance(24 * time.Hour)
	res, err := c.Load(ctx, "k", "q", countingFetcher(&calls, files))

	require.NoError(t, err)
	assert.True(t, res.Hit)
	assert.Equal(t, int32(1), calls)
}

func TestLoad_DistinctKeys(t *testing.T) {
	ctx := context.Background()
	c := New()

	var calls int32
	_, _ = c.Load(ctx, "a", "", countingFetcher(&calls, files))
	_, _ = c.Load(ctx, "b", "", countingFetcher(&calls, files))

	assert.Equal(t, int32(2), calls)
	assert.Equal(t, 2, c.Len())
}

func TestLoad_ErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	c := New()
	boom := errors.New("backend down")

	_, err := c.Load(ctx, "k", "", func(context.Context) ([]model.FileRecord, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())

	var calls int32
	res, err := c.Load(ctx, "k", "", countingFetcher(&calls, files))
	require.NoError(t, err)
	assert.False(t, res.Hit)
}

func TestLoad_NilListBecomesEmpty(t *testing.T) {
	c := New()
	res, err := c.Load(context.Background(), "k", "", func(context.Context) ([]model.FileRecord, error) { return nil, nil })
	require.NoError(t, err)
	assert.NotNil(t, res.Files)
	assert.Empty(t, res.Files)
}

func TestRefresh_BypassesFreshness(t *testing.T) {
	ctx := context.Background()
	c := New()

	var calls int32
	_, _ = c.Load(ctx, "k", "", countingFetcher(&calls, files))
	res, err := c.Refresh(ctx, "k", "", countingFetcher(&calls, []model.FileRecord{{ID: "2"}}))

	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, int32(2), calls)

	peek, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, "2", peek.Files[0].ID)
}

func TestInvalidateAll(t *testing.T) {
	ctx := context.Background()
	c := New()

	var calls int32
	_, _ = c.Load(ctx, "a", "", countingFetcher(&calls, files))
	_, _ = c.Load(ctx, "b", "", countingFetcher(&calls, files))

	require.NoError(t, c.InvalidateAll(ctx))
	assert.Equal(t, 0, c.Len())

	res, err := c.Load(ctx, "a", "", countingFetcher(&calls, files))
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, int32(3), calls)
}

func TestInvalidateAll_DropsInFlightResult(t *testing.T) {
	ctx := context.Background()
	c := New()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan Result)

	go func() {
		res, _ := c.Load(ctx, "k", "", func(context.Context) ([]model.FileRecord, error) {
			close(started)
			<-release
			return files, nil
		})
		done <- res
	}()

	<-started
	require.NoError(t, c.InvalidateAll(ctx))
	close(release)

	res := <-done
	assert.Equal(t, files, res.Files)
	_, ok := c.Peek("k")
	assert.False(t, ok, "a fetch started before invalidation must not repopulate the cache")
}

func TestLoad_ConcurrentMissesShareOneFetch(t *testing.T) {
	ctx := context.Background()
	c := New()

	var calls int32
	release := make(chan struct{})
	fetch := func(context.Context) ([]model.FileRecord, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return files, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Load(ctx, "k", "", fetch)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLoad_WithStore(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	t.Run("fresh snapshot is served", func(t *testing.T) {
		store := new(repoMocks.MockSnapshotRepository)
		store.On("Get", ctx, "k").Return(&model.Snapshot{Key: "k", Files: files, FetchedAt: clock.Now().Add(-time.Second)}, nil).Once()

		c := New(WithStore(store), WithTTL(time.Minute), WithClock(clock.Now))
		res, err := c.Load(ctx, "k", "q", func(context.Context) ([]model.FileRecord, error) {
			t.Fatal("backend must not be called")
			return nil, nil
		})

		require.NoError(t, err)
		assert.True(t, res.Hit)
		assert.Equal(t, files, res.Files)
		_, ok := c.Peek("k")
		assert.True(t, ok)
		store.AssertExpectations(t)
	})

	t.Run("stale snapshot triggers fetch and save", func(t *testing.T) {
		store := new(repoMocks.MockSnapshotRepository)
		store.On("Get", ctx, "k").Return(&model.Snapshot{Key: "k", Files: files, FetchedAt: clock.Now().Add(-time.Hour)}, nil).Once()
		store.On("Save", ctx, mock.MatchedBy(func(s *model.Snapshot) bool {
			return s.Key == "k" && s.Query == "q" && s.FetchedAt.Equal(clock.Now())
		})).Return(nil).Once()

		c := New(WithStore(store), WithTTL(time.Minute), WithClock(clock.Now))
		var calls int32
		res, err := c.Load(ctx, "k", "q", countingFetcher(&calls, files))

		require.NoError(t, err)
		assert.False(t, res.Hit)
		assert.Equal(t, int32(1), calls)
		store.AssertExpectations(t)
	})

	t.Run("store failures do not fail the read", func(t *testing.T) {
		store := new(repoMocks.MockSnapshotRepository)
		store.On("Get", ctx, "k").Return(nil, errors.New("db down")).Once()
		store.On("Save", ctx, mock.Anything).Return(errors.New("db down")).Once()

		c := New(WithStore(store), WithClock(clock.Now))
		var calls int32
		res, err := c.Load(ctx, "k", "q", countingFetcher(&calls, files))

		require.NoError(t, err)
		assert.Equal(t, files, res.Files)
		store.AssertExpectations(t)
	})

	t.Run("missing snapshot", func(t *testing.T) {
		store := new(repoMocks.MockSnapshotRepository)
		store.On("Get", ctx, "k").Return(nil, repository.ErrSnapshotNotFound).Once()
		store.On("Save", ctx, mock.Anything).Return(nil).Once()

		c := New(WithStore(store), WithClock(clock.Now))
		var calls int32
		_, err := c.Load(ctx, "k", "q", countingFetcher(&calls, files))

		require.NoError(t, err)
		assert.Equal(t, int32(1), calls)
		store.AssertExpectations(t)
	})
}

func TestInvalidateAll_ClearsStore(t *testing.T) {
	ctx := context.Background()

	store := new(repoMocks.MockSnapshotRepository)
	store.On("DeleteAll", ctx).Return(int64(4), nil).Once()
	c := New(WithStore(store))
	require.NoError(t, c.InvalidateAll(ctx))

	failing := new(repoMocks.MockSnapshotRepository)
	failing.On("DeleteAll", ctx).Return(int64(0), errors.New("db down")).Once()
	c = New(WithStore(failing))
	assert.ErrorContains(t, c.InvalidateAll(ctx), "invalidate snapshot store")

	store.AssertExpectations(t)
	failing.AssertExpectations(t)
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	c := New(WithMetrics(m))
	var calls int32
	_, _ = c.Load(ctx, "k", "", countingFetcher(&calls, files))
	_, _ = c.Load(ctx, "k", "", countingFetcher(&calls, files))
	_ = c.InvalidateAll(ctx)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.misses))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.hits.WithLabelValues("memory")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.invalidations))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice on one registry must fail")
}

// memStore is an in-memory snapshot store whose Save can be held open.
type memStore struct {
	mu    sync.Mutex
	rows  map[string]*model.Snapshot
	hold  chan struct{}
	saves chan struct{}
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*model.Snapshot)}
}

func (s *memStore) Get(_ context.Context, key string) (*model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.rows[key]
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	return snap, nil
}

func (s *memStore) Save(_ context.Context, snap *model.Snapshot) error {
	if s.hold != nil {
		s.saves <- struct{}{}
		<-s.hold
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[snap.Key] = snap
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, key)
	return nil
}

func (s *memStore) DeleteAll(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.rows))
	s.rows = make(map[string]*model.Snapshot)
	return n, nil
}

func (s *memStore) PingContext(context.Context) error { return nil }

func TestInvalidateAll_DuringSnapshotSave(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := newMemStore()
	store.hold = make(chan struct{})
	store.saves = make(chan struct{})

	c := New(WithStore(store), WithClock(clock.Now))

	before := []model.FileRecord{{ID: "X"}, {ID: "Y"}}
	done := make(chan error)
	go func() {
		_, err := c.Load(ctx, "k", "q", func(context.Context) ([]model.FileRecord, error) {
			return before, nil
		})
		done <- err
	}()

	<-store.saves
	require.NoError(t, c.InvalidateAll(ctx))
	close(store.hold)
	require.NoError(t, <-done)

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, repository.ErrSnapshotNotFound, "snapshot written across an invalidation must be removed")

	after := []model.FileRecord{{ID: "Y"}}
	store.hold = nil
	res, err := c.Load(ctx, "k", "q", func(context.Context) ([]model.FileRecord, error) {
		return after, nil
	})
	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, after, res.Files)
}

func TestLoad_IgnoresSnapshotOlderThanInvalidation(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	store := new(repoMocks.MockSnapshotRepository)
	store.On("DeleteAll", ctx).Return(int64(0), errors.New("db down")).Once()
	store.On("Get", ctx, "k").Return(&model.Snapshot{Key: "k", Files: files, FetchedAt: clock.Now()}, nil).Once()
	store.On("Save", ctx, mock.Anything).Return(nil).Once()

	c := New(WithStore(store), WithClock(clock.Now))
	assert.Error(t, c.InvalidateAll(ctx))

	var calls int32
	fresh := []model.FileRecord{{ID: "2"}}
	res, err := c.Load(ctx, "k", "q", countingFetcher(&calls, fresh))

	require.NoError(t, err)
	assert.False(t, res.Hit)
	assert.Equal(t, fresh, res.Files)
	assert.Equal(t, int32(1), calls)
	store.AssertExpectations(t)
}
