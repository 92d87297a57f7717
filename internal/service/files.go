package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"filepanel/internal/backend"
	"filepanel/internal/cache"
	"filepanel/internal/filter"
	"filepanel/internal/logging"
	"filepanel/internal/model"
	"filepanel/internal/storage"
)

var (
	ErrIDRequired          = errors.New("id is required")
	ErrInvalidID           = errors.New("id must be a single path segment")
	ErrLocatorRequired     = errors.New("file locator is required")
	ErrFilenameRequired    = errors.New("filename is required")
	ErrReaderNil           = errors.New("reader is nil")
	ErrSinkNil             = errors.New("download sink is nil")
	ErrObjectStoreDisabled = errors.New("s3 locator given but object storage is not configured")
)

// FetchError wraps a failure to load the file list from the backend.
type FetchError struct {
	Query string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch file list: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MutationError wraps a failed delete, download or upload.
type MutationError struct {
	Op     string
	Target string
	Err    error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// ListResult is the service-level DTO for one file-list batch.
type ListResult struct {
	Items     []model.FileRecord `json:"data"`
	Total     int                `json:"total"`
	FetchedAt time.Time          `json:"fetched_at"`
	Cached    bool               `json:"cached"`
}

// Sink receives downloaded content under the requested filename.
// Writers that also implement Abort() error are aborted instead of closed when the copy fails.
type Sink interface {
	Create(filename string) (io.WriteCloser, error)
}

type aborter interface {
	Abort() error
}

// FileService defines the file panel's backend use cases.
type FileService interface {
	// List returns the batch for the filter state, served from the query cache when fresh.
	List(ctx context.Context, st filter.State) (*ListResult, error)

	// Refresh always refetches the batch for the filter state.
	Refresh(ctx context.Context, st filter.State) (*ListResult, error)

	// Delete removes a file and invalidates every cached list on success.
	Delete(ctx context.Context, id string) error

	// Download streams the content behind locator into sink under filename.
	Download(ctx context.Context, locator, filename string, sink Sink) (int64, error)

	// Upload sends new content; a created file invalidates every cached list.
	Upload(ctx context.Context, filename string, r io.Reader) (*model.UploadResult, error)
}

type fileService struct {
	backend backend.Client
	objects storage.Storage
	cache   *cache.QueryCache
	logger  *logging.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures the file service.
type Option func(*fileService)

// WithObjectStorage enables s3:// locators.
func WithObjectStorage(s storage.Storage) Option {
	return func(f *fileService) { f.objects = s }
}

// WithLogger sets the operator log.
func WithLogger(l *logging.Logger) Option {
	return func(f *fileService) {
		if l != nil {
			f.logger = l.With("files")
		}
	}
}

// WithMetrics records mutation outcomes.
func WithMetrics(m *Metrics) Option {
	return func(f *fileService) { f.metrics = m }
}

// NewFileService constructs a new FileService.
func NewFileService(client backend.Client, qc *cache.QueryCache, opts ...Option) FileService {
	s := &fileService{
		backend: client,
		cache:   qc,
		logger:  logging.Nop(),
		tracer:  otel.Tracer("filepanel/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *fileService) List(ctx context.Context, st filter.State) (*ListResult, error) {
	return s.list(ctx, st, false)
}

func (s *fileService) Refresh(ctx context.Context, st filter.State) (*ListResult, error) {
	return s.list(ctx, st, true)
}

func (s *fileService) list(ctx context.Context, st filter.State, force bool) (*ListResult, error) {
	key, query := st.CacheKey(), st.Encode()
	ctx, span := s.tracer.Start(ctx, "files.list", trace.WithAttributes(
		attribute.String("filepanel.cache_key", key),
		attribute.Bool("filepanel.force", force),
	))
	defer span.End()

	fetch := func(ctx context.Context) ([]model.FileRecord, error) {
		return s.backend.ListFiles(ctx, st.Values())
	}

	var (
		res cache.Result
		err error
	)
	if force {
		res, err = s.cache.Refresh(ctx, key, query, fetch)
	} else {
		res, err = s.cache.Load(ctx, key, query, fetch)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		s.logger.Error("file_list_fetch_failed", err, map[string]any{"query": query})
		return nil, &FetchError{Query: query, Err: err}
	}

	span.SetAttributes(attribute.Bool("filepanel.cache_hit", res.Hit), attribute.Int("filepanel.count", len(res.Files)))
	return &ListResult{
		Items:     res.Files,
		Total:     len(res.Files),
		FetchedAt: res.FetchedAt,
		Cached:    res.Hit,
	}, nil
}

func (s *fileService) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	ctx, span := s.tracer.Start(ctx, "files.delete", trace.WithAttributes(attribute.String("filepanel.file_id", id)))
	defer span.End()

	if err := s.backend.DeleteFile(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		s.metrics.observe("delete", false)
		s.logger.Error("file_delete_failed", err, map[string]any{"file_id": id})
		return &MutationError{Op: "delete", Target: id, Err: err}
	}

	s.metrics.observe("delete", true)
	s.logger.Info("file_deleted", map[string]any{"file_id": id})
	s.invalidate(ctx, "delete")
	return nil
}

func (s *fileService) Download(ctx context.Context, locator, filename string, sink Sink) (int64, error) {
	if strings.TrimSpace(locator) == "" {
		return 0, ErrLocatorRequired
	}
	if strings.TrimSpace(filename) == "" {
		return 0, ErrFilenameRequired
	}
	if sink == nil {
		return 0, ErrSinkNil
	}
	ctx, span := s.tracer.Start(ctx, "files.download", trace.WithAttributes(attribute.String("filepanel.filename", filename)))
	defer span.End()

	fail := func(err error) (int64, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "download failed")
		s.metrics.observe("download", false)
		s.logger.Error("file_download_failed", err, map[string]any{"locator": locator, "filename": filename})
		return 0, &MutationError{Op: "download", Target: filename, Err: err}
	}

	src, err := s.open(ctx, locator)
	if err != nil {
		return fail(err)
	}
	defer src.Close()

	dst, err := sink.Create(filename)
	if err != nil {
		return fail(fmt.Errorf("create destination: %w", err))
	}

	n, err := io.Copy(dst, src)
	if err != nil {
		if a, ok := dst.(aborter); ok {
			_ = a.Abort()
		} else {
			_ = dst.Close()
		}
		return fail(fmt.Errorf("copy content: %w", err))
	}
	if err := dst.Close(); err != nil {
		return fail(fmt.Errorf("finalize destination: %w", err))
	}

	s.metrics.observe("download", true)
	span.SetAttributes(attribute.Int64("filepanel.bytes", n))
	s.logger.Info("file_downloaded", map[string]any{"filename": filename, "bytes": n})
	return n, nil
}

func (s *fileService) Upload(ctx context.Context, filename string, r io.Reader) (*model.UploadResult, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	if strings.TrimSpace(filename) == "" {
		return nil, ErrFilenameRequired
	}
	ctx, span := s.tracer.Start(ctx, "files.upload", trace.WithAttributes(attribute.String("filepanel.filename", filename)))
	defer span.End()

	res, err := s.backend.Upload(ctx, filename, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		s.metrics.observe("upload", false)
		s.logger.Error("file_upload_failed", err, map[string]any{"filename": filename})
		return nil, &MutationError{Op: "upload", Target: filename, Err: err}
	}

	s.metrics.observe("upload", true)
	s.logger.Info("file_uploaded", map[string]any{
		"filename":  filename,
		"file_id":   res.TargetID(),
		"duplicate": res.IsDuplicate(),
	})
	if !res.IsDuplicate() {
		s.invalidate(ctx, "upload")
	}
	return res, nil
}

// open picks the object store for s3:// locators and the backend for everything else.
func (s *fileService) open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if storage.IsLocator(locator) {
		if s.objects == nil {
			return nil, ErrObjectStoreDisabled
		}
		rc, _, err := storage.Open(ctx, s.objects, locator)
		return rc, err
	}
	return s.backend.Open(ctx, locator)
}

// invalidate drops cached lists after a successful mutation. The in-memory
// entries are always gone by the time this returns; only the store can fail.
func (s *fileService) invalidate(ctx context.Context, cause string) {
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn("file_list_invalidate_incomplete", err, map[string]any{"cause": cause})
	}
}

func validateID(id string) error {
	if id == "" {
		return ErrIDRequired
	}
	if strings.ContainsAny(id, "/\\?#") || id == "." || id == ".." {
		return ErrInvalidID
	}
	return nil
}
