package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"filepanel/internal/config"
	"filepanel/internal/model"
)

var (
	ErrNotFound        = errors.New("backend resource not found")
	ErrBaseURLRequired = errors.New("backend base url is required")
	ErrEmptyLocator    = errors.New("file locator is empty")
	ErrBadLocator      = errors.New("unsupported file locator")
)

// StatusError is returned when the backend answers with an unexpected HTTP status.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend %s: unexpected status %d", e.Op, e.StatusCode)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client is the file backend contract consumed by the panel.
type Client interface {
	// ListFiles returns the file list for the given filter query.
	ListFiles(ctx context.Context, query url.Values) ([]model.FileRecord, error)
	// DeleteFile removes a file by id.
	DeleteFile(ctx context.Context, id string) error
	// Open streams the content behind a file locator. Relative locators resolve against the base URL.
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	// Upload sends a new file and returns the created or duplicate outcome.
	Upload(ctx context.Context, filename string, r io.Reader) (*model.UploadResult, error)
	// Ping checks that the backend answers at all.
	Ping(ctx context.Context) error
}

// HTTPClient talks to the file backend over HTTP/JSON. It is safe for concurrent use.
type HTTPClient struct {
	base          *url.URL
	filesPath     string
	trailingSlash bool
	http          *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTP builds a client from configuration. Outgoing requests are traced with otelhttp.
func NewHTTP(cfg config.BackendConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend base url must be http or https, got %q", base.Scheme)
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	return &HTTPClient{
		base:          base,
		filesPath:     strings.Trim(cfg.FilesPath, "/"),
		trailingSlash: cfg.TrailingSlash,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// endpoint joins the base path with the files path and extra segments.
func (c *HTTPClient) endpoint(segments ...string) *url.URL {
	u := *c.base
	parts := append([]string{u.Path, c.filesPath}, segments...)
	p := path.Join(parts...)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if c.trailingSlash {
		p += "/"
	}
	u.Path = p
	u.RawPath = ""
	u.RawQuery = ""
	return &u
}

// ListFiles issues GET {files}/?<query>.
func (c *HTTPClient) ListFiles(ctx context.Context, query url.Values) ([]model.FileRecord, error) {
	u := c.endpoint()
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		return nil, &StatusError{Op: "list", StatusCode: resp.StatusCode}
	}

	files := make([]model.FileRecord, 0)
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}
	return files, nil
}

// DeleteFile issues DELETE {files}/{id}/.
func (c *HTTPClient) DeleteFile(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint(id).String(), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	defer resp.Body.Close()
	drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: "delete", StatusCode: resp.StatusCode}
	}
	return nil
}

// Open issues GET <locator>. The caller must close the returned reader.
func (c *HTTPClient) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	target, err := c.resolve(locator)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		drain(resp.Body)
		resp.Body.Close()
		return nil, &StatusError{Op: "download", StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// Upload posts a multipart form with the content under field "file".
// The backend answers 201 for a new file and 200 for a detected duplicate.
func (c *HTTPClient) Upload(ctx context.Context, filename string, r io.Reader) (*model.UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint().String(), &body)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		drain(resp.Body)
		return nil, &StatusError{Op: "upload", StatusCode: resp.StatusCode}
	}

	var res model.UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode upload result: %w", err)
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return &res, nil
}

// Ping sends HEAD to the files endpoint. Any status below 500 counts as reachable.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.endpoint().String(), nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping backend: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &StatusError{Op: "ping", StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *HTTPClient) resolve(locator string) (string, error) {
	if strings.TrimSpace(locator) == "" {
		return "", ErrEmptyLocator
	}
	ref, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadLocator, err)
	}
	if ref.IsAbs() {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return "", fmt.Errorf("%w: scheme %q", ErrBadLocator, ref.Scheme)
		}
		return ref.String(), nil
	}
	return c.base.ResolveReference(ref).String(), nil
}

// drain discards a bounded amount of body so the connection can be reused.
func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64<<10))
}
