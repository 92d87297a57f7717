package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"filepanel/internal/backend"
	"filepanel/internal/filter"
	"filepanel/internal/http/middleware"
	"filepanel/internal/model"
	"filepanel/internal/service"
	serviceMocks "filepanel/internal/service/mocks"
)

var fetchedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func sampleFiles() []model.FileRecord {
	return []model.FileRecord{
		{ID: "1", OriginalFilename: "a.pdf", FileType: "pdf", Size: 2048, UploadedAt: fetchedAt, File: "/media/a.pdf"},
		{ID: "2", OriginalFilename: "b.png", FileType: "image", Size: 512, UploadedAt: fetchedAt, File: "/media/b.png"},
	}
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.RequestID())
	return app
}

func decodeError(t *testing.T, r io.Reader) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(r).Decode(&body))
	return body
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	backendUp := true
	app := fiber.New()
	app.Get("/health", HealthCheck(map[string]Pinger{
		"database": db,
		"backend": PingFunc(func(context.Context) error {
			if backendUp {
				return nil
			}
			return errors.New("connection refused")
		}),
	}))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, map[string]string{"backend": "ok", "database": "ok"}, body.Checks)
	})

	t.Run("backend down", func(t *testing.T) {
		backendUp = false
		defer func() { backendUp = true }()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		body := decodeError(t, resp.Body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
		assert.Equal(t, "backend unavailable", body.Error.Message)
	})

	t.Run("database down", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp.Body).Error.Code)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListFiles(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := newApp()
	app.Get("/files", ListFiles(mockSvc))

	t.Run("applies the local predicate to the fetched batch", func(t *testing.T) {
		st := filter.State{FileType: "pdf"}
		mockSvc.On("List", mock.Anything, st).Return(&service.ListResult{Items: sampleFiles(), Total: 2, FetchedAt: fetchedAt, Cached: true}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files?fileType=pdf", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result fileListResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		require.Len(t, result.Data, 1)
		assert.Equal(t, "1", result.Data[0].ID)
		assert.Equal(t, 1, result.Total)
		assert.Equal(t, 2, result.Fetched)
		assert.True(t, result.Cached)
		mockSvc.AssertExpectations(t)
	})

	t.Run("refresh bypasses the cache", func(t *testing.T) {
		mockSvc.On("Refresh", mock.Anything, filter.State{}).Return(&service.ListResult{Items: sampleFiles(), Total: 2}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files?refresh=true", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("backend unavailable", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, filter.State{}).Return(nil, &service.FetchError{Err: errors.New("dial tcp")}).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files", nil))
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		body := decodeError(t, resp.Body)
		assert.Equal(t, "BACKEND_UNAVAILABLE", body.Error.Code)
		assert.NotEmpty(t, body.RequestID)
		mockSvc.AssertExpectations(t)
	})
}

func multipartBody(t *testing.T, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, _ = part.Write([]byte(content))
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadFile(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := newApp()
	app.Post("/files", UploadFile(mockSvc))

	tests := []struct {
		name   string
		result *model.UploadResult
		status int
	}{
		{name: "created", result: &model.UploadResult{ID: "9", OriginalFilename: "test.txt"}, status: http.StatusCreated},
		{name: "duplicate", result: &model.UploadResult{FileID: "3", OriginalFilename: "test.txt", Message: "File already exists"}, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, "test.txt", "hello world")
			mockSvc.On("Upload", mock.Anything, "test.txt", mock.Anything).Return(tt.result, nil).Once()

			req := httptest.NewRequest(http.MethodPost, "/files", body)
			req.Header.Set("Content-Type", ct)
			resp, _ := app.Test(req)

			assert.Equal(t, tt.status, resp.StatusCode)
			var got model.UploadResult
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Equal(t, *tt.result, got)
			mockSvc.AssertExpectations(t)
		})
	}

	t.Run("no file", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/files", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("backend error", func(t *testing.T) {
		body, ct := multipartBody(t, "test.txt", "hello")
		mockSvc.On("Upload", mock.Anything, "test.txt", mock.Anything).
			Return(nil, &service.MutationError{Op: "upload", Target: "test.txt", Err: errors.New("500")}).Once()

		req := httptest.NewRequest(http.MethodPost, "/files", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, "BACKEND_ERROR", decodeError(t, resp.Body).Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestDeleteFile(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := newApp()
	app.Delete("/files/:id", DeleteFile(mockSvc))

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "success", status: http.StatusNoContent},
		{name: "not found", err: &service.MutationError{Op: "delete", Target: "7", Err: &backend.StatusError{Op: "delete", StatusCode: 404}}, status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "invalid id", err: service.ErrInvalidID, status: http.StatusBadRequest, code: "INVALID_ID"},
		{name: "backend error", err: &service.MutationError{Op: "delete", Target: "7", Err: errors.New("boom")}, status: http.StatusBadGateway, code: "BACKEND_ERROR"},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, code: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc.On("Delete", mock.Anything, "7").Return(tt.err).Once()

			resp, _ := app.Test(httptest.NewRequest(http.MethodDelete, "/files/7", nil))
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.code != "" {
				assert.Equal(t, tt.code, decodeError(t, resp.Body).Error.Code)
			}
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestDownloadFile(t *testing.T) {
	mockSvc := new(serviceMocks.MockFileService)
	app := newApp()
	app.Get("/files/download", DownloadFile(mockSvc))

	t.Run("attachment", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "/media/a.pdf", "a.pdf", mock.Anything).
			Run(func(args mock.Arguments) {
				w, err := args.Get(3).(service.Sink).Create("a.pdf")
				require.NoError(t, err)
				_, _ = w.Write([]byte("%PDF"))
				_ = w.Close()
			}).Return(int64(4), nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files/download?locator=/media/a.pdf&filename=a.pdf", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), `filename="a.pdf"`)
		got, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "%PDF", string(got))
		mockSvc.AssertExpectations(t)
	})

	t.Run("aborted mid-copy", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "/media/b", "b.bin", mock.Anything).
			Run(func(args mock.Arguments) {
				w, _ := args.Get(3).(service.Sink).Create("b.bin")
				_, _ = w.Write([]byte("partial"))
				_ = w.(interface{ Abort() error }).Abort()
			}).Return(int64(0), &service.MutationError{Op: "download", Target: "b.bin", Err: errors.New("reset")}).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files/download?locator=/media/b&filename=b.bin", nil))
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Empty(t, resp.Header.Get(fiber.HeaderContentDisposition))
		assert.Equal(t, "BACKEND_ERROR", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("missing locator", func(t *testing.T) {
		mockSvc.On("Download", mock.Anything, "", "x", mock.Anything).Return(int64(0), service.ErrLocatorRequired).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/files/download?filename=x", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "LOCATOR_REQUIRED", decodeError(t, resp.Body).Error.Code)
	})
}

func TestRouting(t *testing.T) {
	app := newApp()
	RegisterRoutes(app, Deps{Files: new(serviceMocks.MockFileService)})

	t.Run("not found route", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/non-existent", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/health", strings.NewReader("")))
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp.Body).Error.Code)
	})
}
