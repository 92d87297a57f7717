package handler

import (
	"io"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"filepanel/internal/filter"
	"filepanel/internal/model"
	"filepanel/internal/service"
)

// fileListResponse is the stateless list: the fetched batch narrowed by the local predicate.
type fileListResponse struct {
	Data      []model.FileRecord `json:"data"`
	Total     int                `json:"total"`
	Fetched   int                `json:"fetched"`
	FetchedAt time.Time          `json:"fetched_at"`
	Cached    bool               `json:"cached"`
}

// ListFiles godoc
// @Summary List files
// @Description Fetches the file list for the filter (cached per filter set) and applies the local predicate.
// @Tags files
// @Produce json
// @Param search query string false "filename substring, case-insensitive"
// @Param fileType query string false "file type substring"
// @Param minSize query string false "minimum size in KB"
// @Param maxSize query string false "maximum size in KB"
// @Param startDate query string false "upload date lower bound, backend only"
// @Param endDate query string false "upload date upper bound, backend only"
// @Param refresh query bool false "bypass the cache"
// @Success 200 {object} fileListResponse
// @Failure 502 {object} errorPayload
// @Router /files [get]
func ListFiles(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := url.ParseQuery(string(c.Request().URI().QueryString()))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_QUERY", "malformed query string")
		}
		st := filter.FromValues(q)

		var res *service.ListResult
		if c.QueryBool("refresh") {
			res, err = svc.Refresh(c.UserContext(), st)
		} else {
			res, err = svc.List(c.UserContext(), st)
		}
		if err != nil {
			return writeDomainError(c, err)
		}

		visible := filter.Apply(st, res.Items)
		return c.JSON(fileListResponse{
			Data:      visible,
			Total:     len(visible),
			Fetched:   res.Total,
			FetchedAt: res.FetchedAt,
			Cached:    res.Cached,
		})
	}
}

// UploadFile godoc
// @Summary Upload a file
// @Description Proxies a multipart upload to the file backend. A duplicate answers 200 with file_id.
// @Tags files
// @Accept mpfd
// @Produce json
// @Param file formData file true "file to upload"
// @Success 201 {object} model.UploadResult
// @Success 200 {object} model.UploadResult
// @Failure 400 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /files [post]
func UploadFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		res, err := svc.Upload(c.UserContext(), fh.Filename, f)
		if err != nil {
			return writeDomainError(c, err)
		}

		status := fiber.StatusCreated
		if res.IsDuplicate() {
			status = fiber.StatusOK
		}
		return c.Status(status).JSON(res)
	}
}

// DeleteFile godoc
// @Summary Delete a file
// @Tags files
// @Param id path string true "file id"
// @Success 204
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /files/{id} [delete]
func DeleteFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Delete(c.UserContext(), c.Params("id")); err != nil {
			return writeDomainError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DownloadFile godoc
// @Summary Download file content
// @Description Streams the content behind a locator (backend URL, path or s3://bucket/key) as an attachment.
// @Tags files
// @Produce octet-stream
// @Param locator query string true "file locator"
// @Param filename query string true "name to save under"
// @Success 200 {file} binary
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /files/download [get]
func DownloadFile(svc service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := svc.Download(c.UserContext(), c.Query("locator"), c.Query("filename"), attachmentSink{c: c}); err != nil {
			return writeDomainError(c, err)
		}
		return nil
	}
}

// attachmentSink writes the download into the response body as an attachment.
type attachmentSink struct {
	c *fiber.Ctx
}

func (s attachmentSink) Create(filename string) (io.WriteCloser, error) {
	s.c.Attachment(service.SafeFilename(filename))
	s.c.Status(fiber.StatusOK)
	return responseBody{c: s.c}, nil
}

type responseBody struct {
	c *fiber.Ctx
}

func (b responseBody) Write(p []byte) (int, error) { return b.c.Write(p) }

func (b responseBody) Close() error { return nil }

// Abort drops whatever was buffered so an error envelope can replace it.
func (b responseBody) Abort() error {
	b.c.Response().ResetBody()
	b.c.Response().Header.Del(fiber.HeaderContentDisposition)
	return nil
}
