package handler

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"filepanel/internal/filter"
	"filepanel/internal/panel"
)

type panelResponse struct {
	ID   string     `json:"id"`
	View panel.View `json:"view"`
}

type filterUpdate struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type createPanelRequest struct {
	Filters *filter.State `json:"filters"`
}

// CreatePanel godoc
// @Summary Open a panel session
// @Description Creates a panel, optionally seeded with filters, and applies it once.
// @Description A failed first fetch still creates the panel; its view reports the error.
// @Tags panels
// @Accept json
// @Produce json
// @Param body body createPanelRequest false "initial filters"
// @Success 201 {object} panelResponse
// @Failure 400 {object} errorPayload
// @Router /panels [post]
func CreatePanel(reg *panel.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createPanelRequest
		if len(bytes.TrimSpace(c.Body())) > 0 {
			if err := json.Unmarshal(c.Body(), &req); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid JSON body")
			}
		}

		id, p := reg.Create()
		if req.Filters != nil {
			p.Dispatch(
				filter.SetSearch(req.Filters.Search),
				filter.SetFileType(req.Filters.FileType),
				filter.SetMinSize(req.Filters.MinSize),
				filter.SetMaxSize(req.Filters.MaxSize),
				filter.SetStartDate(req.Filters.StartDate),
				filter.SetEndDate(req.Filters.EndDate),
			)
		}
		_ = p.Apply(c.UserContext())

		return c.Status(fiber.StatusCreated).JSON(panelResponse{ID: id, View: p.View()})
	}
}

// GetPanel godoc
// @Summary Current panel view
// @Tags panels
// @Produce json
// @Param id path string true "panel id"
// @Success 200 {object} panelResponse
// @Failure 404 {object} errorPayload
// @Router /panels/{id} [get]
func GetPanel(reg *panel.Registry) fiber.Handler {
	return withPanel(reg, func(c *fiber.Ctx, id string, p *panel.Panel) error {
		return c.JSON(panelResponse{ID: id, View: p.View()})
	})
}

// UpdateFilters godoc
// @Summary Update panel filters
// @Description Accepts one {"field","value"} object or a list of them. Only the local view changes until apply.
// @Tags panels
// @Accept json
// @Produce json
// @Param id path string true "panel id"
// @Param body body filterUpdate true "filter update"
// @Success 200 {object} panelResponse
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /panels/{id}/filters [patch]
func UpdateFilters(reg *panel.Registry) fiber.Handler {
	return withPanel(reg, func(c *fiber.Ctx, id string, p *panel.Panel) error {
		updates, err := decodeFilterUpdates(c.Body())
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "expected a filter update or a list of them")
		}

		actions := make([]filter.Action, 0, len(updates))
		for _, u := range updates {
			a, err := filter.ActionFor(u.Field, u.Value)
			if err != nil {
				return writeDomainError(c, err)
			}
			actions = append(actions, a)
		}
		p.Dispatch(actions...)
		return c.JSON(panelResponse{ID: id, View: p.View()})
	})
}

// ResetFilters godoc
// @Summary Clear panel filters
// @Tags panels
// @Produce json
// @Param id path string true "panel id"
// @Success 200 {object} panelResponse
// @Failure 404 {object} errorPayload
// @Router /panels/{id}/filters [delete]
func ResetFilters(reg *panel.Registry) fiber.Handler {
	return withPanel(reg, func(c *fiber.Ctx, id string, p *panel.Panel) error {
		p.Dispatch(filter.Reset{})
		return c.JSON(panelResponse{ID: id, View: p.View()})
	})
}

// ApplyPanel godoc
// @Summary Apply panel filters
// @Description Fetches for the current filters, reusing a cached batch for an identical filter set.
// @Tags panels
// @Produce json
// @Param id path string true "panel id"
// @Success 200 {object} panelResponse
// @Failure 404 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /panels/{id}/apply [post]
func ApplyPanel(reg *panel.Registry) fiber.Handler {
	return withPanel(reg, func(c *fiber.Ctx, id string, p *panel.Panel) error {
		if err := p.Apply(c.UserContext()); err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(panelResponse{ID: id, View: p.View()})
	})
}

// RefreshPanel godoc
// @Summary Refetch panel data
// @Tags panels
// @Produce json
// @Param id path string true "panel id"
// @Success 200 {object} panelResponse
// @Failure 404 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /panels/{id}/refresh [post]
func RefreshPanel(reg *panel.Registry) fiber.Handler {
	return withPanel(reg, func(c *fiber.Ctx, id string, p *panel.Panel) error {
		if err := p.Refresh(c.UserContext()); err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(panelResponse{ID: id, View: p.View()})
	})
}

// DeletePanelFile godoc
// @Summary Delete a file from a panel
// @Description Deletes through the backend; every cached list is invalidated and the panel reloads.
// @Tags panels
// @Produce json
// @Param id path string true "panel id"
// @Param fileID path string true "file id"
// @Success 200 {object} panelResponse
// @Failure 404 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /panels/{id}/files/{fileID} [delete]
func DeletePanelFile(reg *panel.Registry) fiber.Handler {
	return withPanel(reg, func(c *fiber.Ctx, id string, p *panel.Panel) error {
		if err := p.Delete(c.UserContext(), c.Params("fileID")); err != nil {
			return writeDomainError(c, err)
		}
		return c.JSON(panelResponse{ID: id, View: p.View()})
	})
}

// DownloadPanelFile godoc
// @Summary Download a listed file
// @Tags panels
// @Produce octet-stream
// @Param id path string true "panel id"
// @Param fileID path string true "file id"
// @Success 200 {file} binary
// @Failure 404 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Failure 502 {object} errorPayload
// @Router /panels/{id}/files/{fileID}/download [get]
func DownloadPanelFile(reg *panel.Registry) fiber.Handler {
	return withPanel(reg, func(c *fiber.Ctx, _ string, p *panel.Panel) error {
		if _, err := p.Download(c.UserContext(), c.Params("fileID"), attachmentSink{c: c}); err != nil {
			return writeDomainError(c, err)
		}
		return nil
	})
}

// ClosePanel godoc
// @Summary Close a panel session
// @Tags panels
// @Param id path string true "panel id"
// @Success 204
// @Failure 404 {object} errorPayload
// @Router /panels/{id} [delete]
func ClosePanel(reg *panel.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := reg.Remove(c.Params("id")); err != nil {
			return writeDomainError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func withPanel(reg *panel.Registry, fn func(c *fiber.Ctx, id string, p *panel.Panel) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		p, err := reg.Get(id)
		if err != nil {
			return writeDomainError(c, err)
		}
		return fn(c, id, p)
	}
}

func decodeFilterUpdates(body []byte) ([]filterUpdate, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}
	if body[0] == '[' {
		var list []filterUpdate
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var one filterUpdate
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, err
	}
	return []filterUpdate{one}, nil
}
