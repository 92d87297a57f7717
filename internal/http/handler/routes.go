package handler

import (
	"github.com/gofiber/fiber/v2"

	"filepanel/internal/panel"
	"filepanel/internal/service"
)

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	Files  service.FileService
	Panels *panel.Registry
	// Health lists the dependencies /health pings, by name.
	Health map[string]Pinger
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	app.Get("/health", HealthCheck(deps.Health))
	app.Get("/healthz", LivenessProbe())

	app.Get("/files", ListFiles(deps.Files))
	app.Post("/files", UploadFile(deps.Files))
	app.Get("/files/download", DownloadFile(deps.Files))
	app.Delete("/files/:id", DeleteFile(deps.Files))

	app.Post("/panels", CreatePanel(deps.Panels))
	app.Get("/panels/:id", GetPanel(deps.Panels))
	app.Delete("/panels/:id", ClosePanel(deps.Panels))
	app.Patch("/panels/:id/filters", UpdateFilters(deps.Panels))
	app.Delete("/panels/:id/filters", ResetFilters(deps.Panels))
	app.Post("/panels/:id/apply", ApplyPanel(deps.Panels))
	app.Post("/panels/:id/refresh", RefreshPanel(deps.Panels))
	app.Delete("/panels/:id/files/:fileID", DeletePanelFile(deps.Panels))
	app.Get("/panels/:id/files/:fileID/download", DownloadPanelFile(deps.Panels))
}
