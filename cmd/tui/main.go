package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	_ "github.com/joho/godotenv/autoload"

	"filepanel/internal/backend"
	"filepanel/internal/cache"
	"filepanel/internal/config"
	"filepanel/internal/logging"
	"filepanel/internal/panel"
	"filepanel/internal/service"
	"filepanel/internal/storage"
)

// The terminal owns stdout, so operator logs go to TUI_LOG_FILE.
func main() {
	cfg := config.Load()

	logFile, err := os.OpenFile(cfg.TUILogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := logging.New(logFile, cfg.Location())

	client, err := backend.NewHTTP(cfg.Backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create backend client: %v\n", err)
		os.Exit(1)
	}

	var opts []service.Option
	opts = append(opts, service.WithLogger(logger))
	if cfg.MinIO.Enabled() {
		objects, err := storage.NewMinIO(cfg.MinIO)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize object storage: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, service.WithObjectStorage(objects))
	}

	qc := cache.New(cache.WithTTL(cfg.CacheTTL()), cache.WithLogger(logger))
	svc := service.NewFileService(client, qc, opts...)
	p := panel.New(svc, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newModel(ctx, p, service.DirSink{Dir: cfg.Download.Dir})
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
