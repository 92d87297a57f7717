package panel

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"filepanel/internal/logging"
	"filepanel/internal/service"
)

var ErrPanelNotFound = errors.New("panel not found")

// Registry keeps panel sessions by id.
type Registry struct {
	svc    service.FileService
	logger *logging.Logger

	mu     sync.RWMutex
	panels map[string]*Panel
}

func NewRegistry(svc service.FileService, logger *logging.Logger) *Registry {
	return &Registry{
		svc:    svc,
		logger: logger,
		panels: make(map[string]*Panel),
	}
}

// Create registers a new panel and returns its id.
func (r *Registry) Create() (string, *Panel) {
	id := uuid.NewString()
	p := New(r.svc, r.logger)

	r.mu.Lock()
	r.panels[id] = p
	r.mu.Unlock()
	return id, p
}

func (r *Registry) Get(id string) (*Panel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.panels[id]
	if !ok {
		return nil, ErrPanelNotFound
	}
	return p, nil
}

func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.panels[id]; !ok {
		return ErrPanelNotFound
	}
	delete(r.panels, id)
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.panels)
}
