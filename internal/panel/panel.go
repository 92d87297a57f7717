package panel

import (
	"context"
	"errors"
	"sync"
	"time"

	"filepanel/internal/filter"
	"filepanel/internal/logging"
	"filepanel/internal/model"
	"filepanel/internal/service"
)

var (
	ErrSuperseded  = errors.New("fetch superseded by a newer apply")
	ErrInFlight    = errors.New("operation already in flight for this file")
	ErrUnknownFile = errors.New("file is not in the current list")
)

// Panel is one file list session: live filters, the last applied batch, and
// per-file delete and download state. It is safe for concurrent use.
type Panel struct {
	svc    service.FileService
	logger *logging.Logger

	mu          sync.Mutex
	state       filter.State
	applied     filter.State
	seq         uint64
	fetching    bool
	pendingKey  string
	dataKey     string
	files       []model.FileRecord
	fetchedAt   time.Time
	cached      bool
	fetchErr    error
	deleting    map[string]bool
	downloading map[string]bool
}

// New returns a panel with empty filters and no data. Nothing is fetched until Apply.
func New(svc service.FileService, logger *logging.Logger) *Panel {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Panel{
		svc:         svc,
		logger:      logger.With("panel"),
		deleting:    make(map[string]bool),
		downloading: make(map[string]bool),
	}
}

// Dispatch updates the live filters. The local predicate follows immediately;
// the backend query only changes on the next Apply.
func (p *Panel) Dispatch(actions ...filter.Action) filter.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range actions {
		p.state = filter.Reduce(p.state, a)
	}
	return p.state
}

// State returns the live filters.
func (p *Panel) State() filter.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Apply fetches the batch for the live filters, reusing a cached batch when fresh.
func (p *Panel) Apply(ctx context.Context) error {
	return p.load(ctx, p.State(), false)
}

// Refresh refetches the batch for the live filters.
func (p *Panel) Refresh(ctx context.Context) error {
	return p.load(ctx, p.State(), true)
}

func (p *Panel) load(ctx context.Context, st filter.State, force bool) error {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.fetching = true
	p.pendingKey = st.CacheKey()
	p.fetchErr = nil
	p.mu.Unlock()

	var (
		res *service.ListResult
		err error
	)
	if force {
		res, err = p.svc.Refresh(ctx, st)
	} else {
		res, err = p.svc.List(ctx, st)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.seq {
		return ErrSuperseded
	}
	p.fetching = false
	p.applied = st
	if err != nil {
		p.fetchErr = err
		return err
	}
	p.files = res.Items
	p.dataKey = p.pendingKey
	p.fetchedAt = res.FetchedAt
	p.cached = res.Cached
	return nil
}

// Delete removes id through the backend and reloads the applied query.
// The row stays in place if the backend refuses.
func (p *Panel) Delete(ctx context.Context, id string) error {
	if !p.begin(p.deleting, id) {
		return ErrInFlight
	}
	err := p.svc.Delete(ctx, id)
	p.end(p.deleting, id)
	if err != nil {
		p.logger.Error("panel_delete_failed", err, map[string]any{"file_id": id})
		return err
	}

	p.mu.Lock()
	applied, loaded := p.applied, p.seq > 0
	p.mu.Unlock()
	if !loaded {
		return nil
	}
	if err := p.load(ctx, applied, false); err != nil && !errors.Is(err, ErrSuperseded) {
		p.logger.Warn("panel_reload_failed", err, map[string]any{"file_id": id})
	}
	return nil
}

// Download saves the content of the listed file id into sink under its original name.
func (p *Panel) Download(ctx context.Context, id string, sink service.Sink) (int64, error) {
	rec, ok := p.lookup(id)
	if !ok {
		return 0, ErrUnknownFile
	}
	if !p.begin(p.downloading, id) {
		return 0, ErrInFlight
	}
	defer p.end(p.downloading, id)

	n, err := p.svc.Download(ctx, rec.File, rec.OriginalFilename, sink)
	if err != nil {
		p.logger.Error("panel_download_failed", err, map[string]any{"file_id": id})
		return 0, err
	}
	return n, nil
}

// View renders the current state.
func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	hasData := p.files != nil && (!p.fetching || p.pendingKey == p.dataKey)
	return Render(Input{
		Loading:     !hasData && p.fetchErr == nil,
		Err:         p.fetchErr,
		Filters:     p.state,
		Files:       filter.Apply(p.state, p.files),
		Fetched:     len(p.files),
		FetchedAt:   p.fetchedAt,
		Cached:      p.cached,
		Deleting:    copyFlags(p.deleting),
		Downloading: copyFlags(p.downloading),
	})
}

func (p *Panel) lookup(id string) (model.FileRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range p.files {
		if f.ID == id {
			return f, true
		}
	}
	return model.FileRecord{}, false
}

func (p *Panel) begin(pending map[string]bool, id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pending[id] {
		return false
	}
	pending[id] = true
	return true
}

func (p *Panel) end(pending map[string]bool, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(pending, id)
}

func copyFlags(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
