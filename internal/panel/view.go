package panel

import (
	"fmt"
	"time"

	"filepanel/internal/filter"
	"filepanel/internal/model"
)

// Kind names the one view a panel shows at a time.
type Kind string

const (
	KindLoading Kind = "loading"
	KindError   Kind = "error"
	KindEmpty   Kind = "empty"
	KindList    Kind = "list"
)

const (
	MessageLoading = "Loading files..."
	MessageError   = "Failed to load files. Please try again."
	MessageEmpty   = "No files uploaded yet"
)

// Input is everything Render looks at.
type Input struct {
	Loading     bool
	Err         error
	Filters     filter.State
	Files       []model.FileRecord
	Fetched     int
	FetchedAt   time.Time
	Cached      bool
	Deleting    map[string]bool
	Downloading map[string]bool
}

// Row is one file line with its own action state.
type Row struct {
	ID          string    `json:"id"`
	Filename    string    `json:"original_filename"`
	FileType    string    `json:"file_type"`
	Size        int64     `json:"size"`
	SizeKB      string    `json:"size_kb"`
	UploadedAt  time.Time `json:"uploaded_at"`
	Locator     string    `json:"file"`
	Deleting    bool      `json:"deleting"`
	Downloading bool      `json:"downloading"`
}

// View is the rendered panel.
type View struct {
	Kind      Kind         `json:"kind"`
	Message   string       `json:"message,omitempty"`
	Filters   filter.State `json:"filters"`
	Rows      []Row        `json:"rows"`
	Fetched   int          `json:"fetched"`
	FetchedAt *time.Time   `json:"fetched_at,omitempty"`
	Cached    bool         `json:"cached"`
}

// Render maps in to exactly one view. Loading wins over error, error over empty.
// Files must already be filtered.
func Render(in Input) View {
	v := View{Filters: in.Filters, Rows: []Row{}}

	switch {
	case in.Loading:
		v.Kind, v.Message = KindLoading, MessageLoading
		return v
	case in.Err != nil:
		v.Kind, v.Message = KindError, MessageError
		return v
	}

	v.Fetched = in.Fetched
	v.Cached = in.Cached
	if !in.FetchedAt.IsZero() {
		at := in.FetchedAt
		v.FetchedAt = &at
	}

	if len(in.Files) == 0 {
		v.Kind, v.Message = KindEmpty, MessageEmpty
		return v
	}

	v.Kind = KindList
	v.Rows = make([]Row, 0, len(in.Files))
	for _, f := range in.Files {
		v.Rows = append(v.Rows, Row{
			ID:          f.ID,
			Filename:    f.OriginalFilename,
			FileType:    f.FileType,
			Size:        f.Size,
			SizeKB:      FormatKB(f.Size),
			UploadedAt:  f.UploadedAt,
			Locator:     f.File,
			Deleting:    in.Deleting[f.ID],
			Downloading: in.Downloading[f.ID],
		})
	}
	return v
}

// FormatKB renders a byte count in kilobytes with two decimals.
func FormatKB(size int64) string {
	return fmt.Sprintf("%.2f", float64(size)/1024)
}
