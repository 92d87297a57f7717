package panel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"filepanel/internal/filter"
)

func TestRender(t *testing.T) {
	files := batch()

	tests := []struct {
		name    string
		in      Input
		kind    Kind
		message string
		rows    int
	}{
		{name: "loading wins over error", in: Input{Loading: true, Err: errors.New("x"), Files: files}, kind: KindLoading, message: MessageLoading},
		{name: "error wins over data", in: Input{Err: errors.New("x"), Files: files}, kind: KindError, message: MessageError},
		{name: "empty", in: Input{}, kind: KindEmpty, message: MessageEmpty},
		{name: "list", in: Input{Files: files}, kind: KindList, rows: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Render(tt.in)
			assert.Equal(t, tt.kind, v.Kind)
			assert.Equal(t, tt.message, v.Message)
			assert.Len(t, v.Rows, tt.rows)
		})
	}
}

func TestRender_RowFlags(t *testing.T) {
	v := Render(Input{
		Files:       batch(),
		Filters:     filter.State{Search: "a"},
		Deleting:    map[string]bool{"1": true},
		Downloading: map[string]bool{"2": true},
	})

	assert.Equal(t, "a", v.Filters.Search)
	assert.True(t, v.Rows[0].Deleting)
	assert.False(t, v.Rows[0].Downloading)
	assert.False(t, v.Rows[1].Deleting)
	assert.True(t, v.Rows[1].Downloading)
	assert.Equal(t, "a.pdf", v.Rows[0].Filename)
	assert.Equal(t, "/media/a.pdf", v.Rows[0].Locator)
	assert.Nil(t, v.FetchedAt)
}

func TestFormatKB(t *testing.T) {
	assert.Equal(t, "0.00", FormatKB(0))
	assert.Equal(t, "0.50", FormatKB(512))
	assert.Equal(t, "1.50", FormatKB(1536))
	assert.Equal(t, "1024.00", FormatKB(1<<20))
}
