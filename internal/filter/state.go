// Package filter holds the file panel's filter state, the actions that update
// it, its query-string encoding and the local predicate applied to fetched batches.
package filter

import (
	"errors"
	"fmt"
)

// Field names as they appear on the wire (query strings, form posts).
const (
	FieldFileType  = "fileType"
	FieldMinSize   = "minSize"
	FieldMaxSize   = "maxSize"
	FieldStartDate = "startDate"
	FieldEndDate   = "endDate"
	FieldSearch    = "search"
)

// Fields lists every filter field in display order.
var Fields = []string{FieldSearch, FieldFileType, FieldMinSize, FieldMaxSize, FieldStartDate, FieldEndDate}

var ErrUnknownField = errors.New("unknown filter field")

// State is the single source of truth for both the remote query and the local predicate.
// All values are kept as entered; parsing happens where they are consumed.
type State struct {
	FileType  string `json:"fileType"`
	MinSize   string `json:"minSize"`
	MaxSize   string `json:"maxSize"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Search    string `json:"search"`
}

// IsZero reports whether every field is empty.
func (s State) IsZero() bool {
	return s == State{}
}

// Get returns the value of the named field.
func (s State) Get(field string) (string, error) {
	switch field {
	case FieldFileType:
		return s.FileType, nil
	case FieldMinSize:
		return s.MinSize, nil
	case FieldMaxSize:
		return s.MaxSize, nil
	case FieldStartDate:
		return s.StartDate, nil
	case FieldEndDate:
		return s.EndDate, nil
	case FieldSearch:
		return s.Search, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, field)
}

// Action is a single filter update. The set of actions is closed: only this package implements it.
type Action interface {
	apply(State) State
}

type (
	SetSearch    string
	SetFileType  string
	SetMinSize   string
	SetMaxSize   string
	SetStartDate string
	SetEndDate   string
	// Reset clears every field.
	Reset        struct{}
)

func (a SetSearch) apply(s State) State { s.Search = string(a); return s }
func (a SetFileType) apply(s State) State { s.FileType = string(a); return s }
func (a SetMinSize) apply(s State) State { s.MinSize = string(a); return s }
func (a SetMaxSize) apply(s State) State { s.MaxSize = string(a); return s }
func (a SetStartDate) apply(s State) State { s.StartDate = string(a); return s }
func (a SetEndDate) apply(s State) State { s.EndDate = string(a); return s }
func (Reset) apply(State) State { return State{} }

// Reduce returns the state after applying a. A nil action leaves s untouched.
func Reduce(s State, a Action) State {
	if a == nil {
		return s
	}
	return a.apply(s)
}

// ActionFor maps a wire field name and value onto the matching action.
func ActionFor(field, value string) (Action, error) {
	switch field {
	case FieldFileType:
		return SetFileType(value), nil
	case FieldMinSize:
		return SetMinSize(value), nil
	case FieldMaxSize:
		return SetMaxSize(value), nil
	case FieldStartDate:
		return SetStartDate(value), nil
	case FieldEndDate:
		return SetEndDate(value), nil
	case FieldSearch:
		return SetSearch(value), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
}
