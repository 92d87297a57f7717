package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

const cacheKeyPrefix = "files:"

// Values encodes all six fields. Empty fields are passed empty, never dropped,
// so the backend sees the same parameter set on every request.
func (s State) Values() url.Values {
	v := make(url.Values, len(Fields))
	v.Set(FieldFileType, s.FileType)
	v.Set(FieldMinSize, s.MinSize)
	v.Set(FieldMaxSize, s.MaxSize)
	v.Set(FieldStartDate, s.StartDate)
	v.Set(FieldEndDate, s.EndDate)
	v.Set(FieldSearch, s.Search)
	return v
}

// Encode returns the query string. Keys are sorted, so equal states encode identically.
func (s State) Encode() string {
	return s.Values().Encode()
}

// CacheKey is the content address of the canonical filter tuple.
func (s State) CacheKey() string {
	sum := sha256.Sum256([]byte(s.Encode()))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// FromValues reads the six filter fields from v. Unknown keys are ignored.
func FromValues(v url.Values) State {
	return State{
		FileType:  v.Get(FieldFileType),
		MinSize:   v.Get(FieldMinSize),
		MaxSize:   v.Get(FieldMaxSize),
		StartDate: v.Get(FieldStartDate),
		EndDate:   v.Get(FieldEndDate),
		Search:    v.Get(FieldSearch),
	}
}
