package filter

import (
	"math"
	"strconv"
	"strings"

	"filepanel/internal/model"
)

const bytesPerKB = 1024

// Match reports whether rec passes the local predicate.
//
// StartDate and EndDate are deliberately not checked here: they only travel to
// the backend with the query, so date bounds are enforced server-side only.
func (s State) Match(rec model.FileRecord) bool {
	if s.Search != "" && !strings.Contains(strings.ToLower(rec.OriginalFilename), strings.ToLower(s.Search)) {
		return false
	}
	if s.FileType != "" && !strings.Contains(rec.FileType, s.FileType) {
		return false
	}
	if kb, ok := sizeBoundKB(s.MinSize); ok && float64(rec.Size) < kb*bytesPerKB {
		return false
	}
	if kb, ok := sizeBoundKB(s.MaxSize); ok && float64(rec.Size) > kb*bytesPerKB {
		return false
	}
	return true
}

// Apply returns the records of batch that match s, in their original order.
// batch itself is never modified.
func Apply(s State, batch []model.FileRecord) []model.FileRecord {
	out := make([]model.FileRecord, 0, len(batch))
	for _, rec := range batch {
		if s.Match(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// sizeBoundKB parses a kilobyte bound. Empty, non-numeric, infinite and zero
// values disable the bound. 0x, 0o and 0b prefixes read as integers.
func sizeBoundKB(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	kb, err := parseNumber(raw)
	if err != nil || math.IsNaN(kb) || math.IsInf(kb, 0) || kb == 0 {
		return 0, false
	}
	return kb, true
}

var radixPrefixes = map[string]int{"0x": 16, "0o": 8, "0b": 2}

func parseNumber(raw string) (float64, error) {
	if len(raw) > 2 {
		if base, ok := radixPrefixes[strings.ToLower(raw[:2])]; ok {
			n, err := strconv.ParseUint(raw[2:], base, 64)
			return float64(n), err
		}
	}
	return strconv.ParseFloat(raw, 64)
}
