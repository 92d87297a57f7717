package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// FileRecord represents one uploaded file as reported by the file backend.
// The list endpoint returns these as immutable snapshots; nothing here mutates them.
type FileRecord struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	FileType         string    `json:"file_type"`
	Size             int64     `json:"size"`
	UploadedAt       time.Time `json:"uploaded_at"`
	File             string    `json:"file"`
	FileHash         string    `json:"file_hash,omitempty"`
}

// UnmarshalJSON accepts uploaded_at with or without a zone offset, since
// backends running without time zone support emit naive timestamps.
func (f *FileRecord) UnmarshalJSON(data []byte) error {
	type plain FileRecord
	aux := struct {
		*plain
		UploadedAt string `json:"uploaded_at"`
	}{plain: (*plain)(f)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	at, err := ParseTimestamp(aux.UploadedAt)
	if err != nil {
		return fmt.Errorf("file %s: %w", f.ID, err)
	}
	f.UploadedAt = at
	return nil
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses an RFC 3339 timestamp, falling back to ISO 8601
// without an offset, which is read as UTC. An empty string is the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

var ErrMalformedUploadResult = errors.New("upload result must carry exactly one of id or file_id")

// UploadResult is the backend's answer to an upload.
// A new file carries ID; a duplicate carries FileID, Message and optionally StorageSavings.
type UploadResult struct {
	ID               string `json:"id,omitempty"`
	FileID           string `json:"file_id,omitempty"`
	OriginalFilename string `json:"original_filename,omitempty"`
	Message          string `json:"message,omitempty"`
	StorageSavings   string `json:"storage_savings,omitempty"`
}

// IsDuplicate reports whether the backend matched an existing file instead of storing a new one.
func (u UploadResult) IsDuplicate() bool {
	return u.FileID != ""
}

// Validate enforces that exactly one outcome is populated.
func (u UploadResult) Validate() error {
	if (u.ID == "") == (u.FileID == "") {
		return ErrMalformedUploadResult
	}
	return nil
}

// TargetID returns the id of the file the upload resolved to, new or existing.
func (u UploadResult) TargetID() string {
	if u.IsDuplicate() {
		return u.FileID
	}
	return u.ID
}
