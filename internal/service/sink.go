package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DirSink saves downloads into Dir. Content lands in a hidden temp file and is
// renamed into place only once fully written, so a failed download never leaves
// a truncated file under the requested name. An existing file is replaced.
type DirSink struct {
	Dir string
}

var _ Sink = DirSink{}

// Create opens the temp file for filename. Only the base name of filename is used.
func (d DirSink) Create(filename string) (io.WriteCloser, error) {
	name := SafeFilename(filename)
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	tmp, err := os.CreateTemp(d.Dir, "."+name+".part-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &dirFile{File: tmp, final: filepath.Join(d.Dir, name)}, nil
}

type dirFile struct {
	*os.File
	final string
}

func (f *dirFile) Close() error {
	if err := f.File.Close(); err != nil {
		_ = os.Remove(f.File.Name())
		return err
	}
	if err := os.Rename(f.File.Name(), f.final); err != nil {
		_ = os.Remove(f.File.Name())
		return err
	}
	return nil
}

func (f *dirFile) Abort() error {
	_ = f.File.Close()
	return os.Remove(f.File.Name())
}

// SafeFilename strips directories and path tricks from a user-facing filename.
func SafeFilename(filename string) string {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(filename, "\\", "/")))
	switch name {
	case "", ".", "..", "/":
		return "download"
	}
	if name == string(filepath.Separator) {
		return "download"
	}
	return name
}
