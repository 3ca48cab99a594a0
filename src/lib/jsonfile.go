package lib

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStatus classifies the outcome of reading a JSON file.
type FileStatus int

const (
	// FileFound means the file existed and decoded cleanly.
	FileFound FileStatus = iota
	// FileAbsent means there was no file at the path.
	FileAbsent
	// FileCorrupt means the file existed but could not be read or decoded.
	FileCorrupt
)

// String returns a human-readable file status.
func (s FileStatus) String() string {
	switch s {
	case FileFound:
		return "found"
	case FileAbsent:
		return "absent"
	case FileCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// FileResult is Found(Value) | Absent | Corrupt(Err). Callers decide what an
// absent or corrupt file means for them.
type FileResult[T any] struct {
	Value  T
	Err    error
	Status FileStatus
}

// Found wraps a decoded value.
func Found[T any](v T) FileResult[T] {
	return FileResult[T]{Status: FileFound, Value: v}
}

// Absent reports a missing file.
func Absent[T any]() FileResult[T] {
	return FileResult[T]{Status: FileAbsent}
}

// Corrupt reports an unreadable or undecodable file.
func Corrupt[T any](err error) FileResult[T] {
	return FileResult[T]{Status: FileCorrupt, Err: err}
}

// IsFound reports whether the result holds a value.
func (r FileResult[T]) IsFound() bool {
	return r.Status == FileFound
}

// ReadFileFunc matches os.ReadFile and lets tests inject failures.
type ReadFileFunc func(string) ([]byte, error)

// ReadJSONFile reads and decodes path into a T.
func ReadJSONFile[T any](readFile ReadFileFunc, path string) FileResult[T] {
	if readFile == nil {
		readFile = os.ReadFile
	}
	data, err := readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Absent[T]()
		}
		return Corrupt[T](fmt.Errorf("read %s: %w", path, err))
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return Corrupt[T](fmt.Errorf("parse %s: %w", path, err))
	}
	return Found(v)
}

// WriteJSONFileAtomic replaces path with the indented JSON encoding of v.
// The data goes to a sibling temp file first and is renamed over path, so
// readers see either the old or the new content, never a partial write.
func WriteJSONFileAtomic(path string, v interface{}, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename temp: %w", err)
	}
	return nil
}
