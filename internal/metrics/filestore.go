package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore persists the latest record to a JSON file with replace-on-write
// so concurrent readers never observe a torn document.
type FileStore struct {
	path string
}

// NewFileStore creates the parent directory and seeds the file with an
// empty record so readers always find a valid document.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create metrics directory: %w", err)
		}
	}
	if err := fs.Write(Empty()); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FileStore) Write(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace metrics file: %w", err)
	}
	return nil
}

// Read returns the last written record.
func (fs *FileStore) Read() (Record, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		return Record{}, fmt.Errorf("failed to read metrics file: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode metrics file: %w", err)
	}
	return rec, nil
}
