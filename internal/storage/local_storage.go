package storage

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func isModelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".glb" || ext == ".gltf"
}

// ListModels returns the available model file names sorted alphabetically.
func (ls *LocalStorage) ListModels() ([]string, error) {
	entries, err := os.ReadDir(ls.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read models directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && isModelFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (ls *LocalStorage) OpenModel(name string) (io.ReadSeekCloser, error) {
	cleanPath := filepath.Clean(name)
	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid path")
	}

	fullPath := filepath.Join(ls.basePath, cleanPath)
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open model: %w", err)
	}
	return file, nil
}

func (ls *LocalStorage) SaveModel(file multipart.File, info FileInfo) (string, error) {
	ext := strings.ToLower(filepath.Ext(info.Filename))
	if ext != ".glb" && ext != ".gltf" {
		return "", fmt.Errorf("unsupported model format: %s", ext)
	}

	filename := fmt.Sprintf("%s%s", uuid.New().String(), ext)
	fullPath := filepath.Join(ls.basePath, filename)

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create model file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to save model file: %w", err)
	}

	return filename, nil
}

func (ls *LocalStorage) DeleteModel(name string) error {
	cleanPath := filepath.Clean(name)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("invalid path")
	}

	if err := os.Remove(filepath.Join(ls.basePath, cleanPath)); err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	return nil
}
