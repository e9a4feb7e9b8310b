package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage writes uploaded documents into the corpus directory the loader
// reads from. File names are sanitized to their base name so an upload can
// never escape the corpus root.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("corpus dir is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

// SaveDocument stores one uploaded file and returns the name it was saved
// under.
func (s *Storage) SaveDocument(_ context.Context, filename string, data io.Reader) (string, error) {
	name := sanitizeFilename(filename)
	if name == "" {
		return "", fmt.Errorf("empty document name")
	}

	path := filepath.Join(s.basePath, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return name, nil
}

func sanitizeFilename(filename string) string {
	name := strings.ReplaceAll(filename, `\`, "/")
	name = filepath.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
