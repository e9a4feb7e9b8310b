package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/kb-router/internal/core/domain"
)

// FSLoader reads every supported document under one corpus directory.
// Individual files that fail to parse are logged and skipped; only a
// directory-level failure aborts the load.
type FSLoader struct {
	root   string
	logger *slog.Logger
}

func NewFSLoader(root string, logger *slog.Logger) *FSLoader {
	return &FSLoader{root: root, logger: logger}
}

var supportedExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".csv":  true,
	".pdf":  true,
	".xlsx": true,
}

func (l *FSLoader) LoadDocuments(ctx context.Context) ([]domain.Document, error) {
	absRoot, err := filepath.Abs(l.root)
	if err != nil {
		return nil, fmt.Errorf("resolve corpus dir: %w", err)
	}
	if _, err := os.Stat(absRoot); err != nil {
		return nil, fmt.Errorf("corpus dir: %w", err)
	}

	var docs []domain.Document
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !supportedExtensions[ext] {
			return nil
		}

		text, err := extractText(path, ext)
		if err != nil {
			l.logger.Warn("skipping unreadable document", "path", path, "error", err)
			return nil
		}
		if strings.TrimSpace(text) == "" {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		rel = filepath.ToSlash(rel)
		docs = append(docs, domain.Document{DocID: rel, Source: rel, Text: text})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus dir: %w", err)
	}

	// Deterministic order keeps chunk positions stable across rebuilds of an
	// unchanged corpus.
	sort.Slice(docs, func(i, j int) bool { return docs[i].DocID < docs[j].DocID })
	l.logger.Info("corpus loaded", "dir", absRoot, "docs", len(docs))
	return docs, nil
}

func extractText(path, ext string) (string, error) {
	switch ext {
	case ".md", ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case ".csv":
		return extractCSV(path)
	case ".pdf":
		return extractPDF(path)
	case ".xlsx":
		return extractXLSX(path)
	default:
		return "", fmt.Errorf("unsupported extension %q", ext)
	}
}

func extractCSV(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var b strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read csv: %w", err)
		}
		b.WriteString(strings.Join(record, ", "))
		b.WriteString("\n")
	}
	return b.String(), nil
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return string(data), nil
}

func extractXLSX(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		b.WriteString("# ")
		b.WriteString(sheet)
		b.WriteString("\n")
		for _, row := range rows {
			b.WriteString(strings.Join(row, ", "))
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}
