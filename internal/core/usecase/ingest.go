package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/kirillkom/kb-router/internal/core/domain"
	"github.com/kirillkom/kb-router/internal/core/ports"
)

const defaultMaxUploadBytes = 10 << 20

var uploadExtensions = map[string]bool{
	".md":   true,
	".txt":  true,
	".csv":  true,
	".pdf":  true,
	".xlsx": true,
}

// IngestUseCase stores uploaded corpus documents and requests an async
// rebuild through the queue, so the upload request returns before the worker
// reindexes.
type IngestUseCase struct {
	storage        ports.DocumentStorage
	queue          ports.ReindexQueue
	maxUploadBytes int
	logger         *slog.Logger
}

func NewIngestUseCase(storage ports.DocumentStorage, queue ports.ReindexQueue, maxUploadBytes int, logger *slog.Logger) *IngestUseCase {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &IngestUseCase{storage: storage, queue: queue, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Upload is one incoming file.
type Upload struct {
	Filename string
	Data     []byte
}

func (uc *IngestUseCase) UploadDocuments(ctx context.Context, uploads []Upload) ([]domain.UploadedFile, error) {
	if len(uploads) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload documents", fmt.Errorf("no files uploaded"))
	}

	for _, up := range uploads {
		ext := strings.ToLower(filepath.Ext(up.Filename))
		if !uploadExtensions[ext] {
			return nil, domain.WrapError(domain.ErrInvalidInput, "upload documents",
				fmt.Errorf("unsupported file type: %s", up.Filename))
		}
		if len(up.Data) > uc.maxUploadBytes {
			return nil, domain.WrapError(domain.ErrInvalidInput, "upload documents",
				fmt.Errorf("file too large: %s", up.Filename))
		}
	}

	saved := make([]domain.UploadedFile, 0, len(uploads))
	for _, up := range uploads {
		name, err := uc.storage.SaveDocument(ctx, up.Filename, bytes.NewReader(up.Data))
		if err != nil {
			return nil, fmt.Errorf("save %s: %w", up.Filename, err)
		}
		saved = append(saved, domain.UploadedFile{Filename: name, Bytes: len(up.Data)})
	}

	if err := uc.queue.PublishReindexRequested(ctx, fmt.Sprintf("upload:%d files", len(saved))); err != nil {
		return nil, fmt.Errorf("request reindex: %w", err)
	}
	uc.logger.Info("documents uploaded", "files", len(saved))
	return saved, nil
}
