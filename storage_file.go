package chatbridge

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/boat-builder/chatbridge/memory"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

var _ Storage = &FileStorage{}

// FileStorage keeps the whole snapshot in a single object. The location may
// be a local path or any afs URL (mem://, s3://, gs://).
type FileStorage struct {
	fs     afs.Service
	url    string
	logger *slog.Logger
}

const DefaultSnapshotFile = "memories.json"

func NewFileStorage(location string) *FileStorage {
	if location == "" {
		location = DefaultSnapshotFile
	}
	if url.Scheme(location, "") == "" {
		if abs, err := filepath.Abs(location); err == nil {
			location = abs
		}
	}
	return &FileStorage{
		fs:     afs.New(),
		url:    location,
		logger: slog.Default(),
	}
}

func (s *FileStorage) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

func (s *FileStorage) URL() string {
	return s.url
}

func (s *FileStorage) LoadAll(ctx context.Context) (map[string]memory.State, error) {
	exists, err := s.fs.Exists(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to check snapshot: %w", err)
	}
	if !exists {
		s.logger.Info("no snapshot found, starting empty", "url", s.url)
		return map[string]memory.State{}, nil
	}
	data, err := s.fs.DownloadWithURL(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	snapshot, err := DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	return snapshot.Users, nil
}

func (s *FileStorage) SaveAll(ctx context.Context, users map[string]memory.State) error {
	data, err := EncodeSnapshot(users)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := s.fs.Upload(ctx, s.url, 0o644, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func (s *FileStorage) Close() error {
	return nil
}
