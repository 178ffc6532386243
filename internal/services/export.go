package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/todoapi/apiserver/types"
)

const exportContentType = "application/json"

// ObjectStore is the subset of storage.Storage used for exports.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Bucket() string
}

// ExportService writes a snapshot of every user and their todos to object storage.
type ExportService struct {
	users   *UserService
	storage ObjectStore
	now     func() time.Time
}

func NewExportService(users *UserService, storage ObjectStore) *ExportService {
	return &ExportService{
		users:   users,
		storage: storage,
		now:     time.Now,
	}
}

// DefaultExportKey names a snapshot after the time it was taken.
func DefaultExportKey(t time.Time) string {
	return fmt.Sprintf("exports/users-%s.json", t.UTC().Format("20060102T150405Z"))
}

// Export uploads the snapshot under key, or under DefaultExportKey when key is
// empty, and returns the key used.
func (s *ExportService) Export(ctx context.Context, key string) (string, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list users: %w", err)
	}

	now := s.now().UTC()
	data, err := json.MarshalIndent(types.Snapshot{ExportedAt: now, Users: users}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultExportKey(now)
	}

	if err := s.storage.EnsureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket %s: %w", s.storage.Bucket(), err)
	}
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), exportContentType); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}
