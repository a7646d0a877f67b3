package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
)

// FileStore keeps one JSON file per record under a data directory.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) Save(ctx context.Context, rec *Record) error {
	data, err := sonic.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.path(rec.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write record %s: %w", rec.ID, err)
	}
	return os.Rename(tmp, s.path(rec.ID))
}

func (s *FileStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rec Record
	if err := sonic.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	return &rec, nil
}

func (s *FileStore) List(ctx context.Context, f Filter) ([]*Record, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 50
	}

	s.mu.RLock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.mu.RUnlock()
		return nil, 0, err
	}

	var all []*Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var rec Record
		if sonic.Unmarshal(data, &rec) != nil {
			continue
		}
		if f.Type != "" && rec.BenchmarkType != f.Type {
			continue
		}
		all = append(all, &rec)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	start := (f.Page - 1) * f.Limit
	if start >= total {
		return []*Record{}, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}
