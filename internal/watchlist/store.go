// Package watchlist persists the set of tickers selected for close monitoring.
package watchlist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"KabuSentinel/internal/model"
)

// Store loads and saves the whole watchlist at once.
type Store interface {
	Load() ([]model.WatchlistEntry, error)
	Save(entries []model.WatchlistEntry) error
}

// FileStore keeps the watchlist in a JSON file.
type FileStore struct {
	Path string

	mu     sync.Mutex
	logger zerolog.Logger
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		Path:   path,
		logger: log.With().Str("component", "watchlist").Logger(),
	}
}

// Load returns the stored entries. A missing file is an empty list; so is an unreadable
// one, after a warning.
func (s *FileStore) Load() ([]model.WatchlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.WatchlistEntry{}, nil
		}
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	var entries []model.WatchlistEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn().Err(err).Str("path", s.Path).Msg("corrupt watchlist file, starting empty")
		return []model.WatchlistEntry{}, nil
	}
	if entries == nil {
		entries = []model.WatchlistEntry{}
	}
	return entries, nil
}

// Save rewrites the file with entries. An empty list is written as [].
func (s *FileStore) Save(entries []model.WatchlistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entries == nil {
		entries = []model.WatchlistEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create watchlist dir: %w", err)
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write watchlist: %w", err)
	}
	return os.Rename(tmp, s.Path)
}
