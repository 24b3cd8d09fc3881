package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// cacheFileExtension is the file extension used for cache entries.
const cacheFileExtension = ".json"

// FileStore keeps one JSON file per entry so cached yields survive restarts.
// Safe for concurrent use within one process.
type FileStore struct {
	directory string
	enabled   bool
	ttl       time.Duration
	now       func() time.Time

	mu sync.RWMutex
}

// NewFileStore creates the directory if needed. A disabled store answers
// every call with ErrDisabled.
func NewFileStore(directory string, enabled bool, ttl time.Duration) (*FileStore, error) {
	if !enabled {
		return &FileStore{enabled: false}, nil
	}

	if directory == "" {
		return nil, errors.New("cache directory cannot be empty")
	}

	if err := os.MkdirAll(directory, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &FileStore{
		directory: directory,
		enabled:   true,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// Get returns ErrNotFound for a missing file and ErrExpired for a stale one,
// which is removed.
func (s *FileStore) Get(key string) (*Entry, error) {
	if !s.enabled {
		return nil, ErrDisabled
	}

	if key == "" {
		return nil, ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.keyToFilePath(key)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	if entry.ExpiredAt(s.now()) {
		_ = os.Remove(filePath)
		return nil, ErrExpired
	}

	return &entry, nil
}

// Set writes to a temporary file and renames it into place.
func (s *FileStore) Set(key string, data json.RawMessage) error {
	if !s.enabled {
		return ErrDisabled
	}

	if key == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryData, err := json.MarshalIndent(newEntry(key, data, s.now(), s.ttl), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	filePath := s.keyToFilePath(key)
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, entryData, 0600); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	return nil
}

// Delete is idempotent.
func (s *FileStore) Delete(key string) error {
	if !s.enabled {
		return ErrDisabled
	}

	if key == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.keyToFilePath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}

	return nil
}

// CleanupExpired removes expired and unreadable entries and returns how
// many files were deleted.
func (s *FileStore) CleanupExpired() (int, error) {
	if !s.enabled {
		return 0, ErrDisabled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dirEntries, err := os.ReadDir(s.directory)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	now := s.now()
	removed := 0
	for _, dirEntry := range dirEntries {
		if dirEntry.IsDir() || filepath.Ext(dirEntry.Name()) != cacheFileExtension {
			continue
		}

		filePath := filepath.Join(s.directory, dirEntry.Name())
		data, readErr := os.ReadFile(filePath)
		if readErr != nil {
			continue
		}

		var entry Entry
		if json.Unmarshal(data, &entry) != nil || entry.ExpiredAt(now) {
			if os.Remove(filePath) == nil {
				removed++
			}
		}
	}

	return removed, nil
}

// Count returns the number of entry files, expired ones included.
func (s *FileStore) Count() (int, error) {
	if !s.enabled {
		return 0, ErrDisabled
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	dirEntries, err := os.ReadDir(s.directory)
	if err != nil {
		return 0, fmt.Errorf("failed to read cache directory: %w", err)
	}

	count := 0
	for _, e := range dirEntries {
		if !e.IsDir() && filepath.Ext(e.Name()) == cacheFileExtension {
			count++
		}
	}
	return count, nil
}

// IsEnabled reports whether the store was created enabled.
func (s *FileStore) IsEnabled() bool {
	return s.enabled
}

// keyToFilePath maps a key onto a file name; keys only carry digits, dots,
// minus signs and the pipe separator.
func (s *FileStore) keyToFilePath(key string) string {
	safeKey := strings.NewReplacer("|", "_", "/", "_", "\\", "_", ":", "_").Replace(key)
	return filepath.Join(s.directory, safeKey+cacheFileExtension)
}
