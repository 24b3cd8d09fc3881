// Package cache stores provider yield responses keyed by the six request
// parameters that determine them. Entries expire after a fixed TTL; yield
// data for a location changes slowly, so the default is a day.
package cache

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is the shortest TTL the provider data should be kept for.
const DefaultTTL = 24 * time.Hour

// Common cache errors.
var (
	ErrNotFound   = errors.New("cache entry not found")
	ErrExpired    = errors.New("cache entry expired")
	ErrInvalidKey = errors.New("cache key cannot be empty")
	ErrDisabled   = errors.New("cache is disabled")
)

// Store is implemented by MemoryStore and FileStore.
type Store interface {
	Get(key string) (*Entry, error)
	Set(key string, data json.RawMessage) error
	Delete(key string) error
}

// Entry is one cached response.
type Entry struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func newEntry(key string, data json.RawMessage, now time.Time, ttl time.Duration) *Entry {
	return &Entry{
		Key:       key,
		Data:      data,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// ExpiredAt reports whether the entry is past its expiry at now.
func (e *Entry) ExpiredAt(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Age is the time since the entry was written.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// Key builds the lookup key. Coordinates keep 4 decimals (about 11 m), peak
// power 2, loss 1, and the angles are whole degrees.
func Key(lat, lon, peakPowerKwp, lossPct, angleDeg, aspectDeg float64) string {
	return strings.Join([]string{
		fixed(lat, 4),
		fixed(lon, 4),
		fixed(peakPowerKwp, 2),
		fixed(lossPct, 1),
		fixed(angleDeg, 0),
		fixed(aspectDeg, 0),
	}, "|")
}

func fixed(v float64, prec int) string {
	s := strconv.FormatFloat(v, 'f', prec, 64)
	// -0.3 rounds to "-0"; keep one spelling of zero.
	if strings.Trim(s, "-0.") == "" {
		s = strings.TrimPrefix(s, "-")
	}
	return s
}

// Open picks a store: ErrDisabled for every call when disabled, a
// FileStore when directory is set, otherwise a MemoryStore.
func Open(directory string, enabled bool, ttl time.Duration) (Store, error) {
	if !enabled || directory != "" {
		return NewFileStore(directory, enabled, ttl)
	}
	return NewMemoryStore(ttl), nil
}
