package utils

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/stock_backend/config"
)

var ErrTokenNotFound = errors.New("temp url token not found or expired")

type tempURLEntry struct {
	FilePath string    `json:"file_path"`
	Expiry   time.Time `json:"expiry"`
}

// TempURLManager hands out opaque download tokens for local report files.
// The registry is persisted as JSON so tokens survive a restart.
type TempURLManager struct {
	mu   sync.Mutex
	path string
	urls map[string]tempURLEntry
	now  func() time.Time
}

func NewTempURLManager(registryPath string) *TempURLManager {
	m := &TempURLManager{
		path: registryPath,
		urls: make(map[string]tempURLEntry),
		now:  time.Now,
	}
	m.load()
	return m
}

// WithClock replaces the time source, used by tests.
func (m *TempURLManager) WithClock(now func() time.Time) *TempURLManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

func (m *TempURLManager) load() {
	if err := ReadJSON(m.path, &m.urls); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			config.GetLogger().WithField("path", m.path).Warnf("temp url registry unreadable, starting empty: %v", err)
		}
		m.urls = make(map[string]tempURLEntry)
	}
	if m.urls == nil {
		m.urls = make(map[string]tempURLEntry)
	}
}

func (m *TempURLManager) save() error {
	return WriteJSONAtomic(m.path, m.urls)
}

// Generate registers filePath for duration and returns the token.
func (m *TempURLManager) Generate(filePath string, duration time.Duration) (string, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := uuid.NewString()
	expiry := m.now().Add(duration)
	m.urls[token] = tempURLEntry{FilePath: filePath, Expiry: expiry}
	if err := m.save(); err != nil {
		delete(m.urls, token)
		return "", time.Time{}, err
	}
	return token, expiry, nil
}

// FilePath resolves a token. Expired tokens are purged on read.
func (m *TempURLManager) FilePath(token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.urls[token]
	if !ok {
		return "", ErrTokenNotFound
	}
	if m.now().After(entry.Expiry) {
		delete(m.urls, token)
		if err := m.save(); err != nil {
			config.GetLogger().WithField("path", m.path).Errorf("failed to persist temp url registry: %v", err)
		}
		return "", ErrTokenNotFound
	}
	return entry.FilePath, nil
}

// Purge drops every expired token and returns how many were removed.
func (m *TempURLManager) Purge() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for token, entry := range m.urls {
		if now.After(entry.Expiry) {
			delete(m.urls, token)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, m.save()
}
