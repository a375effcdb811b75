// Package store is a durable, best-effort string key-value store shared by
// independent views. Each key is a file under the store directory; change
// notifications cover both in-process writes and external ones (another
// process writing the same directory) via fsnotify.
package store

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// Keys of the persisted session record.
const (
	KeySessionDuration   = "session.duration"   // elapsed ms, numeric string
	KeySessionResolution = "session.resolution" // display string, e.g. "1920 × 1080"
	KeySessionStart      = "session.start"      // unix ms, numeric string
	KeySessionFrame      = "session.frame"      // encoded still image (data URL)
)

const tmpSuffix = ".tmp"

// Store is a file-backed key-value store with change notifications.
type Store struct {
	dir       string
	fsWatcher *fsnotify.Watcher
	cancel    chan struct{}

	subMu       sync.RWMutex
	subscribers map[string]chan string
}

// Open creates the store directory if needed and starts watching it.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create store watcher: %w", err)
	}
	if err := fsW.Add(dir); err != nil {
		fsW.Close()
		return nil, fmt.Errorf("watch store directory: %w", err)
	}

	s := &Store{
		dir:         dir,
		fsWatcher:   fsW,
		cancel:      make(chan struct{}),
		subscribers: make(map[string]chan string),
	}
	go s.watchLoop()

	return s, nil
}

// Get returns the value for key and whether it exists.
func (s *Store) Get(key string) (string, bool) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// Set writes a value atomically (temp file + rename).
func (s *Store) Set(key, value string) error {
	tmp := s.path(key) + tmpSuffix
	if err := os.WriteFile(tmp, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Remove deletes a key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Subscribe registers a change listener. The channel receives the key that
// changed; slow listeners drop notifications rather than block writers.
func (s *Store) Subscribe() (string, <-chan string) {
	subID := uuid.New().String()
	ch := make(chan string, 32)

	s.subMu.Lock()
	s.subscribers[subID] = ch
	s.subMu.Unlock()

	return subID, ch
}

// Unsubscribe removes a change listener.
func (s *Store) Unsubscribe(subID string) {
	s.subMu.Lock()
	if ch, exists := s.subscribers[subID]; exists {
		close(ch)
		delete(s.subscribers, subID)
	}
	s.subMu.Unlock()
}

// Close stops the watcher. Subscriber channels stop receiving after Close.
func (s *Store) Close() {
	close(s.cancel)
	s.fsWatcher.Close()
}

// watchLoop forwards filesystem events as key change notifications.
func (s *Store) watchLoop() {
	for {
		select {
		case <-s.cancel:
			return

		case event, ok := <-s.fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			key := filepath.Base(event.Name)
			if strings.HasSuffix(key, tmpSuffix) || strings.HasPrefix(key, ".") {
				continue
			}
			s.notify(key)

		case err, ok := <-s.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Printf("store watcher error: %v", err)
		}
	}
}

func (s *Store) notify(key string) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- key:
		default:
			// Listener buffer full, drop the notification.
		}
	}
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key)
}
