package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/saarzint/AI-Agents-Geoferry/internal/platform/logger"
)

// Store holds the active policy. Readers never block on a reload.
type Store struct {
	path    string
	log     *logger.Logger
	current atomic.Pointer[Document]

	mu        sync.Mutex
	listeners []func(Document)
}

func NewStore(path string, baseLog *logger.Logger) (*Store, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	s := &Store{path: path, log: baseLog.With("component", "PolicyStore")}
	s.current.Store(&doc)
	return s, nil
}

func (s *Store) Current() Document {
	return *s.current.Load()
}

// OnChange registers fn to run after every successful reload.
func (s *Store) OnChange(fn func(Document)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Reload re-reads the policy file. A file that fails to parse or validate leaves the
// active policy untouched.
func (s *Store) Reload() error {
	doc, err := Load(s.path)
	if err != nil {
		return err
	}
	s.current.Store(&doc)
	s.mu.Lock()
	listeners := append([]func(Document){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(doc)
	}
	return nil
}

// Watch reloads the policy whenever its file changes, until ctx is done. The parent
// directory is watched so editors that replace the file by rename are picked up.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return fmt.Errorf("policy store has no file to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("policy watcher: %w", err)
	}
	target := filepath.Clean(s.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if err := s.Reload(); err != nil {
					s.log.Warn("policy reload rejected", "path", s.path, "error", err)
					continue
				}
				s.log.Info("policy reloaded", "path", s.path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("policy watcher error", "error", err)
			}
		}
	}()
	return nil
}
