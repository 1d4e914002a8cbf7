// Package session keeps the single process-wide credential on disk and
// tells subscribers when it appears or disappears, including changes made
// by other processes sharing the same directory.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"fintrack/internal/log"
)

// TokenFile is the well-known name of the credential inside the session dir.
const TokenFile = "token"

type State int

const (
	Guest State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "guest"
}

func stateOf(token string) State {
	if token == "" {
		return Guest
	}
	return Authenticated
}

// Service owns the credential. All file access and the cached token are
// guarded by mu so a reload can never resurrect a cleared credential.
type Service struct {
	dir    string
	path   string
	logger *log.Logger

	mu    sync.RWMutex
	token string

	subsMu sync.Mutex
	subs   map[int]chan State
	nextID int

	watcher   *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Open loads the credential stored in dir and starts watching for changes.
func Open(dir string, logger *log.Logger) (*Service, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	s := &Service{
		dir:    dir,
		path:   filepath.Join(dir, TokenFile),
		logger: logger.WithComponent(log.ComponentSession),
		subs:   make(map[int]chan State),
		done:   make(chan struct{}),
	}
	token, err := s.read()
	if err != nil {
		return nil, err
	}
	s.token = token

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create session watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch session dir: %w", err)
	}
	s.watcher = w
	s.wg.Add(1)
	go s.watch()

	s.logger.Info("Session opened", log.FieldState, stateOf(token).String())
	return s, nil
}

// Credential returns the stored credential, if any.
func (s *Service) Credential() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stateOf(s.token)
}

// Set persists token atomically with owner-only permissions.
func (s *Service) Set(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty credential")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, "."+TokenFile+"-*")
	if err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write credential: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write credential: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write credential: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write credential: %w", err)
	}
	s.swap(token)
	return nil
}

// Clear removes the credential. Clearing an absent credential is not an error.
func (s *Service) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear credential: %w", err)
	}
	s.swap("")
	return nil
}

// Subscribe returns a channel receiving the new State after each change.
// Only the latest state is kept for slow readers. cancel releases the
// subscription and closes the channel.
func (s *Service) Subscribe() (<-chan State, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	id := s.nextID
	s.nextID++
	ch := make(chan State, 1)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Close stops the watcher and closes every subscription.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.watcher.Close()
		s.wg.Wait()

		s.subsMu.Lock()
		for id, ch := range s.subs {
			delete(s.subs, id)
			close(ch)
		}
		s.subsMu.Unlock()
	})
	return err
}

func (s *Service) watch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != TokenFile {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.reload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("Session watch error",
				log.FieldOperation, log.OpWatch,
				log.FieldError, err.Error())
		}
	}
}

func (s *Service) reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, err := s.read()
	if err != nil {
		s.logger.Warn("Failed to reload credential", log.FieldError, err.Error())
		return
	}
	s.swap(token)
}

// swap installs token and notifies subscribers when the state flips.
// Callers hold mu.
func (s *Service) swap(token string) {
	before := stateOf(s.token)
	s.token = token
	after := stateOf(token)
	if before == after {
		return
	}
	s.logger.Info("Session state changed", log.FieldState, after.String())
	s.broadcast(after)
}

func (s *Service) broadcast(st State) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

func (s *Service) read() (string, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
