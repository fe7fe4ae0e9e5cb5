// Package store holds the single source of truth for configured databases,
// the current prompt, the latest results and the busy flag. Every mutation
// of databases or results is written through to a Persister.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/querydesk/querydesk-cli/internal/model"
)

var ErrNotFound = errors.New("database not found")

type Store struct {
	mu        sync.Mutex
	persister Persister
	log       logrus.FieldLogger
	now       func() time.Time

	databases []model.DatabaseConfig
	results   []model.DBResult
	prompt    string
	busy      bool
}

// New seeds a store from the persister. An unreadable mirror is logged and
// the store starts empty.
func New(p Persister, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Store{persister: p, log: log, now: time.Now}
	if err := s.Reload(); err != nil {
		log.WithError(err).Warn("Ignoring unreadable saved state")
	}
	return s
}

// Reload replaces in-memory databases and results with the persisted ones.
// On error the current state is left as it was. Load runs under the lock, so
// mutations wait for a reload in progress.
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.persister.Load()
	if err != nil {
		return err
	}
	s.databases = snap.Databases
	s.results = snap.Results
	return nil
}

func (s *Store) Databases() []model.DatabaseConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.DatabaseConfig(nil), s.databases...)
}

func (s *Store) Results() []model.DBResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.DBResult(nil), s.results...)
}

func (s *Store) Prompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prompt
}

func (s *Store) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Database looks up one config by id.
func (s *Store) Database(id int64) (model.DatabaseConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, db := range s.databases {
		if db.ID == id {
			return db, true
		}
	}
	return model.DatabaseConfig{}, false
}

// SetDatabases replaces the config list and persists it.
func (s *Store) SetDatabases(dbs []model.DatabaseConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(append([]model.DatabaseConfig(nil), dbs...), s.results)
}

// SetResults replaces the result list and persists it.
func (s *Store) SetResults(results []model.DBResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(s.databases, append([]model.DBResult(nil), results...))
}

// SetPrompt is in-memory only.
func (s *Store) SetPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = prompt
}

func (s *Store) SetBusy(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = busy
}

// ClearResults empties the in-memory result list without touching the mirror.
func (s *Store) ClearResults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = nil
}

// AddDatabase validates cfg, gives it a fresh id and appends it.
func (s *Store) AddDatabase(cfg model.DatabaseConfig) (model.DatabaseConfig, error) {
	if err := cfg.Validate(); err != nil {
		return model.DatabaseConfig{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg.ID = s.nextIDLocked()
	dbs := append(append(make([]model.DatabaseConfig, 0, len(s.databases)+1), s.databases...), cfg)
	if err := s.commitLocked(dbs, s.results); err != nil {
		return model.DatabaseConfig{}, err
	}
	return cfg, nil
}

// nextIDLocked uses the millisecond clock, bumped past every existing id so
// two configs added within the same millisecond stay distinct.
func (s *Store) nextIDLocked() int64 {
	id := s.now().UnixMilli()
	for _, db := range s.databases {
		if db.ID >= id {
			id = db.ID + 1
		}
	}
	return id
}

// RemoveDatabase drops the config with id and every result that came from
// it, then persists both lists.
func (s *Store) RemoveDatabase(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	dbs := make([]model.DatabaseConfig, 0, len(s.databases))
	for _, db := range s.databases {
		if db.ID == id {
			found = true
			continue
		}
		dbs = append(dbs, db)
	}
	if !found {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	results := make([]model.DBResult, 0, len(s.results))
	for _, r := range s.results {
		if r.DB.ID == id {
			continue
		}
		results = append(results, r)
	}

	return s.commitLocked(dbs, results)
}

// commitLocked saves the next state and only then makes it current. A failed
// save leaves the store untouched.
func (s *Store) commitLocked(dbs []model.DatabaseConfig, results []model.DBResult) error {
	err := s.persister.Save(Snapshot{
		Databases: append([]model.DatabaseConfig(nil), dbs...),
		Results:   append([]model.DBResult(nil), results...),
	})
	if err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	s.databases = dbs
	s.results = results
	return nil
}
