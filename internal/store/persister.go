package store

import (
	"encoding/json"
	"fmt"

	"github.com/querydesk/querydesk-cli/internal/mirror"
	"github.com/querydesk/querydesk-cli/internal/model"
)

// Snapshot is the part of the store that survives restarts.
type Snapshot struct {
	Databases []model.DatabaseConfig
	Results   []model.DBResult
}

// Persister loads and saves snapshots.
type Persister interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// MirrorPersister stores each list as a JSON array under its own mirror key.
type MirrorPersister struct {
	Storage mirror.Storage
}

func NewMirrorPersister(s mirror.Storage) *MirrorPersister {
	return &MirrorPersister{Storage: s}
}

func (p *MirrorPersister) Load() (Snapshot, error) {
	var snap Snapshot
	if err := p.loadKey(mirror.KeyDatabases, &snap.Databases); err != nil {
		return Snapshot{}, err
	}
	if err := p.loadKey(mirror.KeyResults, &snap.Results); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (p *MirrorPersister) loadKey(key string, dst any) error {
	data, ok, err := p.Storage.GetItem(key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	return nil
}

func (p *MirrorPersister) Save(snap Snapshot) error {
	dbs := snap.Databases
	if dbs == nil {
		dbs = []model.DatabaseConfig{}
	}
	results := snap.Results
	if results == nil {
		results = []model.DBResult{}
	}

	dbData, err := json.Marshal(dbs)
	if err != nil {
		return fmt.Errorf("encode %s: %w", mirror.KeyDatabases, err)
	}
	resData, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode %s: %w", mirror.KeyResults, err)
	}

	if err := p.Storage.SetItem(mirror.KeyDatabases, dbData); err != nil {
		return fmt.Errorf("write %s: %w", mirror.KeyDatabases, err)
	}
	if err := p.Storage.SetItem(mirror.KeyResults, resData); err != nil {
		return fmt.Errorf("write %s: %w", mirror.KeyResults, err)
	}
	return nil
}
