package store

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querydesk/querydesk-cli/internal/mirror"
	"github.com/querydesk/querydesk-cli/internal/model"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestStore(t *testing.T) (*Store, *mirror.MemoryStorage) {
	t.Helper()
	mem := mirror.NewMemoryStorage()
	return New(NewMirrorPersister(mem), quietLogger()), mem
}

func db(id int64) model.DatabaseConfig {
	return model.DatabaseConfig{ID: id, Type: "mongo", Host: "localhost", Port: 27017, User: "admin"}
}

func TestStore_StartsEmptyWithoutMirror(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Empty(t, s.Databases())
	assert.Empty(t, s.Results())
	assert.Empty(t, s.Prompt())
	assert.False(t, s.Busy())
}

func TestStore_SetDatabasesPersists(t *testing.T) {
	s, mem := newTestStore(t)
	require.NoError(t, s.SetDatabases([]model.DatabaseConfig{db(1), db(2)}))

	raw, ok, err := mem.GetItem(mirror.KeyDatabases)
	require.NoError(t, err)
	require.True(t, ok)

	var saved []model.DatabaseConfig
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Equal(t, []model.DatabaseConfig{db(1), db(2)}, saved)
}

func TestStore_SetPromptIsNotPersisted(t *testing.T) {
	s, mem := newTestStore(t)
	s.SetPrompt("list all users")
	assert.Equal(t, "list all users", s.Prompt())

	_, ok, err := mem.GetItem(mirror.KeyDatabases)
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded := New(NewMirrorPersister(mem), quietLogger())
	assert.Empty(t, reloaded.Prompt())
}

func TestStore_RemoveDatabaseCascadesResults(t *testing.T) {
	s, mem := newTestStore(t)
	require.NoError(t, s.SetDatabases([]model.DatabaseConfig{db(1), db(2)}))
	require.NoError(t, s.SetResults([]model.DBResult{{DB: db(1)}, {DB: db(2)}}))

	require.NoError(t, s.RemoveDatabase(1))

	assert.Equal(t, []model.DatabaseConfig{db(2)}, s.Databases())
	assert.Equal(t, []model.DBResult{{DB: db(2)}}, s.Results())

	reloaded := New(NewMirrorPersister(mem), quietLogger())
	assert.Equal(t, []model.DatabaseConfig{db(2)}, reloaded.Databases())
	require.Len(t, reloaded.Results(), 1)
	assert.Equal(t, int64(2), reloaded.Results()[0].DB.ID)
}

func TestStore_RemoveUnknownDatabase(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.SetDatabases([]model.DatabaseConfig{db(1)}))

	err := s.RemoveDatabase(99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Len(t, s.Databases(), 1)
}

func TestStore_AddDatabase(t *testing.T) {
	s, _ := newTestStore(t)
	fixed := time.UnixMilli(1_700_000_000_000)
	s.now = func() time.Time { return fixed }

	first, err := s.AddDatabase(model.DatabaseConfig{Type: "mongo", Host: "a", User: "u", Port: 27017})
	require.NoError(t, err)
	second, err := s.AddDatabase(model.DatabaseConfig{Type: "mongo", Host: "a", User: "u", Port: 27017})
	require.NoError(t, err)

	assert.Equal(t, fixed.UnixMilli(), first.ID)
	assert.Equal(t, fixed.UnixMilli()+1, second.ID, "same-millisecond adds get distinct ids")
	assert.Len(t, s.Databases(), 2, "duplicate hosts are allowed")
}

func TestStore_AddDatabaseRejectsInvalid(t *testing.T) {
	s, mem := newTestStore(t)

	_, err := s.AddDatabase(model.DatabaseConfig{Type: "mongo", Host: "h"})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)

	assert.Empty(t, s.Databases())
	_, ok, _ := mem.GetItem(mirror.KeyDatabases)
	assert.False(t, ok, "nothing is persisted for a rejected config")
}

func TestStore_RoundTripThroughMirror(t *testing.T) {
	mem := mirror.NewMemoryStorage()
	s := New(NewMirrorPersister(mem), quietLogger())

	var res model.ResultSet
	require.NoError(t, json.Unmarshal([]byte(`{"users":[{"name":"ann","age":31}],"orders":[]}`), &res))
	var q model.QueryInfo
	require.NoError(t, json.Unmarshal([]byte(`{"action":"read","collection":["users","orders"],"query":{"filter":{}}}`), &q))

	dbs := []model.DatabaseConfig{db(1), {ID: 2, Type: "PostgreSQL", Host: "pg", Port: 5432, User: "root", Password: "pw", Database: "shop"}}
	results := []model.DBResult{
		{DB: dbs[0], Query: &q, Result: &res},
		{DB: dbs[1], Error: "connection refused"},
	}
	require.NoError(t, s.SetDatabases(dbs))
	require.NoError(t, s.SetResults(results))

	reloaded := New(NewMirrorPersister(mem), quietLogger())
	assert.Equal(t, dbs, reloaded.Databases())
	assert.Equal(t, results, reloaded.Results())
}

func TestStore_CorruptMirror(t *testing.T) {
	mem := mirror.NewMemoryStorage()
	require.NoError(t, mem.SetItem(mirror.KeyDatabases, []byte(`{not json`)))

	s := New(NewMirrorPersister(mem), quietLogger())
	assert.Empty(t, s.Databases(), "corrupt mirror starts empty")

	require.NoError(t, mem.SetItem(mirror.KeyDatabases, []byte(`[{"id":5,"type":"mysql","host":"h","port":3306,"user":"u"}]`)))
	require.NoError(t, s.Reload())
	require.Len(t, s.Databases(), 1)

	require.NoError(t, mem.SetItem(mirror.KeyResults, []byte(`[`)))
	assert.Error(t, s.Reload())
	assert.Len(t, s.Databases(), 1, "failed reload keeps previous state")
}

type failingPersister struct{}

func (failingPersister) Load() (Snapshot, error) { return Snapshot{}, nil }
func (failingPersister) Save(Snapshot) error     { return errors.New("disk full") }

func TestStore_SaveErrorsSurface(t *testing.T) {
	s := New(failingPersister{}, quietLogger())
	err := s.SetDatabases([]model.DatabaseConfig{db(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

// flakyPersister wraps a persister and fails saves while broken is set.
type flakyPersister struct {
	Persister
	broken bool
}

func (p *flakyPersister) Save(snap Snapshot) error {
	if p.broken {
		return errors.New("disk full")
	}
	return p.Persister.Save(snap)
}

func TestStore_FailedSaveLeavesStateUnchanged(t *testing.T) {
	mem := mirror.NewMemoryStorage()
	p := &flakyPersister{Persister: NewMirrorPersister(mem)}
	s := New(p, quietLogger())
	require.NoError(t, s.SetDatabases([]model.DatabaseConfig{db(1), db(2)}))
	require.NoError(t, s.SetResults([]model.DBResult{{DB: db(1)}, {DB: db(2)}}))

	p.broken = true

	_, err := s.AddDatabase(model.DatabaseConfig{Type: "mongo", Host: "h", User: "u"})
	require.Error(t, err)
	assert.Equal(t, []model.DatabaseConfig{db(1), db(2)}, s.Databases(), "failed add keeps the old list")

	require.Error(t, s.RemoveDatabase(1))
	assert.Len(t, s.Databases(), 2, "failed remove keeps the database")
	assert.Len(t, s.Results(), 2, "failed remove keeps its results")

	require.Error(t, s.SetDatabases(nil))
	assert.Len(t, s.Databases(), 2)

	require.Error(t, s.SetResults(nil))
	assert.Len(t, s.Results(), 2)

	p.broken = false
	_, err = s.AddDatabase(model.DatabaseConfig{Type: "mongo", Host: "h", User: "u"})
	require.NoError(t, err)
	assert.Len(t, s.Databases(), 3)
}

// gatedPersister blocks Load until release is closed.
type gatedPersister struct {
	Persister
	loading chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *gatedPersister) Load() (Snapshot, error) {
	snap, err := p.Persister.Load()
	if p.loading != nil {
		p.once.Do(func() { close(p.loading) })
		<-p.release
	}
	return snap, err
}

func TestStore_ReloadDoesNotOverwriteLaterChange(t *testing.T) {
	mem := mirror.NewMemoryStorage()
	s := New(NewMirrorPersister(mem), quietLogger())
	require.NoError(t, s.SetDatabases([]model.DatabaseConfig{db(1)}))

	gated := &gatedPersister{
		Persister: NewMirrorPersister(mem),
		loading:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	s.persister = gated

	reloaded := make(chan error, 1)
	go func() { reloaded <- s.Reload() }()
	<-gated.loading

	added := make(chan error, 1)
	go func() { added <- s.SetDatabases([]model.DatabaseConfig{db(1), db(2)}) }()

	select {
	case <-added:
		t.Fatal("mutation must wait for the reload in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(gated.release)
	require.NoError(t, <-reloaded)
	require.NoError(t, <-added)
	assert.Equal(t, []model.DatabaseConfig{db(1), db(2)}, s.Databases())
}

func TestStore_ClearResultsKeepsMirror(t *testing.T) {
	s, mem := newTestStore(t)
	require.NoError(t, s.SetResults([]model.DBResult{{DB: db(1)}}))
	s.ClearResults()
	assert.Empty(t, s.Results())

	raw, ok, err := mem.GetItem(mirror.KeyResults)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"id":1`)
}
