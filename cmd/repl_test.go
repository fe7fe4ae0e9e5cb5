package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/peterh/liner"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querydesk/querydesk-cli/internal/client"
	"github.com/querydesk/querydesk-cli/internal/config"
	"github.com/querydesk/querydesk-cli/internal/dispatch"
	"github.com/querydesk/querydesk-cli/internal/mirror"
	"github.com/querydesk/querydesk-cli/internal/store"
)

// scriptedLine replays inputs and records history.
type scriptedLine struct {
	inputs    []string
	passwords []string
	history   []string
	prompts   []string
}

func (l *scriptedLine) Prompt(prompt string) (string, error) {
	l.prompts = append(l.prompts, prompt)
	if len(l.inputs) == 0 {
		return "", io.EOF
	}
	in := l.inputs[0]
	l.inputs = l.inputs[1:]
	if in == "^C" {
		return "", liner.ErrPromptAborted
	}
	return in, nil
}

func (l *scriptedLine) PasswordPrompt(prompt string) (string, error) {
	if len(l.passwords) == 0 {
		return "", io.EOF
	}
	pw := l.passwords[0]
	l.passwords = l.passwords[1:]
	return pw, nil
}

func (l *scriptedLine) AppendHistory(item string) {
	l.history = append(l.history, item)
}

func newTestApp(t *testing.T, serverURL string) *app {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := &config.Config{}
	cfg.Backend.URL = serverURL
	cfg.Dispatch.Concurrency = 1

	mem := mirror.NewMemoryStorage()
	c := client.NewClient(serverURL, "/api", time.Second)
	st := store.New(store.NewMirrorPersister(mem), log)
	return &app{
		cfg:        cfg,
		log:        log,
		storage:    mem,
		store:      st,
		client:     c,
		dispatcher: dispatch.New(c, st, log),
		display:    displayOptions{Plain: true, MaxColWidth: 32, Format: outputTable},
	}
}

func TestReplLoop_AddAskAndExit(t *testing.T) {
	agent := &fakeAgent{}
	srv := httptest.NewServer(agent)
	defer srv.Close()

	a := newTestApp(t, srv.URL)
	line := &scriptedLine{
		inputs: []string{
			"\\add", "mongo", "db1", "", "admin", "shop",
			"\\dbs",
			"how many users?",
			"\\results",
			"\\bogus",
			"exit",
			"never read",
		},
		passwords: []string{"secret"},
	}
	out := new(bytes.Buffer)

	require.NoError(t, replLoop(context.Background(), a, line, out))

	text := out.String()
	assert.Contains(t, text, "Added database #")
	assert.Contains(t, text, "mongo db1:27017/shop")
	assert.Contains(t, text, "ann")
	assert.Contains(t, text, "unknown command \\bogus")
	assert.Equal(t, []string{"never read"}, line.inputs, "exit stops the loop")

	require.Len(t, agent.requests, 1)
	assert.Equal(t, "how many users?", agent.requests[0].Prompt)
	assert.Equal(t, "secret", agent.requests[0].Databases[0].Password)
	assert.Equal(t, 27017, agent.requests[0].Databases[0].Port)

	assert.NotContains(t, line.history, "\\add", "the add dialog is not recorded")
	assert.Contains(t, line.history, "\\dbs")
	assert.Contains(t, line.history, "how many users?")

	assert.Equal(t, "how many users?", a.store.Prompt())
	assert.False(t, a.store.Busy())
}

func TestReplLoop_QuestionWithoutDatabases(t *testing.T) {
	a := newTestApp(t, "http://127.0.0.1:1")
	line := &scriptedLine{inputs: []string{"anything at all"}}
	out := new(bytes.Buffer)

	require.NoError(t, replLoop(context.Background(), a, line, out))
	assert.Contains(t, out.String(), "Error: no databases configured")
}

func TestReplLoop_CtrlCContinuesAndEOFExits(t *testing.T) {
	a := newTestApp(t, "http://127.0.0.1:1")
	line := &scriptedLine{inputs: []string{"^C", "", "help"}}
	out := new(bytes.Buffer)

	require.NoError(t, replLoop(context.Background(), a, line, out))
	assert.Contains(t, out.String(), "^C")
	assert.Contains(t, out.String(), "Commands:")
	assert.Len(t, line.prompts, 4, "the loop keeps prompting until EOF")
}

func TestReplSet(t *testing.T) {
	a := newTestApp(t, "http://127.0.0.1:1")
	_, err := a.store.AddDatabase(dbFixture())
	require.NoError(t, err)

	line := &scriptedLine{inputs: []string{
		"\\set output json",
		"\\dbs",
		"\\set width 3",
		"\\set wide maybe",
		"\\set output xml",
	}}
	out := new(bytes.Buffer)
	require.NoError(t, replLoop(context.Background(), a, line, out))

	text := out.String()
	assert.Contains(t, text, "Output format set to json.")
	assert.Contains(t, text, `"password": "****"`)
	assert.Contains(t, text, "Column width set to 8.")
	assert.Contains(t, text, "Error: wide must be on or off")
	assert.Contains(t, text, "Error: output must be table or json")
	assert.Equal(t, outputJSON, a.display.Format)
	assert.Equal(t, 8, a.display.MaxColWidth)
}

func TestReplRemoveDatabase(t *testing.T) {
	a := newTestApp(t, "http://127.0.0.1:1")
	saved, err := a.store.AddDatabase(dbFixture())
	require.NoError(t, err)

	line := &scriptedLine{inputs: []string{"\\rm", "\\rm #" + itoa64(saved.ID), "\\rm " + itoa64(saved.ID)}}
	out := new(bytes.Buffer)
	require.NoError(t, replLoop(context.Background(), a, line, out))

	text := out.String()
	assert.Contains(t, text, "Error: \\rm requires a database id")
	assert.Contains(t, text, "Removed database #")
	assert.Contains(t, text, "database not found")
	assert.Empty(t, a.store.Databases())
}

func TestReplAdd_CancelledDialog(t *testing.T) {
	a := newTestApp(t, "http://127.0.0.1:1")
	line := &scriptedLine{inputs: []string{"\\add", "mongo"}}
	out := new(bytes.Buffer)
	require.NoError(t, replLoop(context.Background(), a, line, out))

	assert.Contains(t, out.String(), "Cancelled.")
	assert.Empty(t, a.store.Databases())
}

func TestCompleter(t *testing.T) {
	t.Cleanup(invalidateCache)
	complete := makeCompleter(nil)

	assert.Contains(t, complete(""), "help")

	got := complete("\\pr")
	assert.Contains(t, got, "\\preview ")
	assert.Contains(t, got, "\\probe ")

	setCachedTables([]string{"users", "orders"})
	assert.Equal(t, []string{"\\cols users "}, complete("\\cols us"))
	assert.Equal(t, []string{"\\preview users ", "\\preview orders "}, complete("\\preview "))

	assert.Equal(t, []string{"\\set output json"}, complete("\\set output j"))

	invalidateCache()
	assert.Empty(t, complete("\\cols us"), "no client and no cache gives nothing")
}

func TestParseMetaCommand(t *testing.T) {
	name, args := parseMetaCommand(`  \preview users 10 `)
	assert.Equal(t, `\preview`, name)
	assert.Equal(t, []string{"users", "10"}, args)

	name, args = parseMetaCommand("   ")
	assert.Empty(t, name)
	assert.Nil(t, args)

	assert.True(t, isMetaCommandStart(` \dbs`))
	assert.False(t, isMetaCommandStart("show me \\ everything"))
	assert.Equal(t, "data.sql", trimTrailingSemicolon(" data.sql ; "))
}

func TestShouldRecordHistory(t *testing.T) {
	assert.True(t, shouldRecordHistory("how many users?"))
	assert.True(t, shouldRecordHistory(`\dbs`))
	assert.False(t, shouldRecordHistory(`\add`))
	assert.False(t, shouldRecordHistory(`\ADD`))
	assert.False(t, shouldRecordHistory("  "))
}
