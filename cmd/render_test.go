package cmd

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querydesk/querydesk-cli/internal/model"
)

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}

func dbFixture() model.DatabaseConfig {
	return model.DatabaseConfig{Type: "mongo", Host: "localhost", Port: 27017, User: "admin", Password: "pw"}
}

func plainDisplay() displayOptions {
	return displayOptions{Plain: true, MaxColWidth: 32, Format: outputTable}
}

func TestTruncateWithEllipsisCell(t *testing.T) {
	assert.Equal(t, "abc", truncateWithEllipsisCell("abc", 0))
	assert.Equal(t, "abc", truncateWithEllipsisCell("abc", 3))
	assert.Equal(t, "ab", truncateWithEllipsisCell("abcdef", 2))
	assert.Equal(t, "abc...", truncateWithEllipsisCell("abcdefghij", 6))
	assert.Equal(t, "日本...", truncateWithEllipsisCell("日本語テキスト", 5))
}

func TestDisplayCell(t *testing.T) {
	o := plainDisplay()
	assert.Equal(t, "NULL", o.cell(nil))
	assert.Equal(t, "12.5", o.cell(json.Number("12.5")))
	assert.Equal(t, `{"a":1}`, o.cell(map[string]any{"a": 1}))
	assert.Equal(t, "a b", o.cell("a\nb"))

	o.MaxColWidth = 8
	assert.Equal(t, "12345...", o.cell("1234567890"))
	o.Wide = true
	assert.Equal(t, "1234567890", o.cell("1234567890"))
}

func TestColumnsOf_FirstAppearanceOrder(t *testing.T) {
	rows := []model.Row{
		model.NewRow("b", 1, "a", 2),
		model.NewRow("a", 3, "c", 4),
	}
	assert.Equal(t, []string{"b", "a", "c"}, columnsOf(rows))
}

func TestRenderResults(t *testing.T) {
	q := &model.QueryInfo{Action: "read"}
	q.Collection.Names = []string{"users", "orders"}

	results := []model.DBResult{
		{
			DB:    model.DatabaseConfig{ID: 1, Type: "mongo", Host: "a", Port: 27017},
			Query: q,
			Result: model.Grouped(
				model.CollectionRows{Name: "users", Rows: []model.Row{model.NewRow("name", "ann")}},
				model.CollectionRows{Name: "orders"},
			),
		},
		{DB: model.DatabaseConfig{ID: 2, Type: "mysql", Host: "b", Port: 3306}, Error: "Access denied"},
		{DB: model.DatabaseConfig{ID: 3, Type: "sqlite", Host: "c"}},
	}

	buf := new(bytes.Buffer)
	require.NoError(t, plainDisplay().renderResults(buf, results))
	out := buf.String()

	assert.Contains(t, out, "== #1 mongo a:27017 ==")
	assert.Contains(t, out, "Query: READ [users, orders]")
	assert.Contains(t, out, "[users]")
	assert.Contains(t, out, "ann")
	assert.Contains(t, out, "No data found in orders")
	assert.Contains(t, out, "== #2 mysql b:3306 ==\nError: Access denied")
	assert.Contains(t, out, "== #3 sqlite c ==\nNo data found")
	assert.Less(t, strings.Index(out, "#1"), strings.Index(out, "#2"))
}

func TestRenderResults_CountsAndWrites(t *testing.T) {
	results := []model.DBResult{
		{
			DB:     model.DatabaseConfig{ID: 1, Type: "MongoDB", Host: "m"},
			Query:  &model.QueryInfo{Action: model.ActionRead},
			Result: model.Tabular(model.NewRow("name", "ann")),
		},
		{
			DB:     model.DatabaseConfig{ID: 2, Type: "postgres", Host: "p"},
			Result: model.Tabular(model.NewRow("n", 1), model.NewRow("n", 2)),
		},
		{
			DB:    model.DatabaseConfig{ID: 3, Type: "mysql", Host: "q"},
			Query: &model.QueryInfo{Action: model.ActionUpdate},
		},
		{
			DB:    model.DatabaseConfig{ID: 4, Type: "mysql", Host: "r"},
			Query: &model.QueryInfo{Action: "merge"},
		},
	}

	buf := new(bytes.Buffer)
	require.NoError(t, plainDisplay().renderResults(buf, results))
	out := buf.String()

	assert.Contains(t, out, "(1 documents)")
	assert.Contains(t, out, "(2 rows)")
	assert.Contains(t, out, "UPDATE completed")
	assert.Contains(t, out, "== #4 mysql r ==\nQuery: MERGE\nNo data found", "unknown actions render as empty reads")
}

func TestRenderResults_EmptyAndJSON(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, plainDisplay().renderResults(buf, nil))
	assert.Equal(t, "No results.\n", buf.String())

	o := plainDisplay()
	o.Format = outputJSON
	buf.Reset()
	require.NoError(t, o.renderResults(buf, []model.DBResult{{DB: model.DatabaseConfig{ID: 7}, Error: "x"}}))

	var decoded []model.DBResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, int64(7), decoded[0].DB.ID)
	assert.Equal(t, "x", decoded[0].Error)
}

func TestRenderColumns_KeepsOrder(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, plainDisplay().renderColumns(buf, []string{"zeta", "alpha"}))
	out := buf.String()
	assert.Less(t, strings.Index(out, "zeta"), strings.Index(out, "alpha"))
}

func TestRenderDatabases_MasksPasswordInJSON(t *testing.T) {
	o := plainDisplay()
	o.Format = outputJSON
	buf := new(bytes.Buffer)
	require.NoError(t, o.renderDatabases(buf, []model.DatabaseConfig{dbFixture()}))
	assert.Contains(t, buf.String(), `"password": "****"`)
	assert.NotContains(t, buf.String(), `"pw"`)
}

func TestNormalizeOutputFormat(t *testing.T) {
	assert.Equal(t, outputJSON, normalizeOutputFormat(" JSON "))
	assert.Equal(t, outputTable, normalizeOutputFormat("yaml"))
	assert.Equal(t, outputTable, normalizeOutputFormat(""))
}
