package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/querydesk/querydesk-cli/internal/client"
	"github.com/querydesk/querydesk-cli/internal/model"
	"github.com/querydesk/querydesk-cli/internal/probe"
	"github.com/querydesk/querydesk-cli/internal/ui"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

type displayOptions struct {
	Plain       bool
	Wide        bool
	MaxColWidth int
	Format      string
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func truncateWithEllipsisCell(s string, width int) string {
	if width <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 3 {
		return string(r[:width])
	}
	return string(r[:width-3]) + "..."
}

func normalizeOutputFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case outputJSON:
		return outputJSON
	default:
		return outputTable
	}
}

// usePlainSymbols reports whether tables should be drawn in ASCII.
func (o displayOptions) usePlainSymbols(w io.Writer) bool {
	if o.Plain {
		return true
	}
	f, ok := w.(*os.File)
	return !ok || !ui.IsTerminal(f)
}

func (o displayOptions) newTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	// Preserve column names exactly as returned by the backend.
	table.Options(tablewriter.WithConfig(tablewriter.Config{
		Header: tw.CellConfig{
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
	}))
	if o.usePlainSymbols(w) {
		table.Options(tablewriter.WithSymbols(&tw.SymbolASCII{}))
	}
	return table
}

func (o displayOptions) cell(v any) string {
	var s string
	switch t := v.(type) {
	case nil:
		s = "NULL"
	case string:
		s = t
	case json.Number:
		s = t.String()
	case map[string]any, []any, model.Row:
		b, err := json.Marshal(t)
		if err != nil {
			s = fmt.Sprintf("%v", t)
		} else {
			s = string(b)
		}
	default:
		s = fmt.Sprintf("%v", t)
	}
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	if !o.Wide {
		s = truncateWithEllipsisCell(s, o.MaxColWidth)
	}
	return s
}

// columnsOf is the union of row keys in order of first appearance.
func columnsOf(rows []model.Row) []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		for _, k := range r.Keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

func (o displayOptions) renderRows(w io.Writer, rows []model.Row) {
	cols := columnsOf(rows)
	table := o.newTable(w)

	headers := make([]any, len(cols))
	for i, c := range cols {
		headers[i] = c
	}
	table.Header(headers...)

	for _, row := range rows {
		values := make([]any, len(cols))
		for i, c := range cols {
			v, ok := row.Get(c)
			if !ok {
				values[i] = ""
				continue
			}
			values[i] = o.cell(v)
		}
		table.Append(values...)
	}
	table.Render()
}

// renderResultSet draws one table, or one per collection for grouped results.
// unit names what a row is in the counts ("rows", "documents").
func (o displayOptions) renderResultSet(w io.Writer, rs *model.ResultSet, unit string) {
	if rs == nil || rs.RowCount() == 0 && !rs.Grouped {
		fmt.Fprintln(w, "No data found")
		return
	}
	if !rs.Grouped {
		o.renderRows(w, rs.Rows)
		fmt.Fprintf(w, "(%d %s)\n", len(rs.Rows), unit)
		return
	}
	if len(rs.Collections) == 0 {
		fmt.Fprintln(w, "No data found")
		return
	}
	for _, c := range rs.Collections {
		fmt.Fprintf(w, "[%s]\n", c.Name)
		if len(c.Rows) == 0 {
			fmt.Fprintf(w, "No data found in %s\n", c.Name)
			continue
		}
		o.renderRows(w, c.Rows)
		fmt.Fprintf(w, "(%d %s)\n", len(c.Rows), unit)
	}
}

// renderResults prints every database's outcome under its own header.
func (o displayOptions) renderResults(w io.Writer, results []model.DBResult) error {
	if o.Format == outputJSON {
		return writeJSON(w, results)
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No results.")
		return nil
	}
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "== %s ==\n", r.DB.String())
		if s := r.Query.Summary(); s != "" {
			fmt.Fprintf(w, "Query: %s\n", o.querySummary(s))
		}
		if r.Failed() {
			fmt.Fprintf(w, "Error: %s\n", r.Error)
			continue
		}
		if q := r.Query; q != nil && q.Action.Valid() && q.Action != model.ActionRead && r.Result.RowCount() == 0 {
			fmt.Fprintf(w, "%s completed\n", strings.ToUpper(string(q.Action)))
			continue
		}
		unit := "rows"
		if model.IsDocumentEngine(r.DB.Type) {
			unit = "documents"
		}
		o.renderResultSet(w, r.Result, unit)
	}
	return nil
}

func (o displayOptions) querySummary(s string) string {
	if o.Wide {
		return s
	}
	return truncateWithEllipsisCell(s, clampInt(o.MaxColWidth*4, 60, 2000))
}

func (o displayOptions) renderDatabases(w io.Writer, dbs []model.DatabaseConfig) error {
	if o.Format == outputJSON {
		masked := make([]model.DatabaseConfig, len(dbs))
		for i, db := range dbs {
			masked[i] = db.Masked()
		}
		return writeJSON(w, masked)
	}
	if len(dbs) == 0 {
		fmt.Fprintln(w, "No databases configured. Add one with 'querydesk db add'.")
		return nil
	}
	table := o.newTable(w)
	table.Header("ID", "TYPE", "HOST", "PORT", "USER", "DATABASE")
	for _, db := range dbs {
		table.Append(db.ID, db.Type, db.Host, db.Port, db.User, db.Database)
	}
	table.Render()
	return nil
}

func (o displayOptions) renderStatuses(w io.Writer, statuses []probe.Status) error {
	if o.Format == outputJSON {
		type status struct {
			ID        int64  `json:"id"`
			Host      string `json:"host"`
			Status    string `json:"status"`
			LatencyMs int64  `json:"latency_ms"`
			Error     string `json:"error,omitempty"`
		}
		out := make([]status, len(statuses))
		for i, s := range statuses {
			out[i] = status{ID: s.DB.ID, Host: s.DB.Address(), Status: s.Label(), LatencyMs: s.Latency.Milliseconds(), Error: s.Error}
		}
		return writeJSON(w, out)
	}
	table := o.newTable(w)
	table.Header("ID", "TYPE", "ADDRESS", "STATUS", "LATENCY", "ERROR")
	for _, s := range statuses {
		table.Append(s.DB.ID, s.DB.Type, s.DB.Address(), s.Label(), fmt.Sprintf("%d ms", s.Latency.Milliseconds()), o.cell(s.Error))
	}
	table.Render()
	return nil
}

func (o displayOptions) renderIngest(w io.Writer, resp *client.IngestResponse) error {
	if o.Format == outputJSON {
		return writeJSON(w, resp)
	}
	if resp == nil || len(resp.Tables) == 0 {
		fmt.Fprintln(w, "No tables ingested.")
		return nil
	}
	for i, t := range resp.Tables {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%s] %d columns, %d rows\n", t.Name, len(t.Columns), len(t.Rows))
		if len(t.Rows) == 0 {
			continue
		}
		table := o.newTable(w)
		headers := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			headers[j] = c
		}
		table.Header(headers...)
		for _, row := range t.Rows {
			values := make([]any, len(t.Columns))
			for j := range t.Columns {
				if j < len(row) {
					values[j] = o.cell(row[j])
				} else {
					values[j] = ""
				}
			}
			table.Append(values...)
		}
		table.Render()
	}
	return nil
}

func (o displayOptions) renderNames(w io.Writer, header string, names []string) error {
	if o.Format == outputJSON {
		if names == nil {
			names = []string{}
		}
		return writeJSON(w, names)
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	table := o.newTable(w)
	table.Header(header)
	for _, n := range sorted {
		table.Append(n)
	}
	table.Render()
	return nil
}

// renderColumns keeps the backend's column order.
func (o displayOptions) renderColumns(w io.Writer, columns []string) error {
	if o.Format == outputJSON {
		if columns == nil {
			columns = []string{}
		}
		return writeJSON(w, columns)
	}
	table := o.newTable(w)
	table.Header("#", "COLUMN")
	for i, c := range columns {
		table.Append(i+1, c)
	}
	table.Render()
	return nil
}

func (o displayOptions) renderRowsResponse(w io.Writer, rows []model.Row) error {
	if o.Format == outputJSON {
		if rows == nil {
			rows = []model.Row{}
		}
		return writeJSON(w, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "No data found")
		return nil
	}
	o.renderRows(w, rows)
	fmt.Fprintf(w, "(%d rows)\n", len(rows))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
