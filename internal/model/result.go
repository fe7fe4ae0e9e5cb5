package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CollectionRows is one named group in a grouped result.
type CollectionRows struct {
	Name string
	Rows []Row
}

// ResultSet is the rows a database returned for one prompt: either a flat
// table, or rows grouped by collection name.
type ResultSet struct {
	Rows        []Row
	Collections []CollectionRows
	Grouped     bool
}

// Tabular builds a flat result.
func Tabular(rows ...Row) *ResultSet {
	return &ResultSet{Rows: rows}
}

// Grouped builds a result keyed by collection, in the given order.
func Grouped(groups ...CollectionRows) *ResultSet {
	return &ResultSet{Collections: groups, Grouped: true}
}

// RowCount is the number of rows across all groups.
func (r *ResultSet) RowCount() int {
	if r == nil {
		return 0
	}
	if !r.Grouped {
		return len(r.Rows)
	}
	n := 0
	for _, c := range r.Collections {
		n += len(c.Rows)
	}
	return n
}

func (r ResultSet) MarshalJSON() ([]byte, error) {
	if !r.Grouped {
		rows := r.Rows
		if rows == nil {
			rows = []Row{}
		}
		return json.Marshal(rows)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Collections {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(c.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		rows := c.Rows
		if rows == nil {
			rows = []Row{}
		}
		vb, err := json.Marshal(rows)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts what the backend actually sends. An array is a table.
// An object holding at least one array is grouped by collection; any other
// object (a write status, a count) is a single-row table. Non-object values
// are wrapped as {"value": v}.
func (r *ResultSet) UnmarshalJSON(data []byte) error {
	*r = ResultSet{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '[':
		rows, err := decodeRows(data)
		if err != nil {
			return err
		}
		r.Rows = rows
		return nil
	case '{':
		var obj Row
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		if !hasListValue(obj) {
			r.Rows = []Row{obj}
			return nil
		}
		r.Grouped = true
		for _, name := range obj.Keys {
			raw, err := json.Marshal(obj.Values[name])
			if err != nil {
				return err
			}
			rows, err := decodeRows(raw)
			if err != nil {
				return fmt.Errorf("collection %q: %w", name, err)
			}
			r.Collections = append(r.Collections, CollectionRows{Name: name, Rows: rows})
		}
		return nil
	default:
		rows, err := decodeRows(data)
		if err != nil {
			return err
		}
		r.Rows = rows
		return nil
	}
}

func hasListValue(obj Row) bool {
	for _, k := range obj.Keys {
		if _, ok := obj.Values[k].([]any); ok {
			return true
		}
	}
	return false
}

// decodeRows turns an array, an object or a scalar into rows.
func decodeRows(data []byte) ([]Row, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []Row{}, nil
	}
	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		rows := make([]Row, 0, len(items))
		for _, item := range items {
			row, err := decodeRow(item)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return rows, nil
	default:
		row, err := decodeRow(data)
		if err != nil {
			return nil, err
		}
		return []Row{row}, nil
	}
}

func decodeRow(data []byte) (Row, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var row Row
		if err := json.Unmarshal(data, &row); err != nil {
			return Row{}, err
		}
		return row, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Row{}, err
	}
	return NewRow("value", v), nil
}

// DBResult is the outcome of running one prompt against one database.
type DBResult struct {
	DB     DatabaseConfig `json:"db"`
	Query  *QueryInfo     `json:"query"`
	Result *ResultSet     `json:"result"`
	Error  string         `json:"error,omitempty"`
}

// Failed reports whether this database's call produced an error.
func (r DBResult) Failed() bool {
	return r.Error != ""
}
