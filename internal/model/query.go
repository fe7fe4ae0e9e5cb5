package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the kind of statement the backend decided to run.
type Action string

const (
	ActionRead   Action = "read"
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) Valid() bool {
	switch a {
	case ActionRead, ActionInsert, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// Collections is a single collection name or an ordered list of them. It
// re-encodes in the form it was decoded from.
type Collections struct {
	Names []string
	List  bool
}

func (c Collections) String() string {
	return strings.Join(c.Names, ", ")
}

func (c Collections) MarshalJSON() ([]byte, error) {
	if c.List {
		names := c.Names
		if names == nil {
			names = []string{}
		}
		return json.Marshal(names)
	}
	if len(c.Names) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(c.Names[0])
}

func (c *Collections) UnmarshalJSON(data []byte) error {
	*c = Collections{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		c.Names = []string{s}
		return nil
	case '[':
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return err
		}
		c.Names = names
		c.List = true
		return nil
	default:
		return fmt.Errorf("collection must be a string or a list of strings")
	}
}

// QueryPayload is either a structured document or an opaque query string.
// Anything else the backend sends is kept verbatim in Raw.
type QueryPayload struct {
	Text string
	Doc  *Row
	Raw  json.RawMessage
}

func (p QueryPayload) IsZero() bool {
	return p.Text == "" && p.Doc == nil && len(p.Raw) == 0
}

func (p QueryPayload) String() string {
	switch {
	case p.Doc != nil:
		b, err := json.Marshal(p.Doc)
		if err != nil {
			return ""
		}
		return string(b)
	case len(p.Raw) > 0:
		var buf bytes.Buffer
		if err := json.Compact(&buf, p.Raw); err != nil {
			return string(p.Raw)
		}
		return buf.String()
	default:
		return p.Text
	}
}

func (p QueryPayload) MarshalJSON() ([]byte, error) {
	switch {
	case p.Doc != nil:
		return json.Marshal(p.Doc)
	case len(p.Raw) > 0:
		return p.Raw, nil
	default:
		return json.Marshal(p.Text)
	}
}

func (p *QueryPayload) UnmarshalJSON(data []byte) error {
	*p = QueryPayload{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &p.Text)
	case '{':
		var doc Row
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		p.Doc = &doc
		return nil
	default:
		p.Raw = append(json.RawMessage(nil), data...)
		return nil
	}
}

// QueryInfo describes what the backend ran against one database. The client
// only displays it.
type QueryInfo struct {
	Action     Action       `json:"action,omitempty"`
	Collection Collections  `json:"collection"`
	Query      QueryPayload `json:"query"`
}

// Summary is a one-line description for result headers.
func (q *QueryInfo) Summary() string {
	if q == nil {
		return ""
	}
	parts := make([]string, 0, 3)
	if q.Action != "" {
		parts = append(parts, strings.ToUpper(string(q.Action)))
	}
	if len(q.Collection.Names) > 0 {
		parts = append(parts, "["+q.Collection.String()+"]")
	}
	if s := q.Query.String(); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}
