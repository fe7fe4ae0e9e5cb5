package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is a JSON object that keeps its keys in the order they were received,
// so columns render the way the backend sent them.
type Row struct {
	Keys   []string
	Values map[string]any
}

// NewRow builds a row from alternating key/value pairs.
func NewRow(kv ...any) Row {
	var r Row
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		r.Set(k, kv[i+1])
	}
	return r
}

func (r *Row) ensureInit() {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
}

func (r *Row) Get(key string) (any, bool) {
	if r == nil || r.Values == nil {
		return nil, false
	}
	v, ok := r.Values[key]
	return v, ok
}

func (r *Row) Set(key string, value any) {
	r.ensureInit()
	if _, exists := r.Values[key]; !exists {
		r.Keys = append(r.Keys, key)
	}
	r.Values[key] = value
}

func (r Row) Len() int {
	return len(r.Keys)
}

func (r *Row) UnmarshalJSON(data []byte) error {
	r.Keys = nil
	r.Values = nil
	r.ensureInit()

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("expected JSON object")
	}

	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("expected string key")
		}

		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		r.Set(key, v)
	}

	endTok, err := dec.Token()
	if err != nil {
		return err
	}
	endDelim, ok := endTok.(json.Delim)
	if !ok || endDelim != '}' {
		return fmt.Errorf("expected end of object")
	}

	return nil
}

func (r Row) MarshalJSON() ([]byte, error) {
	if r.Values == nil {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.Values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
