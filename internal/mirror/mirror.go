// Package mirror is the durable key/value store that backs client-side
// state between runs. Values are opaque bytes, normally JSON documents.
package mirror

import (
	"errors"
	"regexp"
)

// Well-known keys.
const (
	KeyDatabases = "databases"
	KeyResults   = "results"
	KeySchema    = "schema-designer-v1"
)

// Storage is a minimal local-storage style API.
type Storage interface {
	// GetItem returns the stored value and whether the key exists.
	GetItem(key string) ([]byte, bool, error)
	SetItem(key string, value []byte) error
	RemoveItem(key string) error
}

var ErrInvalidKey = errors.New("invalid mirror key")

var keyRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

func checkKey(key string) error {
	if !keyRegex.MatchString(key) || len(key) > 128 {
		return ErrInvalidKey
	}
	return nil
}
