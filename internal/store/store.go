// Package store persists users, sessions and threads as JSON documents in
// an embedded Pebble database. Keys are namespaced by prefix; thread keys
// embed the owner id so every lookup is owner-scoped by construction.
package store

import (
	"errors"
	"io"

	"github.com/cockroachdb/pebble"

	"github.com/chatloom/chatloom/pkg/logger"
)

// Key namespaces. A trailing separator keeps prefixes from matching
// sibling namespaces during range scans.
const (
	userByIDPrefix    = "user:id:"
	userByNamePrefix  = "user:name:"
	userByEmailPrefix = "user:email:"
	sessionPrefix     = "session:"
	threadPrefix      = "thread:"
)

// Store owns the Pebble handle shared by the typed sub-stores.
type Store struct {
	db     *pebble.DB
	logger *logger.Logger
}

// Open opens (or creates) the database at path.
func Open(path string, log *logger.Logger) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, logger: log}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Ready reports whether the store is open.
func (s *Store) Ready() bool {
	return s.db != nil
}

// get reads a raw value. Returns (nil, nil) when the key is absent.
func (s *Store) get(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(val))
	copy(out, val)
	if err := closeQuiet(closer); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) set(key, val []byte) error {
	return s.db.Set(key, val, pebble.Sync)
}

func (s *Store) delete(key []byte) error {
	return s.db.Delete(key, pebble.Sync)
}

func closeQuiet(c io.Closer) error {
	if c == nil {
		return nil
	}
	return c.Close()
}

// prefixEnd returns the smallest key greater than every key with the
// given prefix, for use as an iterator upper bound.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
