// Package distlog persists a small audit trail of connection lifecycle
// events (connect, handshake stage reached, tick timeout, disconnect)
// keyed by session id in a single bucket, with the peer name carried in
// each event's value, for post-hoc diagnostics.
// This is not the actor registry (out of scope per spec.md §1) — it is
// a side trail a connection writes to as it runs.
package distlog

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var eventsBucket = []byte("dist_events")

// Store is a bbolt-backed append-only event log.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the audit database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("distlog: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("distlog: init bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one event for sessionID. Events for the same session
// are ordered by a monotonically increasing key so iteration order
// matches occurrence order.
func (s *Store) Record(sessionID, peerName, event string) error {
	key := []byte(fmt.Sprintf("%s/%020d", sessionID, time.Now().UnixNano()))
	value := []byte(fmt.Sprintf("%s peer=%s event=%s", sessionID, peerName, event))
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(eventsBucket).Put(key, value)
	})
}

// Events returns every recorded event line, in key order.
func (s *Store) Events() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(eventsBucket).ForEach(func(_, v []byte) error {
			out = append(out, string(v))
			return nil
		})
	})
	return out, err
}
