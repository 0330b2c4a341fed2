// Package storage provides persistent bookkeeping for BlitzWatch.
// It uses BoltDB as the underlying storage engine to keep the model version
// registry and a history of play-by-play fetches.
//
// Model artifacts and play data themselves live on disk as files; the
// store only records where they are and how they were produced.
package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	modelsBucket  = "model_versions" // Bucket name for registered model versions
	fetchesBucket = "fetches"        // Bucket name for play-by-play fetch records
)

// Store provides persistent storage using BoltDB.
type Store struct {
	db *bbolt.DB // BoltDB database instance
}

// New opens (or creates) the database file at dbPath, creating parent
// directories and the buckets it needs.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(modelsBucket)); err != nil {
			return fmt.Errorf("create models bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(fetchesBucket)); err != nil {
			return fmt.Errorf("create fetches bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// timeKey orders records chronologically under bytes.Compare.
func timeKey(t time.Time) []byte {
	return []byte(fmt.Sprintf("%020d", t.UnixNano()))
}

func (s *Store) put(bucket string, key []byte, v any) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s record: %w", bucket, err)
		}
		return tx.Bucket([]byte(bucket)).Put(key, data)
	})
}

// scanNewestFirst walks a bucket from the most recent key backwards until fn
// returns false. Malformed records are skipped.
func scanNewestFirst[T any](s *Store, bucket string, fn func(key []byte, rec T) bool) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec T
			if err := json.Unmarshal(v, &rec); err != nil {
				continue
			}
			if !fn(bytes.Clone(k), rec) {
				break
			}
		}
		return nil
	})
}
