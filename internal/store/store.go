// Package store provides the write-behind durability layer for the
// Queue Buffer and Message Cache (§3, §5): both survive an FD restart,
// originally via a memory-mapped file with a 4-byte count word at
// AFD_WORD_OFFSET. This rewrite journals the same data to a bbolt
// database instead of hand-rolled mmap bookkeeping — bbolt already
// gives a durable, crash-safe, single-file store with the same
// "header + records" shape, at the cost of one more dependency
// instead of manual msync calls.
package store

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

var (
	qbBucket  = []byte("queue_buffer")
	mdbBucket = []byte("msg_cache_buf")
)

// Store is the durable journal backing QB and MDB.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) the bbolt file at path and ensures
// both buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "store: open")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(qbBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(mdbBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "store: init buckets")
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the backing file.
func (s *Store) Close() error {
	return s.db.Close()
}

func indexKey(i int) []byte {
	return []byte(fmt.Sprintf("%08d", i))
}

// PutQB journals QB entry i.
func (s *Store) PutQB(i int, v interface{}) error {
	return s.put(qbBucket, indexKey(i), v)
}

// PutMDB journals MDB entry i.
func (s *Store) PutMDB(i int, v interface{}) error {
	return s.put(mdbBucket, indexKey(i), v)
}

func (s *Store) put(bucket, key []byte, v interface{}) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return errors.Wrap(err, "store: encode")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, buf.Bytes())
	})
}

// DeleteQB removes QB entry i from the journal (e.g. on Remove/Done).
func (s *Store) DeleteQB(i int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(qbBucket).Delete(indexKey(i))
	})
}

// LoadAllQB passes every journaled QB record to fn with its index,
// used at startup to repopulate the in-memory QB/MDB arenas after a
// restart.
func (s *Store) LoadAllQB(fn func(i int, data []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(qbBucket).ForEach(func(k, v []byte) error {
			var i int
			fmt.Sscanf(string(k), "%d", &i)
			return fn(i, v)
		})
	})
}

func (s *Store) LoadAllMDB(fn func(i int, data []byte) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(mdbBucket).ForEach(func(k, v []byte) error {
			var i int
			fmt.Sscanf(string(k), "%d", &i)
			return fn(i, v)
		})
	})
}

// Decode is a small helper around gob for callers of LoadAllQB/MDB.
func Decode(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
