package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/Avi18971911/spangrouper/pkg/store"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
	"os"
	"path/filepath"
	"time"
)

const openTimeout = 5 * time.Second

// DB is one bbolt file holding one bucket per store.
type DB struct {
	db     *bolt.DB
	path   string
	logger *zap.Logger
}

func Open(path string, logger *zap.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory for %s: %w", path, err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt file %s: %w", path, err)
	}
	logger.Info("Opened bolt store", zap.String("path", path))
	return &DB{db: db, path: path, logger: logger}, nil
}

// Bucket returns a Backend over the named bucket, creating the bucket if needed.
func (d *DB) Bucket(name string) (*BoltStore, error) {
	err := d.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s in %s: %w", name, d.path, err)
	}
	return &BoltStore{db: d.db, bucket: []byte(name)}, nil
}

func (d *DB) Path() string {
	return d.path
}

func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("failed to close bolt file %s: %w", d.path, err)
	}
	d.logger.Info("Closed bolt store", zap.String("path", d.path))
	return nil
}

// BoltStore is a Backend over one bucket. Every Put and Delete is its own
// committed transaction. Closing the owning DB releases it.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
}

func (b *BoltStore) Get(_ context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s is missing", b.bucket)
		}
		stored := bucket.Get(key)
		if stored == nil {
			return store.ErrNotFound
		}
		value = bytes.Clone(stored)
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return value, nil
}

func (b *BoltStore) Put(_ context.Context, key []byte, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put(key, value)
	})
	return translate(err)
}

func (b *BoltStore) Delete(_ context.Context, keys ...[]byte) error {
	if len(keys) == 0 {
		return nil
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		for _, key := range keys {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err)
}

// Scan copies matching entries out of the read transaction before calling fn,
// so fn is free to write to the store.
func (b *BoltStore) Scan(ctx context.Context, prefix []byte, fn func(key []byte, value []byte) error) error {
	var keys, values [][]byte
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(b.bucket).Cursor()
		var k, v []byte
		if len(prefix) == 0 {
			k, v = c.First()
		} else {
			k, v = c.Seek(prefix)
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, bytes.Clone(k))
			values = append(values, bytes.Clone(v))
		}
		return nil
	})
	if err != nil {
		return translate(err)
	}
	for i := range keys {
		if err := fn(keys[i], values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *BoltStore) Close() error {
	return nil
}

func translate(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return store.ErrClosed
	}
	return err
}

// TaskStorePath is the bolt file of one task under dir.
func TaskStorePath(dir string, task int) string {
	return filepath.Join(dir, fmt.Sprintf("task-%d.db", task))
}

// OpenTaskStores opens the span and trace state stores of one task. Both live
// in the same bolt file.
func OpenTaskStores(dir string, task int, logger *zap.Logger) (*store.Stores, error) {
	db, err := Open(TaskStorePath(dir, task), logger)
	if err != nil {
		return nil, err
	}
	spans, err := db.Bucket(store.SpanStoreName)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	states, err := db.Bucket(store.TraceStateStoreName)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store.NewStores(spans, states, db), nil
}
