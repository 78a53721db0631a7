package shardstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

// BoltBackend keeps each table in its own bucket.
type BoltBackend struct {
	db *bbolt.DB
}

type boltEntry struct {
	SchemaVersion string    `json:"schema_version"`
	Payload       []byte    `json:"payload"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewBoltBackend(path string) (*BoltBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	b := &BoltBackend{db: db}
	if err := b.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *BoltBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *BoltBackend) Get(ctx context.Context, table Table, key string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}

	var (
		entry boltEntry
		found bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(table))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", table)
		}
		payload := bucket.Get([]byte(key))
		if payload == nil {
			return nil
		}
		found = true
		if err := json.Unmarshal(payload, &entry); err != nil {
			return fmt.Errorf("unmarshal %s/%s: %w", table, key, err)
		}
		return nil
	})
	if err != nil || !found {
		return Entry{}, false, err
	}
	return Entry(entry), true, nil
}

func (b *BoltBackend) Put(ctx context.Context, table Table, key string, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(boltEntry(entry))
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", table, key, err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(table))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", table)
		}
		return bucket.Put([]byte(key), payload)
	})
}

// Clear drops and recreates both buckets in a single transaction.
func (b *BoltBackend) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, table := range []Table{TableIndex, TableYears} {
			if tx.Bucket([]byte(table)) != nil {
				if err := tx.DeleteBucket([]byte(table)); err != nil {
					return fmt.Errorf("drop %s bucket: %w", table, err)
				}
			}
			if _, err := tx.CreateBucket([]byte(table)); err != nil {
				return fmt.Errorf("create %s bucket: %w", table, err)
			}
		}
		return nil
	})
}

func (b *BoltBackend) ensureBuckets() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, table := range []Table{TableIndex, TableYears} {
			if _, err := tx.CreateBucketIfNotExists([]byte(table)); err != nil {
				return fmt.Errorf("create %s bucket: %w", table, err)
			}
		}
		return nil
	})
}
