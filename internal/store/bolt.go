package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Values are stored as a one-byte layout tag followed by the raw value, so an
// empty value is still a non-empty record.
const boltLayoutV1 byte = 1

// Bolt is a Store backed by a single bbolt bucket.
type Bolt struct {
	db     *bolt.DB
	bucket []byte
}

type BoltOptions struct {
	// Bucket is the name of the Bolt bucket to use. Defaults to "kv".
	Bucket string
	// Timeout bounds how long Open waits for the file lock. Defaults to 1s.
	Timeout time.Duration
}

var _ Store = (*Bolt)(nil)

// OpenBolt initializes or opens a Bolt store at the given path, creating
// parent directories as needed.
func OpenBolt(path string, opts BoltOptions) (*Bolt, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("store: open bolt %s: %w", path, err)
	}
	bucket := []byte("kv")
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Bolt{db: db, bucket: bucket}, nil
}

// Close closes the underlying database.
func (s *Bolt) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores value and reports whether key was already present. The
// existence check and the write share one transaction.
func (s *Bolt) Put(key, value string) (bool, error) {
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		existed = b.Get([]byte(key)) != nil
		buf := make([]byte, 1+len(value))
		buf[0] = boltLayoutV1
		copy(buf[1:], value)
		return b.Put([]byte(key), buf)
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

// Get returns the stored value.
func (s *Bolt) Get(key string) (string, error) {
	var (
		out    string
		exists bool
	)
	if err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		if len(v) == 0 || v[0] != boltLayoutV1 {
			return fmt.Errorf("store: key %q: unknown record layout", key)
		}
		exists = true
		// v is only valid inside the transaction; string() copies it.
		out = string(v[1:])
		return nil
	}); err != nil {
		return "", err
	}
	if !exists {
		return "", ErrNotFound
	}
	return out, nil
}

// Delete removes a key.
func (s *Bolt) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b.Get([]byte(key)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(key))
	})
}
