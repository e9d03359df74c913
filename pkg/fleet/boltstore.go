package fleet

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var bucketFleetStatus = []byte("fleet_status")

// BoltStore implements StatusStore on a local BoltDB file. The conditional
// write runs inside a single bolt update transaction, which serializes all
// writers on the file, so compare-and-swap is atomic without extra locking.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the status database under dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "ridgeline.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFleetStatus)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(cluster string) (Status, error) {
	status := StatusUnknown
	err := s.db.View(func(tx *bolt.Tx) error {
		if data := tx.Bucket(bucketFleetStatus).Get([]byte(cluster)); data != nil {
			status = Status(data)
		}
		return nil
	})
	return status, err
}

func (s *BoltStore) CompareAndSwap(cluster string, from, to Status) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFleetStatus)

		current := StatusUnknown
		if data := b.Get([]byte(cluster)); data != nil {
			current = Status(data)
		}
		if current != from {
			return &ConcurrentUpdateError{Cluster: cluster, Expected: from, Actual: current}
		}
		return b.Put([]byte(cluster), []byte(to))
	})
}

func (s *BoltStore) Delete(cluster string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFleetStatus).Delete([]byte(cluster))
	})
}
