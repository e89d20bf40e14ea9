// Package sqlite provides a SQLite-backed persistent store that mirrors the
// in-memory state to a single bucket/payload table after each transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"bakehouse/internal/infra/persistence/memory"
	"bakehouse/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Store persists the in-memory state to a single SQLite table as JSON blobs.
// It snapshots the full state after every successful transaction. A failed
// snapshot write is logged and swallowed; the in-memory state stays
// authoritative and the next successful write re-mirrors everything.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	log  *logrus.Entry
	path string
}

// NewStore constructs a snapshotting SQLite-backed persistent store.
func NewStore(path string, log *logrus.Logger) (*Store, error) {
	if path == "" {
		path = "bakehouse.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Store{
		Store: memory.NewStore(),
		db:    db,
		log:   log.WithField("component", "sqlite-store"),
		path:  path,
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var sqliteBuckets = []string{"ingredients", "recipes", "orders", "customers", "inventory", "categories"}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM state`)
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := memory.Snapshot{}
	loaded := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		loaded = true
		switch bucket {
		case "ingredients":
			if err := json.Unmarshal(payload, &snapshot.Ingredients); err != nil {
				return fmt.Errorf("decode ingredients: %w", err)
			}
		case "recipes":
			if err := json.Unmarshal(payload, &snapshot.Recipes); err != nil {
				return fmt.Errorf("decode recipes: %w", err)
			}
		case "orders":
			if err := json.Unmarshal(payload, &snapshot.Orders); err != nil {
				return fmt.Errorf("decode orders: %w", err)
			}
		case "customers":
			if err := json.Unmarshal(payload, &snapshot.Customers); err != nil {
				return fmt.Errorf("decode customers: %w", err)
			}
		case "inventory":
			if err := json.Unmarshal(payload, &snapshot.Inventory); err != nil {
				return fmt.Errorf("decode inventory: %w", err)
			}
		case "categories":
			if err := json.Unmarshal(payload, &snapshot.Categories); err != nil {
				return fmt.Errorf("decode categories: %w", err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate state: %w", err)
	}
	if !loaded {
		return nil
	}
	s.ImportState(snapshot)
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range sqliteBuckets {
		data, err := marshalBucket(snapshot, bucket)
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func marshalBucket(snapshot memory.Snapshot, bucket string) ([]byte, error) {
	switch bucket {
	case "ingredients":
		return json.Marshal(snapshot.Ingredients)
	case "recipes":
		return json.Marshal(snapshot.Recipes)
	case "orders":
		return json.Marshal(snapshot.Orders)
	case "customers":
		return json.Marshal(snapshot.Customers)
	case "inventory":
		return json.Marshal(snapshot.Inventory)
	case "categories":
		return json.Marshal(snapshot.Categories)
	}
	return nil, fmt.Errorf("unknown bucket %q", bucket)
}

// RunInTransaction applies the provided function within a transaction, then
// snapshots state to SQLite if successful. Snapshot write failures are logged,
// not returned.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) ([]domain.Change, error) {
	changes, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return changes, err
	}
	if pErr := s.persist(); pErr != nil {
		s.log.WithError(pErr).Warn("snapshot write failed; keeping in-memory state")
	}
	return changes, nil
}

// ReplaceCollections applies an inbound partial snapshot, then mirrors the
// merged state to SQLite.
func (s *Store) ReplaceCollections(snapshot memory.Snapshot) {
	s.Store.ReplaceCollections(snapshot)
	if pErr := s.persist(); pErr != nil {
		s.log.WithError(pErr).Warn("snapshot write failed; keeping in-memory state")
	}
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
