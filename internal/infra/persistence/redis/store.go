// Package redis provides a Redis-backed persistent store that mirrors the
// in-memory state into a hash of bucket payloads after each transaction.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"bakehouse/internal/infra/persistence/memory"
	"bakehouse/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const stateKey = "bakehouse:state"

// Store persists state to Redis while reusing the in-memory implementation
// for transactions. All collections live in one hash keyed by bucket name, so
// a mirror write is a single HSET.
type Store struct {
	*memory.Store
	client *redis.Client
	mu     sync.Mutex
	log    *logrus.Entry
}

// NewStore opens a Redis-backed store using the provided address (falls back
// to localhost:6379) and hydrates the in-memory store from any existing hash.
func NewStore(addr string, log *logrus.Logger) (*Store, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	snapshot, err := loadSnapshot(ctx, client)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	mem := memory.NewStore()
	mem.ImportState(snapshot)
	return &Store{Store: mem, client: client, log: log.WithField("component", "redis-store")}, nil
}

// RunInTransaction applies the provided function within a transaction, then
// mirrors state to Redis if successful. Mirror write failures are logged, not
// returned.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) ([]domain.Change, error) {
	changes, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return changes, err
	}
	if pErr := s.persist(ctx); pErr != nil {
		s.log.WithError(pErr).Warn("snapshot write failed; keeping in-memory state")
	}
	return changes, nil
}

// ReplaceCollections applies an inbound partial snapshot, then mirrors the
// merged state to Redis.
func (s *Store) ReplaceCollections(snapshot memory.Snapshot) {
	s.Store.ReplaceCollections(snapshot)
	if pErr := s.persist(context.Background()); pErr != nil {
		s.log.WithError(pErr).Warn("snapshot write failed; keeping in-memory state")
	}
}

// Client exposes the underlying redis client for integration testing hooks.
func (s *Store) Client() *redis.Client { return s.client }

// Close closes the underlying client.
func (s *Store) Close() error { return s.client.Close() }

var redisBuckets = []string{"ingredients", "recipes", "orders", "customers", "inventory", "categories"}

func loadSnapshot(ctx context.Context, client *redis.Client) (memory.Snapshot, error) {
	fields, err := client.HGetAll(ctx, stateKey).Result()
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("read state hash: %w", err)
	}
	var snapshot memory.Snapshot
	targets := map[string]any{
		"ingredients": &snapshot.Ingredients,
		"recipes":     &snapshot.Recipes,
		"orders":      &snapshot.Orders,
		"customers":   &snapshot.Customers,
		"inventory":   &snapshot.Inventory,
		"categories":  &snapshot.Categories,
	}
	for bucket, payload := range fields {
		if payload == "" {
			continue
		}
		if target, ok := targets[bucket]; ok {
			if err := json.Unmarshal([]byte(payload), target); err != nil {
				return memory.Snapshot{}, fmt.Errorf("decode %s: %w", bucket, err)
			}
		}
	}
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	fields := make(map[string]any, len(redisBuckets))
	for _, bucket := range redisBuckets {
		var (
			data []byte
			err  error
		)
		switch bucket {
		case "ingredients":
			data, err = json.Marshal(snapshot.Ingredients)
		case "recipes":
			data, err = json.Marshal(snapshot.Recipes)
		case "orders":
			data, err = json.Marshal(snapshot.Orders)
		case "customers":
			data, err = json.Marshal(snapshot.Customers)
		case "inventory":
			data, err = json.Marshal(snapshot.Inventory)
		case "categories":
			data, err = json.Marshal(snapshot.Categories)
		}
		if err != nil {
			return fmt.Errorf("marshal %s: %w", bucket, err)
		}
		fields[bucket] = data
	}
	if err := s.client.HSet(ctx, stateKey, fields).Err(); err != nil {
		return fmt.Errorf("write state hash: %w", err)
	}
	return nil
}
