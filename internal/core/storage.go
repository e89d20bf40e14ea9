package core

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"bakehouse/internal/infra/persistence/memory"
	"bakehouse/internal/infra/persistence/postgres"
	redisstore "bakehouse/internal/infra/persistence/redis"
	"bakehouse/internal/infra/persistence/sqlite"
	"bakehouse/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageRedis    StorageDriver = "redis"    // Redis hash mirror
)

type (
	Ingredient      = domain.Ingredient
	Recipe          = domain.Recipe
	Order           = domain.Order
	Customer        = domain.Customer
	InventoryItem   = domain.InventoryItem
	Change          = domain.Change
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// SnapshotStore extends the persistent store with whole-state export and
// last-write-wins collection replacement. The sync engine depends on this
// surface; every storage driver provides it by embedding the memory store.
type SnapshotStore interface {
	domain.PersistentStore
	ExportState() memory.Snapshot
	ReplaceCollections(memory.Snapshot)
}

// OpenPersistentStore selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	BAKEHOUSE_STORAGE_DRIVER: memory|sqlite|postgres|redis (default sqlite)
//	BAKEHOUSE_SQLITE_PATH: path to sqlite file (default ./bakehouse.db)
//	BAKEHOUSE_POSTGRES_DSN: postgres DSN when driver=postgres
//	BAKEHOUSE_REDIS_ADDR: redis address when driver=redis
func OpenPersistentStore(log *logrus.Logger) (SnapshotStore, error) {
	driver := os.Getenv("BAKEHOUSE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		path := os.Getenv("BAKEHOUSE_SQLITE_PATH")
		return sqlite.NewStore(path, log)
	case StoragePostgres:
		dsn := os.Getenv("BAKEHOUSE_POSTGRES_DSN")
		return postgres.NewStore(dsn, log)
	case StorageRedis:
		addr := os.Getenv("BAKEHOUSE_REDIS_ADDR")
		return redisstore.NewStore(addr, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
