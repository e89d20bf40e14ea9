package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"bakehouse/internal/infra/persistence/memory"
	"bakehouse/pkg/domain"
)

// SnapshotStore is the store surface the inbound path needs: last-write-wins
// replacement of whole collections. Every storage driver provides it.
type SnapshotStore interface {
	ReplaceCollections(memory.Snapshot)
}

// RemoteSnapshot is the inbound payload shape. Absent collections stay nil
// and are left untouched; present collections replace the local ones
// entirely. Records are raw because remote ids may arrive under a
// datastore-assigned field.
type RemoteSnapshot struct {
	Recipes     []map[string]any `json:"recipes"`
	Orders      []map[string]any `json:"orders"`
	Customers   []map[string]any `json:"customers"`
	Ingredients []map[string]any `json:"ingredients"`
	Inventory   []map[string]any `json:"inventory"`
}

// Applier applies remote snapshots to the local store. Application is
// last-write-wins: local edits made since the snapshot was taken are
// overwritten, and the pending change log is discarded.
type Applier struct {
	store   SnapshotStore
	tracker *Tracker
	log     *logrus.Entry
}

// NewApplier constructs an applier. The tracker may be nil when no outbound
// engine is running.
func NewApplier(store SnapshotStore, tracker *Tracker, log *logrus.Logger) *Applier {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Applier{store: store, tracker: tracker, log: log.WithField("component", "sync-apply")}
}

// Apply decodes a raw remote payload and replaces the local collections it
// carries.
func (a *Applier) Apply(_ context.Context, raw []byte) error {
	var remote RemoteSnapshot
	if err := json.Unmarshal(raw, &remote); err != nil {
		return fmt.Errorf("decode remote snapshot: %w", err)
	}
	return a.ApplySnapshot(remote)
}

// ApplySnapshot normalizes record ids, rebuilds the typed collections, and
// swaps them into the store.
func (a *Applier) ApplySnapshot(remote RemoteSnapshot) error {
	var snapshot memory.Snapshot

	if remote.Ingredients != nil {
		out := map[string]domain.Ingredient{}
		if err := decodeRecords(remote.Ingredients, "id", out); err != nil {
			return fmt.Errorf("ingredients: %w", err)
		}
		snapshot.Ingredients = out
	}
	if remote.Recipes != nil {
		out := map[string]domain.Recipe{}
		if err := decodeRecords(remote.Recipes, "id", out); err != nil {
			return fmt.Errorf("recipes: %w", err)
		}
		snapshot.Recipes = out
	}
	if remote.Orders != nil {
		out := map[string]domain.Order{}
		if err := decodeRecords(remote.Orders, "id", out); err != nil {
			return fmt.Errorf("orders: %w", err)
		}
		snapshot.Orders = out
	}
	if remote.Customers != nil {
		out := map[string]domain.Customer{}
		if err := decodeRecords(remote.Customers, "id", out); err != nil {
			return fmt.Errorf("customers: %w", err)
		}
		snapshot.Customers = out
	}
	if remote.Inventory != nil {
		out := map[string]domain.InventoryItem{}
		if err := decodeRecords(remote.Inventory, "ingredient_id", out); err != nil {
			return fmt.Errorf("inventory: %w", err)
		}
		snapshot.Inventory = out
	}

	a.store.ReplaceCollections(snapshot)
	if a.tracker != nil {
		a.tracker.Rebase()
	}
	snapshotsApplied.Inc()
	a.log.WithFields(logrus.Fields{
		"ingredients": len(remote.Ingredients),
		"recipes":     len(remote.Recipes),
		"orders":      len(remote.Orders),
		"customers":   len(remote.Customers),
		"inventory":   len(remote.Inventory),
	}).Info("remote snapshot applied")
	return nil
}

// normalizeID canonicalizes the key field: an existing value wins, otherwise
// the datastore-assigned "_id" (then "id") is promoted. Records without any
// usable id are dropped.
func normalizeID(record map[string]any, keyField string) string {
	for _, field := range []string{keyField, "id", "_id"} {
		if v, ok := record[field].(string); ok && v != "" {
			record[keyField] = v
			return v
		}
	}
	return ""
}

func decodeRecords[T any](records []map[string]any, keyField string, out map[string]T) error {
	for _, record := range records {
		id := normalizeID(record, keyField)
		if id == "" {
			continue
		}
		delete(record, "_id")
		raw, err := json.Marshal(record)
		if err != nil {
			return err
		}
		var typed T
		if err := json.Unmarshal(raw, &typed); err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		out[id] = typed
	}
	return nil
}
