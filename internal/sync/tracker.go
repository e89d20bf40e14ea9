// Package sync implements the outbound change log and background flush loop
// that pushes local mutations to the remote endpoint, plus the inbound path
// applying remote snapshots back into the store.
package sync

import (
	"sort"
	"sync"
	"time"

	"bakehouse/internal/infra/persistence/memory"
	"bakehouse/pkg/domain"
)

// ChangeEntry is one element of the flush payload's per-collection arrays.
type ChangeEntry struct {
	Action domain.Action `json:"action"`
	ID     string        `json:"id"`
	Data   any           `json:"data,omitempty"`
}

// Payload is the single POST body sent to the remote endpoint. Collections
// with no pending changes are present as empty arrays.
type Payload struct {
	UserID      string        `json:"user_id"`
	Timestamp   time.Time     `json:"timestamp"`
	Recipes     []ChangeEntry `json:"recipes"`
	Orders      []ChangeEntry `json:"orders"`
	Customers   []ChangeEntry `json:"customers"`
	Ingredients []ChangeEntry `json:"ingredients"`
	Inventory   []ChangeEntry `json:"inventory"`
}

// Empty reports whether the payload carries no changes.
func (p Payload) Empty() bool {
	return len(p.Recipes) == 0 && len(p.Orders) == 0 && len(p.Customers) == 0 &&
		len(p.Ingredients) == 0 && len(p.Inventory) == 0
}

// Records counts the change entries across all collections.
func (p Payload) Records() int {
	return len(p.Recipes) + len(p.Orders) + len(p.Customers) + len(p.Ingredients) + len(p.Inventory)
}

// Tracker accumulates committed changes per collection until a flush drains
// them. Tracking is coarse: a success clears everything that was handed out,
// and changes landing mid-flight are picked up by the next cycle.
type Tracker struct {
	mu      sync.Mutex
	pending map[domain.EntityType][]ChangeEntry
}

// NewTracker constructs an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{pending: make(map[domain.EntityType][]ChangeEntry)}
}

// Record appends change entries from a committed change set.
func (t *Tracker) Record(changes []domain.Change) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, change := range changes {
		entry := ChangeEntry{Action: change.Action}
		switch change.Action {
		case domain.ActionDelete:
			entry.ID = changeID(change.Before)
		default:
			entry.ID = changeID(change.After)
			entry.Data = change.After
		}
		if entry.ID == "" {
			continue
		}
		t.pending[change.Entity] = append(t.pending[change.Entity], entry)
	}
	t.updateGauge()
}

func changeID(record any) string {
	switch v := record.(type) {
	case domain.Ingredient:
		return v.ID
	case domain.Recipe:
		return v.ID
	case domain.Order:
		return v.ID
	case domain.Customer:
		return v.ID
	case domain.InventoryItem:
		return v.IngredientID
	}
	return ""
}

// Seed enqueues a create entry for every record in the snapshot. Called once
// at session start so state loaded from the durable store reaches the remote
// endpoint on the first flush, not only mutations made after boot.
func (t *Tracker) Seed(snapshot memory.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range sortedKeys(snapshot.Ingredients) {
		t.seed(domain.EntityIngredient, id, snapshot.Ingredients[id])
	}
	for _, id := range sortedKeys(snapshot.Recipes) {
		t.seed(domain.EntityRecipe, id, snapshot.Recipes[id])
	}
	for _, id := range sortedKeys(snapshot.Orders) {
		t.seed(domain.EntityOrder, id, snapshot.Orders[id])
	}
	for _, id := range sortedKeys(snapshot.Customers) {
		t.seed(domain.EntityCustomer, id, snapshot.Customers[id])
	}
	for _, id := range sortedKeys(snapshot.Inventory) {
		t.seed(domain.EntityInventoryItem, id, snapshot.Inventory[id])
	}
	t.updateGauge()
}

// seed appends one create entry. Caller holds t.mu.
func (t *Tracker) seed(entity domain.EntityType, id string, record any) {
	t.pending[entity] = append(t.pending[entity], ChangeEntry{
		Action: domain.ActionCreate,
		ID:     id,
		Data:   record,
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Dirty reports whether any collection has pending changes.
func (t *Tracker) Dirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, entries := range t.pending {
		if len(entries) > 0 {
			return true
		}
	}
	return false
}

// Drain removes and returns all pending entries, assembled into a payload.
// If the flush fails the caller hands the payload back via Requeue.
func (t *Tracker) Drain(userID string, now time.Time) Payload {
	t.mu.Lock()
	defer t.mu.Unlock()
	payload := Payload{
		UserID:      userID,
		Timestamp:   now,
		Recipes:     t.take(domain.EntityRecipe),
		Orders:      t.take(domain.EntityOrder),
		Customers:   t.take(domain.EntityCustomer),
		Ingredients: t.take(domain.EntityIngredient),
		Inventory:   t.take(domain.EntityInventoryItem),
	}
	t.updateGauge()
	return payload
}

func (t *Tracker) take(entity domain.EntityType) []ChangeEntry {
	entries := t.pending[entity]
	if len(entries) == 0 {
		return []ChangeEntry{}
	}
	delete(t.pending, entity)
	return entries
}

// Requeue puts a failed payload's entries back at the front of the pending
// queues so the next cycle retries them ahead of newer changes.
func (t *Tracker) Requeue(payload Payload) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requeue(domain.EntityRecipe, payload.Recipes)
	t.requeue(domain.EntityOrder, payload.Orders)
	t.requeue(domain.EntityCustomer, payload.Customers)
	t.requeue(domain.EntityIngredient, payload.Ingredients)
	t.requeue(domain.EntityInventoryItem, payload.Inventory)
	t.updateGauge()
}

func (t *Tracker) requeue(entity domain.EntityType, entries []ChangeEntry) {
	if len(entries) == 0 {
		return
	}
	t.pending[entity] = append(append([]ChangeEntry{}, entries...), t.pending[entity]...)
}

// Rebase discards all pending changes. Called after an inbound snapshot
// replaces the local collections, making the old change log meaningless.
func (t *Tracker) Rebase() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = make(map[domain.EntityType][]ChangeEntry)
	t.updateGauge()
}

// updateGauge refreshes the pending-records gauge. Caller holds t.mu.
func (t *Tracker) updateGauge() {
	total := 0
	for _, entries := range t.pending {
		total += len(entries)
	}
	pendingRecords.Set(float64(total))
}
