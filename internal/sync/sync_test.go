package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	stdsync "sync"
	"sync/atomic"
	"testing"
	"time"

	"bakehouse/internal/infra/persistence/memory"
	"bakehouse/pkg/domain"
)

func ingredientCreate(id string) domain.Change {
	return domain.Change{
		Entity: domain.EntityIngredient,
		Action: domain.ActionCreate,
		After:  domain.Ingredient{Base: domain.Base{ID: id}, Name: id},
	}
}

func TestTrackerDrainGroupsByCollection(t *testing.T) {
	tracker := NewTracker()
	tracker.Record([]domain.Change{
		ingredientCreate("i1"),
		{
			Entity: domain.EntityInventoryItem,
			Action: domain.ActionUpdate,
			After:  domain.InventoryItem{IngredientID: "i1", CurrentStock: 3},
		},
		{
			Entity: domain.EntityOrder,
			Action: domain.ActionDelete,
			Before: domain.Order{Base: domain.Base{ID: "o1"}},
		},
	})

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	payload := tracker.Drain("user-1", now)
	if payload.UserID != "user-1" || !payload.Timestamp.Equal(now) {
		t.Fatalf("unexpected envelope: %+v", payload)
	}
	if len(payload.Ingredients) != 1 || payload.Ingredients[0].ID != "i1" {
		t.Fatalf("unexpected ingredients: %+v", payload.Ingredients)
	}
	if payload.Ingredients[0].Data == nil {
		t.Fatal("create entry should carry the record")
	}
	if len(payload.Inventory) != 1 || payload.Inventory[0].ID != "i1" {
		t.Fatalf("inventory should be keyed by ingredient id: %+v", payload.Inventory)
	}
	if len(payload.Orders) != 1 || payload.Orders[0].Action != domain.ActionDelete || payload.Orders[0].ID != "o1" {
		t.Fatalf("unexpected orders: %+v", payload.Orders)
	}
	if payload.Orders[0].Data != nil {
		t.Fatalf("delete entry should carry no record: %+v", payload.Orders[0])
	}
	// Untouched collections are present as empty arrays, not nil.
	if payload.Recipes == nil || payload.Customers == nil {
		t.Fatalf("expected empty arrays for untouched collections: %+v", payload)
	}

	if tracker.Dirty() {
		t.Fatal("drain should clear pending changes")
	}
}

func TestTrackerRequeuePrependsFailedEntries(t *testing.T) {
	tracker := NewTracker()
	tracker.Record([]domain.Change{ingredientCreate("first")})
	payload := tracker.Drain("u", time.Now())

	tracker.Record([]domain.Change{ingredientCreate("second")})
	tracker.Requeue(payload)

	retry := tracker.Drain("u", time.Now())
	if len(retry.Ingredients) != 2 {
		t.Fatalf("expected both entries, got %+v", retry.Ingredients)
	}
	if retry.Ingredients[0].ID != "first" || retry.Ingredients[1].ID != "second" {
		t.Fatalf("requeued entries should come first: %+v", retry.Ingredients)
	}
}

func TestTrackerRebaseDiscardsPending(t *testing.T) {
	tracker := NewTracker()
	tracker.Record([]domain.Change{ingredientCreate("i1")})
	tracker.Rebase()
	if tracker.Dirty() {
		t.Fatal("rebase should discard the change log")
	}
}

func TestTrackerSeedQueuesLoadedState(t *testing.T) {
	tracker := NewTracker()
	tracker.Seed(memory.Snapshot{
		Ingredients: map[string]memory.Ingredient{
			"flour": {Base: domain.Base{ID: "flour"}, Name: "Flour"},
			"eggs":  {Base: domain.Base{ID: "eggs"}, Name: "Eggs"},
		},
		Customers: map[string]memory.Customer{
			"c1": {Base: domain.Base{ID: "c1"}, Name: "Ana"},
		},
		Inventory: map[string]memory.InventoryItem{
			"flour": {IngredientID: "flour", CurrentStock: 4},
		},
	})

	if !tracker.Dirty() {
		t.Fatal("seeded state should be pending")
	}
	payload := tracker.Drain("u", time.Now())
	if len(payload.Ingredients) != 2 {
		t.Fatalf("expected both loaded ingredients queued, got %+v", payload.Ingredients)
	}
	for _, entry := range payload.Ingredients {
		if entry.Action != domain.ActionCreate || entry.Data == nil {
			t.Fatalf("seed entries should be creates carrying the record: %+v", entry)
		}
	}
	if len(payload.Customers) != 1 || payload.Customers[0].ID != "c1" {
		t.Fatalf("unexpected customers: %+v", payload.Customers)
	}
	if len(payload.Inventory) != 1 || payload.Inventory[0].ID != "flour" {
		t.Fatalf("inventory should be keyed by ingredient id: %+v", payload.Inventory)
	}
	if len(payload.Orders) != 0 || len(payload.Recipes) != 0 {
		t.Fatalf("empty collections should queue nothing: %+v", payload)
	}
}

type stubPusher struct {
	mu       stdsync.Mutex
	pushed   []Payload
	failNext atomic.Bool
	done     chan Payload
}

func newStubPusher() *stubPusher {
	return &stubPusher{done: make(chan Payload, 16)}
}

func (p *stubPusher) Push(_ context.Context, payload Payload) error {
	if p.failNext.Load() {
		return errors.New("push refused")
	}
	p.mu.Lock()
	p.pushed = append(p.pushed, payload)
	p.mu.Unlock()
	p.done <- payload
	return nil
}

func (p *stubPusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pushed)
}

func TestEngineDebounceCoalescesBursts(t *testing.T) {
	pusher := newStubPusher()
	tracker := NewTracker()
	engine := NewEngine(tracker, pusher, nil, nil, Options{
		UserID:   "u",
		Debounce: 40 * time.Millisecond,
		Interval: time.Hour,
	})

	ctx := context.Background()
	engine.Start(ctx)
	defer engine.Stop(ctx)

	engine.Record([]domain.Change{ingredientCreate("a")})
	time.Sleep(10 * time.Millisecond)
	engine.Record([]domain.Change{ingredientCreate("b")})

	select {
	case payload := <-pusher.done:
		if payload.Records() != 2 {
			t.Fatalf("expected both changes in one payload, got %d", payload.Records())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("debounced flush never fired")
	}

	// The burst must not produce a second flush.
	time.Sleep(100 * time.Millisecond)
	if got := pusher.count(); got != 1 {
		t.Fatalf("expected a single flush, got %d", got)
	}
}

func TestEngineFlushFailureRequeues(t *testing.T) {
	pusher := newStubPusher()
	pusher.failNext.Store(true)
	tracker := NewTracker()
	engine := NewEngine(tracker, pusher, nil, nil, Options{UserID: "u"})

	engine.Record([]domain.Change{ingredientCreate("a")})
	if err := engine.Flush(context.Background()); err == nil {
		t.Fatal("expected flush error")
	}
	if !tracker.Dirty() {
		t.Fatal("failed flush should leave changes queued")
	}

	pusher.failNext.Store(false)
	if err := engine.Flush(context.Background()); err != nil {
		t.Fatalf("retry flush: %v", err)
	}
	if tracker.Dirty() {
		t.Fatal("successful flush should clear the queue")
	}
	if got := pusher.count(); got != 1 {
		t.Fatalf("expected one delivered payload, got %d", got)
	}
}

func TestEngineStopFlushesPendingChanges(t *testing.T) {
	pusher := newStubPusher()
	tracker := NewTracker()
	engine := NewEngine(tracker, pusher, nil, nil, Options{
		UserID:   "u",
		Debounce: time.Hour,
		Interval: time.Hour,
	})

	ctx := context.Background()
	engine.Start(ctx)
	engine.Record([]domain.Change{ingredientCreate("a")})
	engine.Stop(ctx)

	if got := pusher.count(); got != 1 {
		t.Fatalf("expected final flush on stop, got %d pushes", got)
	}
	if tracker.Dirty() {
		t.Fatal("stop should drain the tracker")
	}
}

func TestHTTPPusherReportsNon2xx(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if hits.Load() == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pusher := NewHTTPPusher(srv.URL)
	payload := Payload{UserID: "u", Timestamp: time.Now().UTC()}
	if err := pusher.Push(context.Background(), payload); err == nil {
		t.Fatal("expected error on 502")
	}
	if err := pusher.Push(context.Background(), payload); err != nil {
		t.Fatalf("push: %v", err)
	}
}

func TestApplierNormalizesIDsAndRebases(t *testing.T) {
	store := memory.NewStore()
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateIngredient(domain.Ingredient{Name: "local-only"}); err != nil {
			return err
		}
		_, err := tx.CreateCustomer(domain.Customer{Name: "Ana"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tracker := NewTracker()
	tracker.Record([]domain.Change{ingredientCreate("stale")})

	applier := NewApplier(store, tracker, nil)
	raw := []byte(`{
		"ingredients": [
			{"_id": "remote-1", "name": "Sugar", "package_size": 2, "package_cost": 4},
			{"name": "no-id, dropped"}
		],
		"inventory": [
			{"ingredient_id": "remote-1", "current_stock": 8}
		]
	}`)
	if err := applier.Apply(context.Background(), raw); err != nil {
		t.Fatalf("apply: %v", err)
	}

	ingredients := store.ListIngredients()
	if len(ingredients) != 1 {
		t.Fatalf("expected local ingredients replaced, got %+v", ingredients)
	}
	if ingredients[0].ID != "remote-1" || ingredients[0].Name != "Sugar" {
		t.Fatalf("expected _id promoted to id, got %+v", ingredients[0])
	}
	item, ok := store.GetInventoryItem("remote-1")
	if !ok || item.CurrentStock != 8 {
		t.Fatalf("expected inventory keyed by ingredient id, got %+v ok=%v", item, ok)
	}
	// Absent collections stay untouched.
	if got := len(store.ListCustomers()); got != 1 {
		t.Fatalf("expected customers preserved, got %d", got)
	}
	if tracker.Dirty() {
		t.Fatal("apply should rebase the change log")
	}
}

func TestApplierRejectsMalformedPayload(t *testing.T) {
	applier := NewApplier(memory.NewStore(), nil, nil)
	if err := applier.Apply(context.Background(), []byte(`{"ingredients": "nope"`)); err == nil {
		t.Fatal("expected decode error")
	}
}
