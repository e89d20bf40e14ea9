package derived

import (
	"context"
	"time"

	"bakehouse/pkg/domain"
)

// Status classifies an ingredient's stock situation.
type Status string

// Stock statuses.
const (
	StatusUnknown Status = "unknown" // no tracking row
	StatusOut     Status = "out"
	StatusLow     Status = "low"
	StatusGood    Status = "good"
)

// ClassifyStatus maps a tracking row lookup to a status.
func ClassifyStatus(item domain.InventoryItem, tracked bool) Status {
	switch {
	case !tracked:
		return StatusUnknown
	case item.CurrentStock == 0:
		return StatusOut
	case item.CurrentStock < item.MinStock:
		return StatusLow
	default:
		return StatusGood
	}
}

// InventoryDetail joins a tracking row with its ingredient record and the
// classified status.
type InventoryDetail struct {
	Item       domain.InventoryItem `json:"item"`
	Ingredient domain.Ingredient    `json:"ingredient"`
	Status     Status               `json:"status"`
}

// Engine exposes the derived read API over a persistent store. It carries no
// state of its own beyond the registered alert rules.
type Engine struct {
	store  domain.PersistentStore
	alerts *domain.AlertEngine
	now    func() time.Time
}

// NewEngine constructs an engine over the given store with the default alert
// rules registered.
func NewEngine(store domain.PersistentStore) *Engine {
	return &Engine{
		store:  store,
		alerts: NewAlertEngine(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the time provider; intended for tests.
func (e *Engine) SetNowFunc(fn func() time.Time) { e.now = fn }

// Alerts evaluates all alert rules over the current snapshots.
func (e *Engine) Alerts(ctx context.Context) []domain.StockAlert {
	var alerts []domain.StockAlert
	_ = e.store.View(ctx, func(view domain.TransactionView) error {
		alerts = e.alerts.Evaluate(view, e.now())
		return nil
	})
	return alerts
}

// Status classifies one ingredient's stock situation.
func (e *Engine) Status(ctx context.Context, ingredientID string) Status {
	status := StatusUnknown
	_ = e.store.View(ctx, func(view domain.TransactionView) error {
		item, tracked := view.FindInventoryItem(ingredientID)
		status = ClassifyStatus(item, tracked)
		return nil
	})
	return status
}

// ShoppingList generates purchase suggestions from orders in the given
// statuses, defaulting to the open set.
func (e *Engine) ShoppingList(ctx context.Context, statuses ...domain.OrderStatus) []ShoppingItem {
	var items []ShoppingItem
	_ = e.store.View(ctx, func(view domain.TransactionView) error {
		items = ShoppingList(view, statuses...)
		return nil
	})
	return items
}

// Demand aggregates per-ingredient demand across orders in the given
// statuses, defaulting to the open set.
func (e *Engine) Demand(ctx context.Context, statuses ...domain.OrderStatus) map[string]float64 {
	if len(statuses) == 0 {
		statuses = domain.OpenOrderStatuses
	}
	wanted := make(map[domain.OrderStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}
	demand := map[string]float64{}
	_ = e.store.View(ctx, func(view domain.TransactionView) error {
		var orders []domain.Order
		for _, order := range view.ListOrders() {
			if wanted[order.Status] {
				orders = append(orders, order)
			}
		}
		demand = AggregateDemand(view, orders)
		return nil
	})
	return demand
}

// InventoryDetails joins every tracking row with its ingredient record.
// Rows whose ingredient record is gone are skipped.
func (e *Engine) InventoryDetails(ctx context.Context) []InventoryDetail {
	var details []InventoryDetail
	_ = e.store.View(ctx, func(view domain.TransactionView) error {
		for _, item := range view.ListInventoryItems() {
			ingredient, ok := view.FindIngredient(item.IngredientID)
			if !ok {
				continue
			}
			details = append(details, InventoryDetail{
				Item:       item,
				Ingredient: ingredient,
				Status:     ClassifyStatus(item, true),
			})
		}
		return nil
	})
	return details
}
