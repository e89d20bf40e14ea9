// Package derived implements the pure computation layer over current store
// snapshots: stock alerts, demand aggregation, shopping lists, and status
// classification. Nothing here holds state; every call recomputes from the
// snapshots it is given.
package derived

import (
	"fmt"
	"time"

	"bakehouse/pkg/domain"
)

// ExpiryWindow is how far ahead the expiring-soon rule looks.
const ExpiryWindow = 7 * 24 * time.Hour

// StockLevelRule emits out-of-stock and low-stock alerts for tracked
// ingredients. Items whose ingredient record is gone are skipped.
type StockLevelRule struct{}

// Name identifies the rule.
func (StockLevelRule) Name() string { return "stock-level" }

// Evaluate emits an error alert at zero stock and a warning when stock sits
// below the reorder threshold.
func (StockLevelRule) Evaluate(view domain.InventoryAlertView, _ time.Time) []domain.StockAlert {
	var alerts []domain.StockAlert
	for _, item := range view.ListInventoryItems() {
		ingredient, ok := view.FindIngredient(item.IngredientID)
		if !ok {
			continue
		}
		switch {
		case item.CurrentStock == 0:
			alerts = append(alerts, domain.StockAlert{
				Type:           domain.AlertOutOfStock,
				Severity:       domain.SeverityError,
				IngredientID:   item.IngredientID,
				IngredientName: ingredient.Name,
				Message:        fmt.Sprintf("%s is out of stock", ingredient.Name),
				CurrentStock:   item.CurrentStock,
				MinStock:       item.MinStock,
			})
		case item.CurrentStock < item.MinStock:
			alerts = append(alerts, domain.StockAlert{
				Type:           domain.AlertLowStock,
				Severity:       domain.SeverityWarning,
				IngredientID:   item.IngredientID,
				IngredientName: ingredient.Name,
				Message:        fmt.Sprintf("%s is below minimum stock (%.2f < %.2f)", ingredient.Name, item.CurrentStock, item.MinStock),
				CurrentStock:   item.CurrentStock,
				MinStock:       item.MinStock,
			})
		}
	}
	return alerts
}

// ExpiryRule emits expired and expiring-soon alerts for tracked ingredients
// carrying an expiration date.
type ExpiryRule struct{}

// Name identifies the rule.
func (ExpiryRule) Name() string { return "expiry" }

// Evaluate emits an error alert for dates in the past and a warning for dates
// inside the lookahead window.
func (ExpiryRule) Evaluate(view domain.InventoryAlertView, now time.Time) []domain.StockAlert {
	var alerts []domain.StockAlert
	for _, item := range view.ListInventoryItems() {
		if item.ExpirationDate == nil {
			continue
		}
		ingredient, ok := view.FindIngredient(item.IngredientID)
		if !ok {
			continue
		}
		expiry := *item.ExpirationDate
		switch {
		case expiry.Before(now):
			alerts = append(alerts, domain.StockAlert{
				Type:           domain.AlertExpired,
				Severity:       domain.SeverityError,
				IngredientID:   item.IngredientID,
				IngredientName: ingredient.Name,
				Message:        fmt.Sprintf("%s expired on %s", ingredient.Name, expiry.Format("2006-01-02")),
				CurrentStock:   item.CurrentStock,
				MinStock:       item.MinStock,
				ExpirationDate: item.ExpirationDate,
			})
		case expiry.Sub(now) <= ExpiryWindow:
			alerts = append(alerts, domain.StockAlert{
				Type:           domain.AlertExpiringSoon,
				Severity:       domain.SeverityWarning,
				IngredientID:   item.IngredientID,
				IngredientName: ingredient.Name,
				Message:        fmt.Sprintf("%s expires on %s", ingredient.Name, expiry.Format("2006-01-02")),
				CurrentStock:   item.CurrentStock,
				MinStock:       item.MinStock,
				ExpirationDate: item.ExpirationDate,
			})
		}
	}
	return alerts
}

// NewAlertEngine builds an engine with the default rule set registered.
func NewAlertEngine() *domain.AlertEngine {
	engine := domain.NewAlertEngine()
	engine.Register(StockLevelRule{})
	engine.Register(ExpiryRule{})
	return engine
}
