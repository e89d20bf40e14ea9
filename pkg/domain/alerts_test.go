package domain

import (
	"testing"
	"time"
)

type stubView struct{}

func (stubView) ListInventoryItems() []InventoryItem      { return nil }
func (stubView) FindIngredient(string) (Ingredient, bool) { return Ingredient{}, false }

type fixedRule struct {
	name   string
	alerts []StockAlert
}

func (r fixedRule) Name() string { return r.name }
func (r fixedRule) Evaluate(InventoryAlertView, time.Time) []StockAlert {
	return r.alerts
}

func TestAlertEngineSortsErrorsFirst(t *testing.T) {
	engine := NewAlertEngine()
	engine.Register(fixedRule{name: "warnings", alerts: []StockAlert{
		{Type: AlertLowStock, Severity: SeverityWarning, IngredientID: "a"},
		{Type: AlertExpiringSoon, Severity: SeverityWarning, IngredientID: "b"},
	}})
	engine.Register(fixedRule{name: "errors", alerts: []StockAlert{
		{Type: AlertOutOfStock, Severity: SeverityError, IngredientID: "c"},
		{Type: AlertExpired, Severity: SeverityError, IngredientID: "d"},
	}})

	alerts := engine.Evaluate(stubView{}, time.Now())
	if len(alerts) != 4 {
		t.Fatalf("expected 4 alerts, got %d", len(alerts))
	}
	if alerts[0].Severity != SeverityError || alerts[1].Severity != SeverityError {
		t.Fatalf("expected errors first, got %v then %v", alerts[0].Severity, alerts[1].Severity)
	}
	// Stable: relative order within each severity is preserved.
	if alerts[0].IngredientID != "c" || alerts[1].IngredientID != "d" {
		t.Fatalf("error order not stable: %s, %s", alerts[0].IngredientID, alerts[1].IngredientID)
	}
	if alerts[2].IngredientID != "a" || alerts[3].IngredientID != "b" {
		t.Fatalf("warning order not stable: %s, %s", alerts[2].IngredientID, alerts[3].IngredientID)
	}
}
