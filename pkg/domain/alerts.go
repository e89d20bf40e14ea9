package domain

import (
	"sort"
	"time"
)

// AlertSeverity captures how urgent a stock alert is.
type AlertSeverity string

// Alert severities. Error-severity alerts always sort ahead of warnings.
const (
	// SeverityError indicates stock that blocks production.
	SeverityError AlertSeverity = "error"
	// SeverityWarning indicates stock that needs attention soon.
	SeverityWarning AlertSeverity = "warning"
)

// AlertType identifies the condition a stock alert reports.
type AlertType string

// Alert conditions. One inventory row may fire several at once.
const (
	AlertOutOfStock   AlertType = "out-of-stock"
	AlertLowStock     AlertType = "low-stock"
	AlertExpired      AlertType = "expired"
	AlertExpiringSoon AlertType = "expiring-soon"
)

// StockAlert reports one condition on one tracked ingredient.
type StockAlert struct {
	Type           AlertType     `json:"type"`
	Severity       AlertSeverity `json:"severity"`
	IngredientID   string        `json:"ingredient_id"`
	IngredientName string        `json:"ingredient_name"`
	Message        string        `json:"message"`
	CurrentStock   float64       `json:"current_stock"`
	MinStock       float64       `json:"min_stock"`
	ExpirationDate *time.Time    `json:"expiration_date,omitempty"`
}

// InventoryAlertView provides read-only access to the entities alert rules
// evaluate against.
type InventoryAlertView interface {
	ListInventoryItems() []InventoryItem
	FindIngredient(id string) (Ingredient, bool)
}

// AlertRule evaluates one alert condition over the current snapshots.
type AlertRule interface {
	Name() string
	Evaluate(view InventoryAlertView, now time.Time) []StockAlert
}

// AlertEngine orchestrates alert rule evaluation. It is stateless: every
// call recomputes from the snapshots the view exposes.
type AlertEngine struct {
	rules []AlertRule
}

// NewAlertEngine constructs an engine instance.
func NewAlertEngine() *AlertEngine {
	return &AlertEngine{}
}

// Register appends a rule to the engine.
func (e *AlertEngine) Register(rule AlertRule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and returns the combined alerts,
// stable-sorted with error severity ahead of warnings.
func (e *AlertEngine) Evaluate(view InventoryAlertView, now time.Time) []StockAlert {
	var combined []StockAlert
	for _, rule := range e.rules {
		combined = append(combined, rule.Evaluate(view, now)...)
	}
	sort.SliceStable(combined, func(i, j int) bool {
		return severityRank(combined[i].Severity) < severityRank(combined[j].Severity)
	})
	return combined
}

func severityRank(s AlertSeverity) int {
	if s == SeverityError {
		return 0
	}
	return 1
}
