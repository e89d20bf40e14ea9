// Package domain defines the core persistent entities, value types, and
// alert evaluation primitives used by bakehouse.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityIngredient identifies a raw ingredient record.
	EntityIngredient EntityType = "ingredient"
	// EntityRecipe identifies a costed recipe record.
	EntityRecipe EntityType = "recipe"
	// EntityOrder identifies a customer order record.
	EntityOrder EntityType = "order"
	// EntityCustomer identifies a customer record.
	EntityCustomer EntityType = "customer"
	// EntityInventoryItem identifies a stock tracking row keyed by ingredient.
	EntityInventoryItem EntityType = "inventory_item"
)

// OrderStatus enumerates the order workflow states.
type OrderStatus string

// Canonical order statuses. The forward path is new → in-progress → ready →
// delivered; cancelled is terminal from any state.
const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusInProgress OrderStatus = "in-progress"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OpenOrderStatuses are the statuses that still consume ingredients and feed
// shopping-list demand by default.
var OpenOrderStatuses = []OrderStatus{OrderStatusNew, OrderStatusInProgress}

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ingredient represents a purchasable raw material. CostPerUnit is derived
// from the package price and recomputed on every write.
type Ingredient struct {
	Base
	Name        string  `json:"name"`
	Unit        string  `json:"unit"`
	PackageSize float64 `json:"package_size"`
	PackageCost float64 `json:"package_cost"`
	CostPerUnit float64 `json:"cost_per_unit"`
}

// RecomputeCost refreshes the derived per-unit cost. A non-positive package
// size yields a zero unit cost rather than an error.
func (i *Ingredient) RecomputeCost() {
	if i.PackageSize <= 0 {
		i.CostPerUnit = 0
		return
	}
	i.CostPerUnit = i.PackageCost / i.PackageSize
}

// RecipeIngredient is one line of a recipe's bill of materials. Cost is the
// extended cost for Quantity units at the ingredient's unit cost, snapshotted
// when the recipe is written.
type RecipeIngredient struct {
	IngredientID string  `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	Cost         float64 `json:"cost"`
}

// Recipe represents a costed product. TotalCost and CostPerServing are
// derived and recomputed whenever ingredients, labor, or overhead change.
type Recipe struct {
	Base
	Name           string             `json:"name"`
	Category       string             `json:"category"`
	Servings       int                `json:"servings"`
	Ingredients    []RecipeIngredient `json:"ingredients"`
	LaborCost      float64            `json:"labor_cost"`
	OverheadCost   float64            `json:"overhead_cost"`
	TotalCost      float64            `json:"total_cost"`
	CostPerServing float64            `json:"cost_per_serving"`
}

// RecomputeCosts refreshes TotalCost and CostPerServing from the current
// ingredient lines, labor, and overhead.
func (r *Recipe) RecomputeCosts() {
	total := r.LaborCost + r.OverheadCost
	for _, line := range r.Ingredients {
		total += line.Cost
	}
	r.TotalCost = total
	if r.Servings > 0 {
		r.CostPerServing = total / float64(r.Servings)
	} else {
		r.CostPerServing = 0
	}
}

// NeedsCostMigration reports whether a recipe predates derived-cost storage
// and must be recomputed before entering the store.
func (r Recipe) NeedsCostMigration() bool {
	if r.TotalCost != 0 || r.CostPerServing != 0 {
		return false
	}
	if r.LaborCost != 0 || r.OverheadCost != 0 {
		return true
	}
	for _, line := range r.Ingredients {
		if line.Cost != 0 {
			return true
		}
	}
	return false
}

// InventoryItem tracks on-hand stock for one ingredient. Rows are keyed by
// IngredientID (1:1 with Ingredient, created lazily); not every ingredient
// has a tracking row. CurrentStock never goes below zero.
type InventoryItem struct {
	IngredientID   string     `json:"ingredient_id"`
	CurrentStock   float64    `json:"current_stock"`
	MinStock       float64    `json:"min_stock"`
	Unit           string     `json:"unit"`
	CostPerUnit    float64    `json:"cost_per_unit"`
	LastUpdated    time.Time  `json:"last_updated"`
	LastRestocked  *time.Time `json:"last_restocked,omitempty"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

// OrderItem is one line of an order. Cost and price are snapshotted from the
// recipe at order time and never recalculated afterwards.
type OrderItem struct {
	RecipeID     string  `json:"recipe_id"`
	RecipeName   string  `json:"recipe_name"`
	Quantity     int     `json:"quantity"`
	CostPerUnit  float64 `json:"cost_per_unit"`
	PricePerUnit float64 `json:"price_per_unit"`
	TotalCost    float64 `json:"total_cost"`
	TotalPrice   float64 `json:"total_price"`
	Profit       float64 `json:"profit"`
}

// Order represents a customer order. The customer fields are a snapshot, not
// a live reference.
type Order struct {
	Base
	OrderNumber   int         `json:"order_number"`
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`
	Items         []OrderItem `json:"items"`
	Status        OrderStatus `json:"status"`
	DeliveryDate  time.Time   `json:"delivery_date"`
	Notes         string      `json:"notes,omitempty"`
	TotalCost     float64     `json:"total_cost"`
	TotalRevenue  float64     `json:"total_revenue"`
	TotalProfit   float64     `json:"total_profit"`
}

// RecomputeTotals refreshes per-line subtotals and the order totals.
func (o *Order) RecomputeTotals() {
	var cost, revenue float64
	for idx := range o.Items {
		item := &o.Items[idx]
		item.TotalCost = item.CostPerUnit * float64(item.Quantity)
		item.TotalPrice = item.PricePerUnit * float64(item.Quantity)
		item.Profit = item.TotalPrice - item.TotalCost
		cost += item.TotalCost
		revenue += item.TotalPrice
	}
	o.TotalCost = cost
	o.TotalRevenue = revenue
	o.TotalProfit = revenue - cost
}

// Customer represents a customer and their cumulative order history.
type Customer struct {
	Base
	Name        string   `json:"name"`
	Phone       string   `json:"phone"`
	TotalOrders int      `json:"total_orders"`
	TotalSpent  float64  `json:"total_spent"`
	OrderIDs    []string `json:"order_ids"`
}

// NormalizeCategory canonicalizes a recipe category for case-insensitive
// dedup while the registry preserves the first-seen spelling.
func NormalizeCategory(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
