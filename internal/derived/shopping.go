package derived

import (
	"sort"

	"bakehouse/pkg/domain"
)

// Priority ranks how urgently a shopping list entry needs purchasing.
type Priority string

// Priority tiers, most urgent first.
const (
	PriorityCritical Priority = "critical" // nothing on hand
	PriorityNeeded   Priority = "needed"   // below the reorder threshold
	PriorityOptional Priority = "optional" // covered, demand exceeds stock anyway
)

// ShoppingItem is one line of a generated shopping list.
type ShoppingItem struct {
	IngredientID   string   `json:"ingredient_id"`
	IngredientName string   `json:"ingredient_name"`
	Unit           string   `json:"unit"`
	Needed         float64  `json:"needed"`
	CurrentStock   float64  `json:"current_stock"`
	Deficit        float64  `json:"deficit"`
	Priority       Priority `json:"priority"`
	EstimatedCost  float64  `json:"estimated_cost"`
}

// AggregateDemand sums per-ingredient demand across the given orders. Each
// order item contributes recipe line quantity times item quantity, using the
// recipe's current ingredient list as the unit of truth. Items whose recipe
// no longer exists contribute nothing.
func AggregateDemand(view domain.TransactionView, orders []domain.Order) map[string]float64 {
	demand := make(map[string]float64)
	for _, order := range orders {
		for _, item := range order.Items {
			recipe, ok := view.FindRecipe(item.RecipeID)
			if !ok {
				continue
			}
			for _, line := range recipe.Ingredients {
				demand[line.IngredientID] += line.Quantity * float64(item.Quantity)
			}
		}
	}
	return demand
}

// ShoppingList generates purchase suggestions for ingredients whose demand
// from orders in the given statuses exceeds current stock. Statuses default
// to the open set (new, in-progress). Output is sorted by priority tier, then
// by estimated cost descending within a tier.
func ShoppingList(view domain.TransactionView, statuses ...domain.OrderStatus) []ShoppingItem {
	if len(statuses) == 0 {
		statuses = domain.OpenOrderStatuses
	}
	wanted := make(map[domain.OrderStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}

	var orders []domain.Order
	for _, order := range view.ListOrders() {
		if wanted[order.Status] {
			orders = append(orders, order)
		}
	}

	demand := AggregateDemand(view, orders)

	items := make([]ShoppingItem, 0, len(demand))
	for ingredientID, needed := range demand {
		var stock, minStock float64
		if tracked, ok := view.FindInventoryItem(ingredientID); ok {
			stock = tracked.CurrentStock
			minStock = tracked.MinStock
		}
		deficit := needed - stock
		if deficit <= 0 {
			continue
		}
		entry := ShoppingItem{
			IngredientID: ingredientID,
			Needed:       needed,
			CurrentStock: stock,
			Deficit:      deficit,
		}
		switch {
		case stock == 0:
			entry.Priority = PriorityCritical
		case stock < minStock:
			entry.Priority = PriorityNeeded
		default:
			entry.Priority = PriorityOptional
		}
		if ingredient, ok := view.FindIngredient(ingredientID); ok {
			entry.IngredientName = ingredient.Name
			entry.Unit = ingredient.Unit
			entry.EstimatedCost = deficit * ingredient.CostPerUnit
		}
		items = append(items, entry)
	}

	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := priorityRank(items[i].Priority), priorityRank(items[j].Priority)
		if ri != rj {
			return ri < rj
		}
		if items[i].EstimatedCost != items[j].EstimatedCost {
			return items[i].EstimatedCost > items[j].EstimatedCost
		}
		return items[i].IngredientID < items[j].IngredientID
	})
	return items
}

func priorityRank(p Priority) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityNeeded:
		return 1
	default:
		return 2
	}
}
