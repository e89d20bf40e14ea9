// Package core exposes the transactional service facade over the persistent
// store. All writes flow through here so that change sets reach the sync
// layer and derived costs are recomputed before commit.
package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bakehouse/pkg/domain"
)

// ErrInvalidStatusTransition is returned when an order status change moves
// backwards in the workflow.
var ErrInvalidStatusTransition = errors.New("invalid order status transition")

// Service exposes higher-level transactional CRUD operations for the bakery
// domain. Mutations on ids that no longer exist are treated as no-ops: the
// record was removed on another device and the local call simply has nothing
// left to do.
type Service struct {
	store   SnapshotStore
	changes *ChangeBroadcaster
	log     *logrus.Entry
	now     func() time.Time
}

// NewService constructs a service backed by the supplied store.
func NewService(store SnapshotStore, changes *ChangeBroadcaster, log *logrus.Logger) *Service {
	if changes == nil {
		changes = NewChangeBroadcaster()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		store:   store,
		changes: changes,
		log:     log.WithField("component", "core"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() SnapshotStore { return s.store }

// Changes returns the broadcaster carrying committed change sets.
func (s *Service) Changes() *ChangeBroadcaster { return s.changes }

// SetNowFunc overrides the time provider; intended for tests.
func (s *Service) SetNowFunc(fn func() time.Time) { s.now = fn }

func (s *Service) run(ctx context.Context, fn func(Transaction) error) error {
	changes, err := s.store.RunInTransaction(ctx, fn)
	if err != nil {
		return err
	}
	s.changes.Publish(changes)
	return nil
}

// CreateIngredient persists a new ingredient with its unit cost derived from
// the package price.
func (s *Service) CreateIngredient(ctx context.Context, ingredient Ingredient) (Ingredient, error) {
	var created Ingredient
	err := s.run(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateIngredient(ingredient)
		return err
	})
	return created, err
}

// UpdateIngredient mutates an ingredient and refreshes its derived cost. A
// missing id is a no-op returning the zero value.
func (s *Service) UpdateIngredient(ctx context.Context, id string, mutator func(*Ingredient) error) (Ingredient, error) {
	var updated Ingredient
	err := s.run(ctx, func(tx Transaction) error {
		if _, ok := tx.FindIngredient(id); !ok {
			s.log.WithField("ingredient_id", id).Debug("update skipped: ingredient gone")
			return nil
		}
		var err error
		updated, err = tx.UpdateIngredient(id, mutator)
		return err
	})
	return updated, err
}

// DeleteIngredient removes an ingredient. Referential integrity is not
// enforced and nothing cascades: recipe lines and the inventory row keep the
// dangling id, and callers that care pre-check with IngredientInUse. A
// missing id is a no-op.
func (s *Service) DeleteIngredient(ctx context.Context, id string) error {
	return s.run(ctx, func(tx Transaction) error {
		if _, ok := tx.FindIngredient(id); !ok {
			s.log.WithField("ingredient_id", id).Debug("delete skipped: ingredient gone")
			return nil
		}
		return tx.DeleteIngredient(id)
	})
}

// IngredientInUse reports whether any recipe references the ingredient.
func (s *Service) IngredientInUse(id string) bool {
	for _, recipe := range s.store.ListRecipes() {
		for _, line := range recipe.Ingredients {
			if line.IngredientID == id {
				return true
			}
		}
	}
	return false
}

// repriceRecipeLines refreshes each line's extended cost from the current
// ingredient unit costs. Lines whose ingredient no longer exists keep a zero
// cost and are otherwise left in place.
func repriceRecipeLines(tx Transaction, recipe *Recipe) {
	for idx := range recipe.Ingredients {
		line := &recipe.Ingredients[idx]
		ingredient, ok := tx.FindIngredient(line.IngredientID)
		if !ok {
			line.Cost = 0
			continue
		}
		if line.Unit == "" {
			line.Unit = ingredient.Unit
		}
		line.Cost = line.Quantity * ingredient.CostPerUnit
	}
}

// CreateRecipe persists a new recipe, pricing its ingredient lines from the
// current ingredient costs.
func (s *Service) CreateRecipe(ctx context.Context, recipe Recipe) (Recipe, error) {
	var created Recipe
	err := s.run(ctx, func(tx Transaction) error {
		repriceRecipeLines(tx, &recipe)
		var err error
		created, err = tx.CreateRecipe(recipe)
		return err
	})
	return created, err
}

// UpdateRecipe mutates a recipe, then reprices its lines and derived costs.
// A missing id is a no-op.
func (s *Service) UpdateRecipe(ctx context.Context, id string, mutator func(*Recipe) error) (Recipe, error) {
	var updated Recipe
	err := s.run(ctx, func(tx Transaction) error {
		if _, ok := tx.FindRecipe(id); !ok {
			s.log.WithField("recipe_id", id).Debug("update skipped: recipe gone")
			return nil
		}
		var err error
		updated, err = tx.UpdateRecipe(id, func(r *Recipe) error {
			if err := mutator(r); err != nil {
				return err
			}
			repriceRecipeLines(tx, r)
			return nil
		})
		return err
	})
	return updated, err
}

// DeleteRecipe removes a recipe. A missing id is a no-op.
func (s *Service) DeleteRecipe(ctx context.Context, id string) error {
	return s.run(ctx, func(tx Transaction) error {
		if _, ok := tx.FindRecipe(id); !ok {
			s.log.WithField("recipe_id", id).Debug("delete skipped: recipe gone")
			return nil
		}
		return tx.DeleteRecipe(id)
	})
}

// OrderLine is one requested item of a new order.
type OrderLine struct {
	RecipeID     string  `json:"recipe_id"`
	Quantity     int     `json:"quantity"`
	PricePerUnit float64 `json:"price_per_unit"`
}

// OrderRequest carries the caller-provided fields of a new order. Costs are
// snapshotted from the referenced recipes at placement time.
type OrderRequest struct {
	CustomerName  string      `json:"customer_name"`
	CustomerPhone string      `json:"customer_phone"`
	DeliveryDate  time.Time   `json:"delivery_date"`
	Notes         string      `json:"notes"`
	Items         []OrderLine `json:"items"`
}

// PlaceOrder creates an order, assigns the next order number, snapshots
// per-line cost and price from the recipes, and rolls the totals into the
// customer record, creating the customer on first order. Lines referencing a
// recipe that no longer exists are dropped.
func (s *Service) PlaceOrder(ctx context.Context, req OrderRequest) (Order, error) {
	var placed Order
	err := s.run(ctx, func(tx Transaction) error {
		customer, ok := tx.FindCustomerByName(req.CustomerName)
		if !ok {
			var err error
			customer, err = tx.CreateCustomer(Customer{
				Name:  strings.TrimSpace(req.CustomerName),
				Phone: req.CustomerPhone,
			})
			if err != nil {
				return err
			}
		}

		items := make([]domain.OrderItem, 0, len(req.Items))
		for _, line := range req.Items {
			recipe, ok := tx.FindRecipe(line.RecipeID)
			if !ok {
				s.log.WithField("recipe_id", line.RecipeID).Debug("order line dropped: recipe gone")
				continue
			}
			items = append(items, domain.OrderItem{
				RecipeID:     recipe.ID,
				RecipeName:   recipe.Name,
				Quantity:     line.Quantity,
				CostPerUnit:  recipe.CostPerServing,
				PricePerUnit: line.PricePerUnit,
			})
		}

		created, err := tx.CreateOrder(Order{
			CustomerName:  customer.Name,
			CustomerPhone: customer.Phone,
			Items:         items,
			Status:        domain.OrderStatusNew,
			DeliveryDate:  req.DeliveryDate,
			Notes:         req.Notes,
		})
		if err != nil {
			return err
		}
		placed = created

		_, err = tx.UpdateCustomer(customer.ID, func(c *Customer) error {
			c.TotalOrders++
			c.TotalSpent += created.TotalRevenue
			c.OrderIDs = append(c.OrderIDs, created.ID)
			return nil
		})
		return err
	})
	return placed, err
}

var statusRank = map[domain.OrderStatus]int{
	domain.OrderStatusNew:        0,
	domain.OrderStatusInProgress: 1,
	domain.OrderStatusReady:      2,
	domain.OrderStatusDelivered:  3,
}

// UpdateOrderStatus advances an order through its workflow. Moves must go
// forward; cancellation is allowed from any non-terminal state. A missing id
// is a no-op.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (Order, error) {
	var updated Order
	err := s.run(ctx, func(tx Transaction) error {
		current, ok := tx.Snapshot().FindOrder(id)
		if !ok {
			s.log.WithField("order_id", id).Debug("status change skipped: order gone")
			return nil
		}
		if current.Status == domain.OrderStatusCancelled || current.Status == domain.OrderStatusDelivered {
			return ErrInvalidStatusTransition
		}
		if status != domain.OrderStatusCancelled && statusRank[status] < statusRank[current.Status] {
			return ErrInvalidStatusTransition
		}
		var err error
		updated, err = tx.UpdateOrder(id, func(o *Order) error {
			o.Status = status
			return nil
		})
		return err
	})
	return updated, err
}

// UpdateOrder mutates an order's caller-editable fields. A missing id is a
// no-op.
func (s *Service) UpdateOrder(ctx context.Context, id string, mutator func(*Order) error) (Order, error) {
	var updated Order
	err := s.run(ctx, func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindOrder(id); !ok {
			s.log.WithField("order_id", id).Debug("update skipped: order gone")
			return nil
		}
		var err error
		updated, err = tx.UpdateOrder(id, mutator)
		return err
	})
	return updated, err
}

// DeleteOrder removes an order and unwinds its contribution to the customer
// aggregates. A missing id is a no-op.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	return s.run(ctx, func(tx Transaction) error {
		order, ok := tx.Snapshot().FindOrder(id)
		if !ok {
			s.log.WithField("order_id", id).Debug("delete skipped: order gone")
			return nil
		}
		if err := tx.DeleteOrder(id); err != nil {
			return err
		}
		customer, ok := tx.FindCustomerByName(order.CustomerName)
		if !ok {
			return nil
		}
		_, err := tx.UpdateCustomer(customer.ID, func(c *Customer) error {
			if c.TotalOrders > 0 {
				c.TotalOrders--
			}
			c.TotalSpent -= order.TotalRevenue
			if c.TotalSpent < 0 {
				c.TotalSpent = 0
			}
			kept := c.OrderIDs[:0]
			for _, oid := range c.OrderIDs {
				if oid != id {
					kept = append(kept, oid)
				}
			}
			c.OrderIDs = kept
			return nil
		})
		return err
	})
}

// CreateCustomer persists a new customer record.
func (s *Service) CreateCustomer(ctx context.Context, customer Customer) (Customer, error) {
	var created Customer
	err := s.run(ctx, func(tx Transaction) error {
		var err error
		created, err = tx.CreateCustomer(customer)
		return err
	})
	return created, err
}

// UpdateCustomer mutates a customer. A missing id is a no-op.
func (s *Service) UpdateCustomer(ctx context.Context, id string, mutator func(*Customer) error) (Customer, error) {
	var updated Customer
	err := s.run(ctx, func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindCustomer(id); !ok {
			s.log.WithField("customer_id", id).Debug("update skipped: customer gone")
			return nil
		}
		var err error
		updated, err = tx.UpdateCustomer(id, mutator)
		return err
	})
	return updated, err
}

// DeleteCustomer removes a customer record. Their orders keep the snapshotted
// name and phone. A missing id is a no-op.
func (s *Service) DeleteCustomer(ctx context.Context, id string) error {
	return s.run(ctx, func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindCustomer(id); !ok {
			s.log.WithField("customer_id", id).Debug("delete skipped: customer gone")
			return nil
		}
		return tx.DeleteCustomer(id)
	})
}

// GetCustomerByName looks up a customer by case-insensitive name match.
func (s *Service) GetCustomerByName(name string) (Customer, bool) {
	var (
		found Customer
		ok    bool
	)
	_ = s.store.View(context.Background(), func(view TransactionView) error {
		found, ok = view.FindCustomerByName(name)
		return nil
	})
	return found, ok
}

// ensureInventoryItem returns the tracking row for an ingredient, creating an
// empty one seeded from the ingredient's unit and cost when absent.
func ensureInventoryItem(tx Transaction, ingredientID string) (InventoryItem, error) {
	if item, ok := tx.FindInventoryItem(ingredientID); ok {
		return item, nil
	}
	item := InventoryItem{IngredientID: ingredientID}
	if ingredient, ok := tx.FindIngredient(ingredientID); ok {
		item.Unit = ingredient.Unit
		item.CostPerUnit = ingredient.CostPerUnit
	}
	return tx.UpsertInventoryItem(item)
}

// EnsureInventoryItem creates the tracking row for an ingredient if it does
// not exist yet and returns it.
func (s *Service) EnsureInventoryItem(ctx context.Context, ingredientID string) (InventoryItem, error) {
	var item InventoryItem
	err := s.run(ctx, func(tx Transaction) error {
		var err error
		item, err = ensureInventoryItem(tx, ingredientID)
		return err
	})
	return item, err
}

// AdjustStock applies a delta to an ingredient's stock, clamping at zero. The
// tracking row is created on first use.
func (s *Service) AdjustStock(ctx context.Context, ingredientID string, delta float64) (InventoryItem, error) {
	var item InventoryItem
	err := s.run(ctx, func(tx Transaction) error {
		if _, err := ensureInventoryItem(tx, ingredientID); err != nil {
			return err
		}
		var err error
		item, err = tx.UpdateInventoryItem(ingredientID, func(it *InventoryItem) error {
			it.CurrentStock += delta
			return nil
		})
		return err
	})
	return item, err
}

// Restock adds quantity to an ingredient's stock and stamps LastRestocked.
// A non-nil cost updates the tracked unit cost; a non-nil expiration replaces
// the expiration date.
func (s *Service) Restock(ctx context.Context, ingredientID string, quantity float64, cost *float64, expiration *time.Time) (InventoryItem, error) {
	var item InventoryItem
	restockedAt := s.now()
	err := s.run(ctx, func(tx Transaction) error {
		if _, err := ensureInventoryItem(tx, ingredientID); err != nil {
			return err
		}
		var err error
		item, err = tx.UpdateInventoryItem(ingredientID, func(it *InventoryItem) error {
			it.CurrentStock += quantity
			it.LastRestocked = &restockedAt
			if cost != nil {
				it.CostPerUnit = *cost
			}
			if expiration != nil {
				it.ExpirationDate = expiration
			}
			return nil
		})
		return err
	})
	return item, err
}

// SetMinStock sets the reorder threshold for an ingredient, creating the
// tracking row on first use.
func (s *Service) SetMinStock(ctx context.Context, ingredientID string, minStock float64) (InventoryItem, error) {
	var item InventoryItem
	err := s.run(ctx, func(tx Transaction) error {
		if _, err := ensureInventoryItem(tx, ingredientID); err != nil {
			return err
		}
		var err error
		item, err = tx.UpdateInventoryItem(ingredientID, func(it *InventoryItem) error {
			it.MinStock = minStock
			return nil
		})
		return err
	})
	return item, err
}

// UpsertInventoryItem writes a full tracking row as provided.
func (s *Service) UpsertInventoryItem(ctx context.Context, item InventoryItem) (InventoryItem, error) {
	var written InventoryItem
	err := s.run(ctx, func(tx Transaction) error {
		var err error
		written, err = tx.UpsertInventoryItem(item)
		return err
	})
	return written, err
}

// DeleteInventoryItem removes a tracking row. A missing id is a no-op.
func (s *Service) DeleteInventoryItem(ctx context.Context, ingredientID string) error {
	return s.run(ctx, func(tx Transaction) error {
		if _, ok := tx.FindInventoryItem(ingredientID); !ok {
			return nil
		}
		return tx.DeleteInventoryItem(ingredientID)
	})
}
