package derived

import (
	"context"
	"reflect"
	"testing"
	"time"

	"bakehouse/internal/infra/persistence/memory"
	"bakehouse/pkg/domain"
)

func seedStore(t *testing.T, fn func(tx domain.Transaction) error) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	if _, err := store.RunInTransaction(context.Background(), fn); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return store
}

func TestStatusClassification(t *testing.T) {
	store := seedStore(t, func(tx domain.Transaction) error {
		if _, err := tx.CreateIngredient(domain.Ingredient{Base: domain.Base{ID: "low"}, Name: "Flour"}); err != nil {
			return err
		}
		if _, err := tx.UpsertInventoryItem(domain.InventoryItem{IngredientID: "low", CurrentStock: 2, MinStock: 5}); err != nil {
			return err
		}
		_, err := tx.UpsertInventoryItem(domain.InventoryItem{IngredientID: "out", CurrentStock: 0, MinStock: 1})
		return err
	})
	engine := NewEngine(store)

	cases := []struct {
		id   string
		want Status
	}{
		{"low", StatusLow},
		{"out", StatusOut},
		{"untracked", StatusUnknown},
	}
	for _, tc := range cases {
		if got := engine.Status(context.Background(), tc.id); got != tc.want {
			t.Fatalf("status(%s) = %s, want %s", tc.id, got, tc.want)
		}
	}

	good := domain.InventoryItem{CurrentStock: 9, MinStock: 5}
	if got := ClassifyStatus(good, true); got != StatusGood {
		t.Fatalf("expected good, got %s", got)
	}
}

func TestAlertsErrorsPrecedeWarnings(t *testing.T) {
	soon := time.Now().UTC().Add(48 * time.Hour)
	past := time.Now().UTC().Add(-24 * time.Hour)
	store := seedStore(t, func(tx domain.Transaction) error {
		for _, id := range []string{"a", "b", "c"} {
			if _, err := tx.CreateIngredient(domain.Ingredient{Base: domain.Base{ID: id}, Name: id}); err != nil {
				return err
			}
		}
		// a: low stock (warning) + expiring soon (warning)
		if _, err := tx.UpsertInventoryItem(domain.InventoryItem{IngredientID: "a", CurrentStock: 1, MinStock: 5, ExpirationDate: &soon}); err != nil {
			return err
		}
		// b: out of stock (error)
		if _, err := tx.UpsertInventoryItem(domain.InventoryItem{IngredientID: "b", CurrentStock: 0, MinStock: 1}); err != nil {
			return err
		}
		// c: expired (error)
		_, err := tx.UpsertInventoryItem(domain.InventoryItem{IngredientID: "c", CurrentStock: 4, MinStock: 1, ExpirationDate: &past})
		return err
	})
	engine := NewEngine(store)

	alerts := engine.Alerts(context.Background())
	if len(alerts) != 4 {
		t.Fatalf("expected 4 alerts, got %d: %+v", len(alerts), alerts)
	}
	for i, alert := range alerts[:2] {
		if alert.Severity != domain.SeverityError {
			t.Fatalf("alert %d should be error severity, got %s (%s)", i, alert.Severity, alert.Type)
		}
	}
	for i, alert := range alerts[2:] {
		if alert.Severity != domain.SeverityWarning {
			t.Fatalf("alert %d should be warning severity, got %s (%s)", i+2, alert.Severity, alert.Type)
		}
	}
}

func TestAlertsSkipItemsWithoutIngredient(t *testing.T) {
	store := seedStore(t, func(tx domain.Transaction) error {
		_, err := tx.UpsertInventoryItem(domain.InventoryItem{IngredientID: "orphan", CurrentStock: 0})
		return err
	})
	engine := NewEngine(store)
	if alerts := engine.Alerts(context.Background()); len(alerts) != 0 {
		t.Fatalf("expected no alerts for orphaned inventory, got %+v", alerts)
	}
}

// seedShoppingScenario: flour tracked at stock 1 / min 2; an open order needs
// 4 units and a delivered order needs 10 more that must not count.
func seedShoppingScenario(t *testing.T) *memory.Store {
	t.Helper()
	return seedStore(t, func(tx domain.Transaction) error {
		flour, err := tx.CreateIngredient(domain.Ingredient{Base: domain.Base{ID: "flour"}, Name: "Flour", Unit: "kg", PackageSize: 1, PackageCost: 3})
		if err != nil {
			return err
		}
		recipe, err := tx.CreateRecipe(domain.Recipe{
			Base:        domain.Base{ID: "bread"},
			Name:        "Bread",
			Servings:    1,
			Ingredients: []domain.RecipeIngredient{{IngredientID: flour.ID, Quantity: 2, Cost: 6}},
		})
		if err != nil {
			return err
		}
		if _, err := tx.CreateOrder(domain.Order{
			Status: domain.OrderStatusNew,
			Items:  []domain.OrderItem{{RecipeID: recipe.ID, Quantity: 2}},
		}); err != nil {
			return err
		}
		if _, err := tx.CreateOrder(domain.Order{
			Status: domain.OrderStatusDelivered,
			Items:  []domain.OrderItem{{RecipeID: recipe.ID, Quantity: 5}},
		}); err != nil {
			return err
		}
		_, err = tx.UpsertInventoryItem(domain.InventoryItem{IngredientID: flour.ID, CurrentStock: 1, MinStock: 2})
		return err
	})
}

func TestShoppingListFiltersByStatusAndComputesDeficit(t *testing.T) {
	engine := NewEngine(seedShoppingScenario(t))

	list := engine.ShoppingList(context.Background())
	if len(list) != 1 {
		t.Fatalf("expected 1 entry, got %+v", list)
	}
	entry := list[0]
	if entry.Needed != 4 {
		t.Fatalf("expected needed 4 (delivered order excluded), got %v", entry.Needed)
	}
	if entry.Deficit != 3 {
		t.Fatalf("expected deficit 3, got %v", entry.Deficit)
	}
	if entry.Priority != PriorityNeeded {
		t.Fatalf("expected priority needed (stock 1 < min 2), got %s", entry.Priority)
	}
	if entry.EstimatedCost != 9 {
		t.Fatalf("expected estimated cost 9 (3 units at 3/unit), got %v", entry.EstimatedCost)
	}
}

func TestShoppingListIsIdempotent(t *testing.T) {
	engine := NewEngine(seedShoppingScenario(t))
	first := engine.ShoppingList(context.Background())
	second := engine.ShoppingList(context.Background())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("shopping list not stable:\n%+v\n%+v", first, second)
	}
}

func TestShoppingListPriorityAndCostOrdering(t *testing.T) {
	store := seedStore(t, func(tx domain.Transaction) error {
		type ing struct {
			id    string
			cost  float64
			stock float64
			min   float64
		}
		// zero: untracked, so demand hits stock 0 and goes critical.
		ings := []ing{
			{id: "cheap", cost: 1, stock: 1, min: 5},
			{id: "pricey", cost: 10, stock: 1, min: 5},
			{id: "covered", cost: 2, stock: 3, min: 1},
		}
		lines := []domain.RecipeIngredient{{IngredientID: "zero", Quantity: 4}}
		for _, i := range ings {
			if _, err := tx.CreateIngredient(domain.Ingredient{Base: domain.Base{ID: i.id}, Name: i.id, PackageSize: 1, PackageCost: i.cost}); err != nil {
				return err
			}
			if _, err := tx.UpsertInventoryItem(domain.InventoryItem{IngredientID: i.id, CurrentStock: i.stock, MinStock: i.min}); err != nil {
				return err
			}
			lines = append(lines, domain.RecipeIngredient{IngredientID: i.id, Quantity: 4})
		}
		if _, err := tx.CreateIngredient(domain.Ingredient{Base: domain.Base{ID: "zero"}, Name: "zero", PackageSize: 1, PackageCost: 2}); err != nil {
			return err
		}
		recipe, err := tx.CreateRecipe(domain.Recipe{Base: domain.Base{ID: "r"}, Name: "Mix", Servings: 1, Ingredients: lines})
		if err != nil {
			return err
		}
		_, err = tx.CreateOrder(domain.Order{Status: domain.OrderStatusInProgress, Items: []domain.OrderItem{{RecipeID: recipe.ID, Quantity: 1}}})
		return err
	})
	engine := NewEngine(store)

	list := engine.ShoppingList(context.Background())
	got := make([]string, len(list))
	for i, entry := range list {
		got[i] = entry.IngredientID
	}
	// critical first, then needed ordered by estimated cost descending, then optional.
	want := []string{"zero", "pricey", "cheap", "covered"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected ordering: got %v want %v", got, want)
	}
	if list[0].Priority != PriorityCritical || list[3].Priority != PriorityOptional {
		t.Fatalf("unexpected priorities: %+v", list)
	}
}

func TestDemandSkipsMissingRecipes(t *testing.T) {
	store := seedStore(t, func(tx domain.Transaction) error {
		_, err := tx.CreateOrder(domain.Order{
			Status: domain.OrderStatusNew,
			Items:  []domain.OrderItem{{RecipeID: "ghost", Quantity: 3}},
		})
		return err
	})
	engine := NewEngine(store)
	if demand := engine.Demand(context.Background()); len(demand) != 0 {
		t.Fatalf("expected empty demand, got %v", demand)
	}
}

func TestInventoryDetailsJoinsIngredient(t *testing.T) {
	store := seedStore(t, func(tx domain.Transaction) error {
		if _, err := tx.CreateIngredient(domain.Ingredient{Base: domain.Base{ID: "flour"}, Name: "Flour", Unit: "kg"}); err != nil {
			return err
		}
		if _, err := tx.UpsertInventoryItem(domain.InventoryItem{IngredientID: "flour", CurrentStock: 2, MinStock: 5}); err != nil {
			return err
		}
		_, err := tx.UpsertInventoryItem(domain.InventoryItem{IngredientID: "orphan", CurrentStock: 1})
		return err
	})
	engine := NewEngine(store)

	details := engine.InventoryDetails(context.Background())
	if len(details) != 1 {
		t.Fatalf("expected orphan row skipped, got %+v", details)
	}
	if details[0].Ingredient.Name != "Flour" || details[0].Status != StatusLow {
		t.Fatalf("unexpected detail: %+v", details[0])
	}
}
