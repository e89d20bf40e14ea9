package memory

import (
	"context"
	"testing"
	"time"

	"bakehouse/pkg/domain"
)

func TestCreateIngredientAssignsIDAndCost(t *testing.T) {
	store := NewStore()
	changes, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		created, err := tx.CreateIngredient(Ingredient{Name: "Flour", Unit: "kg", PackageSize: 5, PackageCost: 10})
		if err != nil {
			return err
		}
		if created.ID == "" {
			t.Fatal("expected id to be assigned")
		}
		if created.CostPerUnit != 2.0 {
			t.Fatalf("expected derived cost 2.0, got %v", created.CostPerUnit)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if len(changes) != 1 || changes[0].Action != domain.ActionCreate || changes[0].Entity != domain.EntityIngredient {
		t.Fatalf("unexpected change set: %+v", changes)
	}
}

func TestTransactionRollbackOnError(t *testing.T) {
	store := NewStore()
	boom := context.DeadlineExceeded
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateIngredient(Ingredient{Name: "Sugar"}); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("expected error to propagate, got %v", err)
	}
	if got := len(store.ListIngredients()); got != 0 {
		t.Fatalf("expected rollback, found %d ingredients", got)
	}
}

func TestUpdateMissingIngredientFails(t *testing.T) {
	store := NewStore()
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.UpdateIngredient("ghost", func(*Ingredient) error { return nil })
		return err
	})
	if err == nil {
		t.Fatal("expected not-found error")
	}
}

func TestOrderNumbersAreSequential(t *testing.T) {
	store := NewStore()
	var first, second Order
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		if first, err = tx.CreateOrder(Order{}); err != nil {
			return err
		}
		second, err = tx.CreateOrder(Order{})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if first.OrderNumber != 1 || second.OrderNumber != 2 {
		t.Fatalf("expected order numbers 1 and 2, got %d and %d", first.OrderNumber, second.OrderNumber)
	}
	if first.Status != domain.OrderStatusNew {
		t.Fatalf("expected default status new, got %s", first.Status)
	}
}

func TestInventoryStockClampedAtZero(t *testing.T) {
	store := NewStore()
	var item InventoryItem
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.UpsertInventoryItem(InventoryItem{IngredientID: "flour", CurrentStock: 3}); err != nil {
			return err
		}
		var err error
		item, err = tx.UpdateInventoryItem("flour", func(it *InventoryItem) error {
			it.CurrentStock -= 10
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if item.CurrentStock != 0 {
		t.Fatalf("expected stock clamped to 0, got %v", item.CurrentStock)
	}
}

func TestRegisterCategoryDedupesCaseInsensitively(t *testing.T) {
	store := NewStore()
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		tx.RegisterCategory("Cakes")
		tx.RegisterCategory("cakes")
		tx.RegisterCategory("Bread")
		tx.RegisterCategory("  ")
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	got := store.Categories()
	if len(got) != 2 || got[0] != "Bread" || got[1] != "Cakes" {
		t.Fatalf("unexpected categories: %v", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := NewStore()
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		ing, err := tx.CreateIngredient(Ingredient{Name: "Butter", Unit: "g", PackageSize: 250, PackageCost: 5})
		if err != nil {
			return err
		}
		if _, err := tx.CreateRecipe(Recipe{Name: "Croissant", Category: "Pastry", Servings: 4}); err != nil {
			return err
		}
		if _, err := tx.CreateOrder(Order{CustomerName: "Ana"}); err != nil {
			return err
		}
		_, err = tx.UpsertInventoryItem(InventoryItem{IngredientID: ing.ID, CurrentStock: 100})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	restored := NewStore()
	restored.ImportState(store.ExportState())

	if got := len(restored.ListIngredients()); got != 1 {
		t.Fatalf("expected 1 ingredient, got %d", got)
	}
	if got := len(restored.ListRecipes()); got != 1 {
		t.Fatalf("expected 1 recipe, got %d", got)
	}
	if got := restored.Categories(); len(got) != 1 || got[0] != "Pastry" {
		t.Fatalf("expected category registry to survive, got %v", got)
	}
	// Order sequence continues from the imported maximum.
	var next Order
	if _, err := restored.RunInTransaction(context.Background(), func(tx Transaction) error {
		var err error
		next, err = tx.CreateOrder(Order{})
		return err
	}); err != nil {
		t.Fatalf("create after import: %v", err)
	}
	if next.OrderNumber != 2 {
		t.Fatalf("expected order number 2 after import, got %d", next.OrderNumber)
	}
}

func TestMigrateSnapshotRepairsLegacyData(t *testing.T) {
	snapshot := Snapshot{
		Ingredients: map[string]Ingredient{
			"i1": {Base: domain.Base{ID: "i1"}, Name: "Flour", PackageSize: 5, PackageCost: 10},
		},
		Recipes: map[string]Recipe{
			"r1": {
				Base:        domain.Base{ID: "r1"},
				Name:        "Bread",
				Category:    "Bread",
				Servings:    5,
				LaborCost:   5,
				Ingredients: []domain.RecipeIngredient{{IngredientID: "i1", Quantity: 3, Cost: 6}},
			},
		},
		Inventory: map[string]InventoryItem{
			"i1":     {IngredientID: "i1", CurrentStock: -4},
			"broken": {CurrentStock: 7},
		},
	}
	store := NewStore()
	store.ImportState(snapshot)

	recipe, ok := store.GetRecipe("r1")
	if !ok {
		t.Fatal("recipe missing after import")
	}
	if recipe.TotalCost != 11 {
		t.Fatalf("expected migrated total cost 11, got %v", recipe.TotalCost)
	}
	item, ok := store.GetInventoryItem("i1")
	if !ok {
		t.Fatal("inventory row missing after import")
	}
	if item.CurrentStock != 0 {
		t.Fatalf("expected negative stock clamped, got %v", item.CurrentStock)
	}
	if got := len(store.ListInventoryItems()); got != 1 {
		t.Fatalf("expected keyless inventory row dropped, got %d rows", got)
	}
	if got := store.Categories(); len(got) != 1 || got[0] != "Bread" {
		t.Fatalf("expected category harvested from recipes, got %v", got)
	}
}

func TestReplaceCollectionsKeepsAbsentOnes(t *testing.T) {
	store := NewStore()
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, err := tx.CreateIngredient(Ingredient{Name: "Flour"}); err != nil {
			return err
		}
		_, err := tx.CreateCustomer(Customer{Name: "Ana"})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	store.ReplaceCollections(Snapshot{
		Ingredients: map[string]Ingredient{
			"remote": {Base: domain.Base{ID: "remote"}, Name: "Sugar"},
		},
	})

	ingredients := store.ListIngredients()
	if len(ingredients) != 1 || ingredients[0].Name != "Sugar" {
		t.Fatalf("expected ingredients replaced, got %+v", ingredients)
	}
	if got := len(store.ListCustomers()); got != 1 {
		t.Fatalf("expected customers untouched, got %d", got)
	}
}

func TestViewReturnsClones(t *testing.T) {
	store := NewStore()
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateRecipe(Recipe{Name: "Bread", Ingredients: []domain.RecipeIngredient{{IngredientID: "i1", Quantity: 1}}})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.View(context.Background(), func(view TransactionView) error {
		recipes := view.ListRecipes()
		recipes[0].Ingredients[0].Quantity = 99
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	fresh := store.ListRecipes()
	if fresh[0].Ingredients[0].Quantity != 1 {
		t.Fatalf("mutation through view leaked into store: %v", fresh[0].Ingredients[0].Quantity)
	}
}

func TestFindCustomerByNameIsCaseInsensitive(t *testing.T) {
	store := NewStore()
	store.SetNowFunc(func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) })
	_, err := store.RunInTransaction(context.Background(), func(tx Transaction) error {
		_, err := tx.CreateCustomer(Customer{Name: "Maria Lopez"})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx Transaction) error {
		if _, ok := tx.FindCustomerByName("  maria lopez "); !ok {
			t.Fatal("expected case-insensitive match")
		}
		if _, ok := tx.FindCustomerByName("someone else"); ok {
			t.Fatal("unexpected match")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
}
