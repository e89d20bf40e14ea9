package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"bakehouse/internal/infra/persistence/memory"
	"bakehouse/pkg/domain"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	return store
}

func TestStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bakehouse.db")

	store := openTestStore(t, path)
	var ingredientID string
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		ing, err := tx.CreateIngredient(domain.Ingredient{Name: "Flour", Unit: "kg", PackageSize: 5, PackageCost: 10})
		if err != nil {
			return err
		}
		ingredientID = ing.ID
		if _, err := tx.CreateRecipe(domain.Recipe{Name: "Bread", Category: "Bread", Servings: 2}); err != nil {
			return err
		}
		if _, err := tx.CreateOrder(domain.Order{CustomerName: "Ana"}); err != nil {
			return err
		}
		_, err = tx.UpsertInventoryItem(domain.InventoryItem{IngredientID: ing.ID, CurrentStock: 3, MinStock: 1})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	ing, ok := reopened.GetIngredient(ingredientID)
	if !ok {
		t.Fatal("ingredient missing after reopen")
	}
	if ing.CostPerUnit != 2.0 {
		t.Fatalf("expected derived cost to survive, got %v", ing.CostPerUnit)
	}
	if got := len(reopened.ListRecipes()); got != 1 {
		t.Fatalf("expected 1 recipe, got %d", got)
	}
	if got := reopened.Categories(); len(got) != 1 || got[0] != "Bread" {
		t.Fatalf("expected category registry to survive, got %v", got)
	}
	item, ok := reopened.GetInventoryItem(ingredientID)
	if !ok || item.CurrentStock != 3 {
		t.Fatalf("unexpected inventory row: %+v ok=%v", item, ok)
	}

	// Order numbering resumes from the stored maximum.
	var next domain.Order
	if _, err := reopened.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		next, err = tx.CreateOrder(domain.Order{})
		return err
	}); err != nil {
		t.Fatalf("create after reopen: %v", err)
	}
	if next.OrderNumber != 2 {
		t.Fatalf("expected order number 2, got %d", next.OrderNumber)
	}
}

func TestReplaceCollectionsIsMirrored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bakehouse.db")

	store := openTestStore(t, path)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateCustomer(domain.Customer{Name: "Ana"})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	store.ReplaceCollections(memory.Snapshot{
		Ingredients: map[string]domain.Ingredient{
			"remote": {Base: domain.Base{ID: "remote"}, Name: "Sugar", PackageSize: 1, PackageCost: 2},
		},
	})
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	ingredients := reopened.ListIngredients()
	if len(ingredients) != 1 || ingredients[0].Name != "Sugar" {
		t.Fatalf("expected replaced ingredients persisted, got %+v", ingredients)
	}
	if got := len(reopened.ListCustomers()); got != 1 {
		t.Fatalf("expected customers preserved, got %d", got)
	}
}

func TestRollbackLeavesDatabaseUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bakehouse.db")

	store := openTestStore(t, path)
	defer func() { _ = store.Close() }()

	boom := context.DeadlineExceeded
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateIngredient(domain.Ingredient{Name: "Sugar"}); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("expected error to propagate, got %v", err)
	}

	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no snapshot rows after rollback, got %d", count)
	}
}
