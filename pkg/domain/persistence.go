package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Update and Delete report absence via
// ErrNotFound-style errors; the service layer decides whether absence is
// surfaced or treated as a no-op.
type Transaction interface {
	Snapshot() TransactionView
	CreateIngredient(Ingredient) (Ingredient, error)
	UpdateIngredient(id string, mutator func(*Ingredient) error) (Ingredient, error)
	DeleteIngredient(id string) error
	CreateRecipe(Recipe) (Recipe, error)
	UpdateRecipe(id string, mutator func(*Recipe) error) (Recipe, error)
	DeleteRecipe(id string) error
	CreateOrder(Order) (Order, error)
	UpdateOrder(id string, mutator func(*Order) error) (Order, error)
	DeleteOrder(id string) error
	CreateCustomer(Customer) (Customer, error)
	UpdateCustomer(id string, mutator func(*Customer) error) (Customer, error)
	DeleteCustomer(id string) error
	UpsertInventoryItem(InventoryItem) (InventoryItem, error)
	UpdateInventoryItem(ingredientID string, mutator func(*InventoryItem) error) (InventoryItem, error)
	DeleteInventoryItem(ingredientID string) error
	RegisterCategory(name string)
	NextOrderNumber() int
	FindIngredient(id string) (Ingredient, bool)
	FindRecipe(id string) (Recipe, bool)
	FindCustomerByName(name string) (Customer, bool)
	FindInventoryItem(ingredientID string) (InventoryItem, bool)
}

// TransactionView provides read-only access to snapshot data for derived
// computations and alert rules.
type TransactionView interface {
	InventoryAlertView
	ListIngredients() []Ingredient
	ListRecipes() []Recipe
	ListOrders() []Order
	ListCustomers() []Customer
	FindRecipe(id string) (Recipe, bool)
	FindOrder(id string) (Order, bool)
	FindCustomer(id string) (Customer, bool)
	FindCustomerByName(name string) (Customer, bool)
	FindInventoryItem(ingredientID string) (InventoryItem, bool)
	Categories() []string
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
// RunInTransaction returns the change set recorded by the committed
// transaction so callers can feed the sync change log.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) ([]Change, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetIngredient(id string) (Ingredient, bool)
	ListIngredients() []Ingredient
	GetRecipe(id string) (Recipe, bool)
	ListRecipes() []Recipe
	GetOrder(id string) (Order, bool)
	ListOrders() []Order
	GetCustomer(id string) (Customer, bool)
	ListCustomers() []Customer
	GetInventoryItem(ingredientID string) (InventoryItem, bool)
	ListInventoryItems() []InventoryItem
	Categories() []string
}
