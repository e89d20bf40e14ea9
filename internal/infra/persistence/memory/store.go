// Package memory provides the in-memory implementation of the core
// persistence store. It is the single in-session authority for all entity
// collections; durable backends layer on top of it and mirror snapshots.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"bakehouse/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain
// persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Ingredient aliases domain.Ingredient for in-memory persistence operations.
	Ingredient = domain.Ingredient
	// Recipe aliases domain.Recipe.
	Recipe = domain.Recipe
	// Order aliases domain.Order.
	Order = domain.Order
	// Customer aliases domain.Customer.
	Customer = domain.Customer
	// InventoryItem aliases domain.InventoryItem.
	InventoryItem = domain.InventoryItem
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases the domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	ingredients map[string]Ingredient
	recipes     map[string]Recipe
	orders      map[string]Order
	customers   map[string]Customer
	inventory   map[string]InventoryItem // keyed by ingredient id
	categories  []string
	orderSeq    int
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Ingredients map[string]Ingredient    `json:"ingredients"`
	Recipes     map[string]Recipe        `json:"recipes"`
	Orders      map[string]Order         `json:"orders"`
	Customers   map[string]Customer      `json:"customers"`
	Inventory   map[string]InventoryItem `json:"inventory"`
	Categories  []string                 `json:"categories"`
}

func newMemoryState() memoryState {
	return memoryState{
		ingredients: make(map[string]Ingredient),
		recipes:     make(map[string]Recipe),
		orders:      make(map[string]Order),
		customers:   make(map[string]Customer),
		inventory:   make(map[string]InventoryItem),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Ingredients: make(map[string]Ingredient, len(state.ingredients)),
		Recipes:     make(map[string]Recipe, len(state.recipes)),
		Orders:      make(map[string]Order, len(state.orders)),
		Customers:   make(map[string]Customer, len(state.customers)),
		Inventory:   make(map[string]InventoryItem, len(state.inventory)),
		Categories:  append([]string(nil), state.categories...),
	}
	for k, v := range state.ingredients {
		s.Ingredients[k] = cloneIngredient(v)
	}
	for k, v := range state.recipes {
		s.Recipes[k] = cloneRecipe(v)
	}
	for k, v := range state.orders {
		s.Orders[k] = cloneOrder(v)
	}
	for k, v := range state.customers {
		s.Customers[k] = cloneCustomer(v)
	}
	for k, v := range state.inventory {
		s.Inventory[k] = cloneInventoryItem(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Ingredients {
		state.ingredients[k] = cloneIngredient(v)
	}
	for k, v := range s.Recipes {
		state.recipes[k] = cloneRecipe(v)
	}
	for k, v := range s.Orders {
		state.orders[k] = cloneOrder(v)
		if v.OrderNumber > state.orderSeq {
			state.orderSeq = v.OrderNumber
		}
	}
	for k, v := range s.Customers {
		state.customers[k] = cloneCustomer(v)
	}
	for k, v := range s.Inventory {
		state.inventory[k] = cloneInventoryItem(v)
	}
	state.categories = append([]string(nil), s.Categories...)
	return state
}

// migrateSnapshot repairs legacy snapshots before they enter the store:
// recipes stored without derived costs are recomputed, ingredient unit costs
// are refreshed, negative stock is clamped, inventory rows without an
// ingredient key are dropped, and the category registry is re-deduplicated.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Ingredients == nil {
		snapshot.Ingredients = map[string]Ingredient{}
	}
	if snapshot.Recipes == nil {
		snapshot.Recipes = map[string]Recipe{}
	}
	if snapshot.Orders == nil {
		snapshot.Orders = map[string]Order{}
	}
	if snapshot.Customers == nil {
		snapshot.Customers = map[string]Customer{}
	}
	if snapshot.Inventory == nil {
		snapshot.Inventory = map[string]InventoryItem{}
	}

	for id, ingredient := range snapshot.Ingredients {
		ingredient.RecomputeCost()
		snapshot.Ingredients[id] = ingredient
	}

	categories := snapshot.Categories
	for id, recipe := range snapshot.Recipes {
		if recipe.NeedsCostMigration() {
			recipe.RecomputeCosts()
		}
		if recipe.Category != "" {
			categories = append(categories, recipe.Category)
		}
		snapshot.Recipes[id] = recipe
	}
	snapshot.Categories = dedupeCategories(categories)

	for key, item := range snapshot.Inventory {
		if item.IngredientID == "" {
			delete(snapshot.Inventory, key)
			continue
		}
		if item.CurrentStock < 0 {
			item.CurrentStock = 0
		}
		snapshot.Inventory[item.IngredientID] = item
		if key != item.IngredientID {
			delete(snapshot.Inventory, key)
		}
	}

	for id, order := range snapshot.Orders {
		if order.Status == "" {
			order.Status = domain.OrderStatusNew
		}
		snapshot.Orders[id] = order
	}

	return snapshot
}

func dedupeCategories(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := domain.NormalizeCategory(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return domain.NormalizeCategory(out[i]) < domain.NormalizeCategory(out[j])
	})
	return out
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.ingredients {
		cloned.ingredients[k] = cloneIngredient(v)
	}
	for k, v := range s.recipes {
		cloned.recipes[k] = cloneRecipe(v)
	}
	for k, v := range s.orders {
		cloned.orders[k] = cloneOrder(v)
	}
	for k, v := range s.customers {
		cloned.customers[k] = cloneCustomer(v)
	}
	for k, v := range s.inventory {
		cloned.inventory[k] = cloneInventoryItem(v)
	}
	cloned.categories = append([]string(nil), s.categories...)
	cloned.orderSeq = s.orderSeq
	return cloned
}

func cloneIngredient(i Ingredient) Ingredient { return i }

func cloneRecipe(r Recipe) Recipe {
	cp := r
	cp.Ingredients = append([]domain.RecipeIngredient(nil), r.Ingredients...)
	return cp
}

func cloneOrder(o Order) Order {
	cp := o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return cp
}

func cloneCustomer(c Customer) Customer {
	cp := c
	cp.OrderIDs = append([]string(nil), c.OrderIDs...)
	return cp
}

func cloneInventoryItem(it InventoryItem) InventoryItem {
	cp := it
	if it.LastRestocked != nil {
		t := *it.LastRestocked
		cp.LastRestocked = &t
	}
	if it.ExpirationDate != nil {
		t := *it.ExpirationDate
		cp.ExpirationDate = &t
	}
	return cp
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// SetNowFunc overrides the time provider; intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot after
// migration. Used on startup load and when applying remote snapshots.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// ReplaceCollections overwrites only the collections present (non-nil) in the
// snapshot, keeping the rest of the state. This is the last-write-wins entry
// point for inbound remote snapshots, which may be partial.
func (s *Store) ReplaceCollections(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := snapshotFromMemoryState(s.state)
	if snapshot.Ingredients != nil {
		current.Ingredients = snapshot.Ingredients
	}
	if snapshot.Recipes != nil {
		current.Recipes = snapshot.Recipes
	}
	if snapshot.Orders != nil {
		current.Orders = snapshot.Orders
	}
	if snapshot.Customers != nil {
		current.Customers = snapshot.Customers
	}
	if snapshot.Inventory != nil {
		current.Inventory = snapshot.Inventory
	}
	if snapshot.Categories != nil {
		current.Categories = snapshot.Categories
	}
	s.state = memoryStateFromSnapshot(migrateSnapshot(current))
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// RunInTransaction executes fn within a transactional copy of the store
// state and returns the change set recorded by the committed transaction.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx Transaction) error) ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return nil, err
	}

	s.state = tx.state
	return tx.changes, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// CreateIngredient stores a new ingredient within the transaction.
func (tx *transaction) CreateIngredient(i Ingredient) (Ingredient, error) {
	if i.ID == "" {
		i.ID = tx.store.newID()
	}
	if _, exists := tx.state.ingredients[i.ID]; exists {
		return Ingredient{}, fmt.Errorf("ingredient %q already exists", i.ID)
	}
	i.CreatedAt = tx.now
	i.UpdatedAt = tx.now
	i.RecomputeCost()
	tx.state.ingredients[i.ID] = cloneIngredient(i)
	tx.recordChange(Change{Entity: domain.EntityIngredient, Action: domain.ActionCreate, After: cloneIngredient(i)})
	return cloneIngredient(i), nil
}

// UpdateIngredient mutates an ingredient using the provided mutator function.
func (tx *transaction) UpdateIngredient(id string, mutator func(*Ingredient) error) (Ingredient, error) {
	current, ok := tx.state.ingredients[id]
	if !ok {
		return Ingredient{}, notFound(domain.EntityIngredient, id)
	}
	before := cloneIngredient(current)
	if err := mutator(&current); err != nil {
		return Ingredient{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	current.RecomputeCost()
	tx.state.ingredients[id] = cloneIngredient(current)
	tx.recordChange(Change{Entity: domain.EntityIngredient, Action: domain.ActionUpdate, Before: before, After: cloneIngredient(current)})
	return cloneIngredient(current), nil
}

// DeleteIngredient removes an ingredient from the transaction state. The
// inventory row, if any, is left in place; callers pre-check usage.
func (tx *transaction) DeleteIngredient(id string) error {
	current, ok := tx.state.ingredients[id]
	if !ok {
		return notFound(domain.EntityIngredient, id)
	}
	delete(tx.state.ingredients, id)
	tx.recordChange(Change{Entity: domain.EntityIngredient, Action: domain.ActionDelete, Before: cloneIngredient(current)})
	return nil
}

// CreateRecipe stores a new recipe and registers its category.
func (tx *transaction) CreateRecipe(r Recipe) (Recipe, error) {
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state.recipes[r.ID]; exists {
		return Recipe{}, fmt.Errorf("recipe %q already exists", r.ID)
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	r.RecomputeCosts()
	tx.state.recipes[r.ID] = cloneRecipe(r)
	tx.RegisterCategory(r.Category)
	tx.recordChange(Change{Entity: domain.EntityRecipe, Action: domain.ActionCreate, After: cloneRecipe(r)})
	return cloneRecipe(r), nil
}

// UpdateRecipe mutates a recipe, recomputing derived costs afterwards.
func (tx *transaction) UpdateRecipe(id string, mutator func(*Recipe) error) (Recipe, error) {
	current, ok := tx.state.recipes[id]
	if !ok {
		return Recipe{}, notFound(domain.EntityRecipe, id)
	}
	before := cloneRecipe(current)
	if err := mutator(&current); err != nil {
		return Recipe{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	current.RecomputeCosts()
	tx.state.recipes[id] = cloneRecipe(current)
	tx.RegisterCategory(current.Category)
	tx.recordChange(Change{Entity: domain.EntityRecipe, Action: domain.ActionUpdate, Before: before, After: cloneRecipe(current)})
	return cloneRecipe(current), nil
}

// DeleteRecipe removes a recipe from state.
func (tx *transaction) DeleteRecipe(id string) error {
	current, ok := tx.state.recipes[id]
	if !ok {
		return notFound(domain.EntityRecipe, id)
	}
	delete(tx.state.recipes, id)
	tx.recordChange(Change{Entity: domain.EntityRecipe, Action: domain.ActionDelete, Before: cloneRecipe(current)})
	return nil
}

// CreateOrder stores a new order. Totals are recomputed from the snapshotted
// per-line cost and price; the order number is assigned if unset.
func (tx *transaction) CreateOrder(o Order) (Order, error) {
	if o.ID == "" {
		o.ID = tx.store.newID()
	}
	if _, exists := tx.state.orders[o.ID]; exists {
		return Order{}, fmt.Errorf("order %q already exists", o.ID)
	}
	if o.OrderNumber == 0 {
		o.OrderNumber = tx.NextOrderNumber()
	} else if o.OrderNumber > tx.state.orderSeq {
		tx.state.orderSeq = o.OrderNumber
	}
	if o.Status == "" {
		o.Status = domain.OrderStatusNew
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	o.RecomputeTotals()
	tx.state.orders[o.ID] = cloneOrder(o)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionCreate, After: cloneOrder(o)})
	return cloneOrder(o), nil
}

// UpdateOrder mutates an existing order.
func (tx *transaction) UpdateOrder(id string, mutator func(*Order) error) (Order, error) {
	current, ok := tx.state.orders[id]
	if !ok {
		return Order{}, notFound(domain.EntityOrder, id)
	}
	before := cloneOrder(current)
	if err := mutator(&current); err != nil {
		return Order{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	current.RecomputeTotals()
	tx.state.orders[id] = cloneOrder(current)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionUpdate, Before: before, After: cloneOrder(current)})
	return cloneOrder(current), nil
}

// DeleteOrder removes an order from state.
func (tx *transaction) DeleteOrder(id string) error {
	current, ok := tx.state.orders[id]
	if !ok {
		return notFound(domain.EntityOrder, id)
	}
	delete(tx.state.orders, id)
	tx.recordChange(Change{Entity: domain.EntityOrder, Action: domain.ActionDelete, Before: cloneOrder(current)})
	return nil
}

// CreateCustomer stores a new customer record.
func (tx *transaction) CreateCustomer(c Customer) (Customer, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.customers[c.ID]; exists {
		return Customer{}, fmt.Errorf("customer %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.customers[c.ID] = cloneCustomer(c)
	tx.recordChange(Change{Entity: domain.EntityCustomer, Action: domain.ActionCreate, After: cloneCustomer(c)})
	return cloneCustomer(c), nil
}

// UpdateCustomer mutates an existing customer.
func (tx *transaction) UpdateCustomer(id string, mutator func(*Customer) error) (Customer, error) {
	current, ok := tx.state.customers[id]
	if !ok {
		return Customer{}, notFound(domain.EntityCustomer, id)
	}
	before := cloneCustomer(current)
	if err := mutator(&current); err != nil {
		return Customer{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.customers[id] = cloneCustomer(current)
	tx.recordChange(Change{Entity: domain.EntityCustomer, Action: domain.ActionUpdate, Before: before, After: cloneCustomer(current)})
	return cloneCustomer(current), nil
}

// DeleteCustomer removes a customer from state.
func (tx *transaction) DeleteCustomer(id string) error {
	current, ok := tx.state.customers[id]
	if !ok {
		return notFound(domain.EntityCustomer, id)
	}
	delete(tx.state.customers, id)
	tx.recordChange(Change{Entity: domain.EntityCustomer, Action: domain.ActionDelete, Before: cloneCustomer(current)})
	return nil
}

// UpsertInventoryItem creates or replaces the tracking row for an
// ingredient. Stock is clamped at zero and LastUpdated stamped.
func (tx *transaction) UpsertInventoryItem(item InventoryItem) (InventoryItem, error) {
	if item.IngredientID == "" {
		return InventoryItem{}, fmt.Errorf("inventory item requires ingredient id")
	}
	if item.CurrentStock < 0 {
		item.CurrentStock = 0
	}
	item.LastUpdated = tx.now
	_, existed := tx.state.inventory[item.IngredientID]
	tx.state.inventory[item.IngredientID] = cloneInventoryItem(item)
	action := domain.ActionCreate
	if existed {
		action = domain.ActionUpdate
	}
	tx.recordChange(Change{Entity: domain.EntityInventoryItem, Action: action, After: cloneInventoryItem(item)})
	return cloneInventoryItem(item), nil
}

// UpdateInventoryItem mutates an existing tracking row.
func (tx *transaction) UpdateInventoryItem(ingredientID string, mutator func(*InventoryItem) error) (InventoryItem, error) {
	current, ok := tx.state.inventory[ingredientID]
	if !ok {
		return InventoryItem{}, notFound(domain.EntityInventoryItem, ingredientID)
	}
	before := cloneInventoryItem(current)
	if err := mutator(&current); err != nil {
		return InventoryItem{}, err
	}
	current.IngredientID = ingredientID
	if current.CurrentStock < 0 {
		current.CurrentStock = 0
	}
	current.LastUpdated = tx.now
	tx.state.inventory[ingredientID] = cloneInventoryItem(current)
	tx.recordChange(Change{Entity: domain.EntityInventoryItem, Action: domain.ActionUpdate, Before: before, After: cloneInventoryItem(current)})
	return cloneInventoryItem(current), nil
}

// DeleteInventoryItem removes a tracking row.
func (tx *transaction) DeleteInventoryItem(ingredientID string) error {
	current, ok := tx.state.inventory[ingredientID]
	if !ok {
		return notFound(domain.EntityInventoryItem, ingredientID)
	}
	delete(tx.state.inventory, ingredientID)
	tx.recordChange(Change{Entity: domain.EntityInventoryItem, Action: domain.ActionDelete, Before: cloneInventoryItem(current)})
	return nil
}

// RegisterCategory adds a category to the registry, deduplicating
// case-insensitively and keeping the registry sorted.
func (tx *transaction) RegisterCategory(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	tx.state.categories = dedupeCategories(append(tx.state.categories, name))
}

// NextOrderNumber returns the next sequential human-facing order number.
func (tx *transaction) NextOrderNumber() int {
	tx.state.orderSeq++
	return tx.state.orderSeq
}

// FindIngredient exposes ingredient lookup within the transaction scope.
func (tx *transaction) FindIngredient(id string) (Ingredient, bool) {
	i, ok := tx.state.ingredients[id]
	if !ok {
		return Ingredient{}, false
	}
	return cloneIngredient(i), true
}

// FindRecipe exposes recipe lookup within the transaction scope.
func (tx *transaction) FindRecipe(id string) (Recipe, bool) {
	r, ok := tx.state.recipes[id]
	if !ok {
		return Recipe{}, false
	}
	return cloneRecipe(r), true
}

// FindCustomerByName exposes case-insensitive customer lookup within the
// transaction scope.
func (tx *transaction) FindCustomerByName(name string) (Customer, bool) {
	return findCustomerByName(&tx.state, name)
}

// FindInventoryItem exposes inventory lookup within the transaction scope.
func (tx *transaction) FindInventoryItem(ingredientID string) (InventoryItem, bool) {
	it, ok := tx.state.inventory[ingredientID]
	if !ok {
		return InventoryItem{}, false
	}
	return cloneInventoryItem(it), true
}

func findCustomerByName(state *memoryState, name string) (Customer, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return Customer{}, false
	}
	for _, c := range state.customers {
		if strings.ToLower(strings.TrimSpace(c.Name)) == want {
			return cloneCustomer(c), true
		}
	}
	return Customer{}, false
}

func notFound(entity domain.EntityType, id string) error {
	return fmt.Errorf("%s %q not found", entity, id)
}
