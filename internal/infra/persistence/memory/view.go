package memory

import (
	"sort"

	"bakehouse/pkg/domain"
)

// ListIngredients returns all ingredients sorted by id.
func (v transactionView) ListIngredients() []Ingredient {
	out := make([]Ingredient, 0, len(v.state.ingredients))
	for _, i := range v.state.ingredients {
		out = append(out, cloneIngredient(i))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListRecipes returns all recipes sorted by id.
func (v transactionView) ListRecipes() []Recipe {
	out := make([]Recipe, 0, len(v.state.recipes))
	for _, r := range v.state.recipes {
		out = append(out, cloneRecipe(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListOrders returns all orders sorted by order number.
func (v transactionView) ListOrders() []Order {
	out := make([]Order, 0, len(v.state.orders))
	for _, o := range v.state.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out
}

// ListCustomers returns all customers sorted by id.
func (v transactionView) ListCustomers() []Customer {
	out := make([]Customer, 0, len(v.state.customers))
	for _, c := range v.state.customers {
		out = append(out, cloneCustomer(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListInventoryItems returns all tracking rows sorted by ingredient id.
func (v transactionView) ListInventoryItems() []InventoryItem {
	out := make([]InventoryItem, 0, len(v.state.inventory))
	for _, it := range v.state.inventory {
		out = append(out, cloneInventoryItem(it))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IngredientID < out[j].IngredientID })
	return out
}

// FindIngredient looks up an ingredient by id.
func (v transactionView) FindIngredient(id string) (Ingredient, bool) {
	i, ok := v.state.ingredients[id]
	if !ok {
		return Ingredient{}, false
	}
	return cloneIngredient(i), true
}

// FindRecipe looks up a recipe by id.
func (v transactionView) FindRecipe(id string) (Recipe, bool) {
	r, ok := v.state.recipes[id]
	if !ok {
		return Recipe{}, false
	}
	return cloneRecipe(r), true
}

// FindOrder looks up an order by id.
func (v transactionView) FindOrder(id string) (Order, bool) {
	o, ok := v.state.orders[id]
	if !ok {
		return Order{}, false
	}
	return cloneOrder(o), true
}

// FindCustomer looks up a customer by id.
func (v transactionView) FindCustomer(id string) (Customer, bool) {
	c, ok := v.state.customers[id]
	if !ok {
		return Customer{}, false
	}
	return cloneCustomer(c), true
}

// FindCustomerByName looks up a customer by case-insensitive name match.
func (v transactionView) FindCustomerByName(name string) (Customer, bool) {
	return findCustomerByName(v.state, name)
}

// FindInventoryItem looks up a tracking row by ingredient id.
func (v transactionView) FindInventoryItem(ingredientID string) (InventoryItem, bool) {
	it, ok := v.state.inventory[ingredientID]
	if !ok {
		return InventoryItem{}, false
	}
	return cloneInventoryItem(it), true
}

// Categories returns the registered recipe categories.
func (v transactionView) Categories() []string {
	return append([]string(nil), v.state.categories...)
}

// GetIngredient reads one ingredient without opening a transaction.
func (s *Store) GetIngredient(id string) (Ingredient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.state.ingredients[id]
	if !ok {
		return Ingredient{}, false
	}
	return cloneIngredient(i), true
}

// ListIngredients reads all ingredients sorted by id.
func (s *Store) ListIngredients() []Ingredient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListIngredients()
}

// GetRecipe reads one recipe.
func (s *Store) GetRecipe(id string) (Recipe, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.recipes[id]
	if !ok {
		return Recipe{}, false
	}
	return cloneRecipe(r), true
}

// ListRecipes reads all recipes sorted by id.
func (s *Store) ListRecipes() []Recipe {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListRecipes()
}

// GetOrder reads one order.
func (s *Store) GetOrder(id string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.state.orders[id]
	if !ok {
		return Order{}, false
	}
	return cloneOrder(o), true
}

// ListOrders reads all orders sorted by order number.
func (s *Store) ListOrders() []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListOrders()
}

// GetCustomer reads one customer.
func (s *Store) GetCustomer(id string) (Customer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.customers[id]
	if !ok {
		return Customer{}, false
	}
	return cloneCustomer(c), true
}

// ListCustomers reads all customers sorted by id.
func (s *Store) ListCustomers() []Customer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListCustomers()
}

// GetInventoryItem reads one tracking row.
func (s *Store) GetInventoryItem(ingredientID string) (InventoryItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.state.inventory[ingredientID]
	if !ok {
		return InventoryItem{}, false
	}
	return cloneInventoryItem(it), true
}

// ListInventoryItems reads all tracking rows sorted by ingredient id.
func (s *Store) ListInventoryItems() []InventoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionView{state: &s.state}.ListInventoryItems()
}

// Categories reads the registered recipe categories.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.state.categories...)
}

var _ domain.TransactionView = transactionView{}
