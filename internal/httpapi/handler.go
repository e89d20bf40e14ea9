// Package httpapi exposes the service, derived views, and inbound sync over
// a JSON REST surface.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"bakehouse/internal/core"
	"bakehouse/internal/derived"
	syncpkg "bakehouse/internal/sync"
	"bakehouse/pkg/domain"
)

// Handler wires the REST routes to the core service and derived engine.
type Handler struct {
	svc     *core.Service
	derived *derived.Engine
	applier *syncpkg.Applier
	tracker *syncpkg.Tracker
	log     *logrus.Entry
}

// New constructs the HTTP handler. The applier and tracker may be nil when
// sync is disabled.
func New(svc *core.Service, engine *derived.Engine, applier *syncpkg.Applier, tracker *syncpkg.Tracker, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{svc: svc, derived: engine, applier: applier, tracker: tracker, log: log.WithField("component", "httpapi")}
}

// Router builds the route table wrapped with CORS.
func (h *Handler) Router() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/ingredients", h.listIngredients).Methods(http.MethodGet)
	api.HandleFunc("/ingredients", h.createIngredient).Methods(http.MethodPost)
	api.HandleFunc("/ingredients/{id}", h.getIngredient).Methods(http.MethodGet)
	api.HandleFunc("/ingredients/{id}", h.updateIngredient).Methods(http.MethodPut)
	api.HandleFunc("/ingredients/{id}", h.deleteIngredient).Methods(http.MethodDelete)

	api.HandleFunc("/recipes", h.listRecipes).Methods(http.MethodGet)
	api.HandleFunc("/recipes", h.createRecipe).Methods(http.MethodPost)
	api.HandleFunc("/recipes/{id}", h.getRecipe).Methods(http.MethodGet)
	api.HandleFunc("/recipes/{id}", h.updateRecipe).Methods(http.MethodPut)
	api.HandleFunc("/recipes/{id}", h.deleteRecipe).Methods(http.MethodDelete)
	api.HandleFunc("/categories", h.listCategories).Methods(http.MethodGet)

	api.HandleFunc("/orders", h.listOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders", h.placeOrder).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", h.getOrder).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/status", h.updateOrderStatus).Methods(http.MethodPut)
	api.HandleFunc("/orders/{id}", h.deleteOrder).Methods(http.MethodDelete)

	api.HandleFunc("/customers", h.listCustomers).Methods(http.MethodGet)
	api.HandleFunc("/customers", h.createCustomer).Methods(http.MethodPost)
	api.HandleFunc("/customers/{id}", h.updateCustomer).Methods(http.MethodPut)
	api.HandleFunc("/customers/{id}", h.deleteCustomer).Methods(http.MethodDelete)

	api.HandleFunc("/inventory", h.listInventory).Methods(http.MethodGet)
	api.HandleFunc("/inventory/alerts", h.listAlerts).Methods(http.MethodGet)
	api.HandleFunc("/inventory/status/{ingredientID}", h.inventoryStatus).Methods(http.MethodGet)
	api.HandleFunc("/inventory/{ingredientID}/adjust", h.adjustStock).Methods(http.MethodPost)
	api.HandleFunc("/inventory/{ingredientID}/restock", h.restock).Methods(http.MethodPost)
	api.HandleFunc("/inventory/{ingredientID}/min-stock", h.setMinStock).Methods(http.MethodPost)
	api.HandleFunc("/inventory/{ingredientID}", h.deleteInventoryItem).Methods(http.MethodDelete)

	api.HandleFunc("/shopping-list", h.shoppingList).Methods(http.MethodGet)

	api.HandleFunc("/sync/apply", h.applySnapshot).Methods(http.MethodPost)
	api.HandleFunc("/sync/status", h.syncStatus).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler())

	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(r)
}

func (h *Handler) listIngredients(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Store().ListIngredients())
}

func (h *Handler) createIngredient(w http.ResponseWriter, r *http.Request) {
	var in domain.Ingredient
	if !decode(w, r, &in) {
		return
	}
	created, err := h.svc.CreateIngredient(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getIngredient(w http.ResponseWriter, r *http.Request) {
	ingredient, ok := h.svc.Store().GetIngredient(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "ingredient not found")
		return
	}
	writeJSON(w, http.StatusOK, ingredient)
}

func (h *Handler) updateIngredient(w http.ResponseWriter, r *http.Request) {
	var in domain.Ingredient
	if !decode(w, r, &in) {
		return
	}
	updated, err := h.svc.UpdateIngredient(r.Context(), mux.Vars(r)["id"], func(i *domain.Ingredient) error {
		i.Name = in.Name
		i.Unit = in.Unit
		i.PackageSize = in.PackageSize
		i.PackageCost = in.PackageCost
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if updated.ID == "" {
		writeError(w, http.StatusNotFound, "ingredient not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteIngredient(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	// The core delete does not enforce referential integrity, so the API
	// boundary pre-checks and refuses while a recipe still uses the ingredient.
	if h.svc.IngredientInUse(id) {
		writeError(w, http.StatusConflict, "ingredient is referenced by a recipe")
		return
	}
	if err := h.svc.DeleteIngredient(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRecipes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Store().ListRecipes())
}

func (h *Handler) createRecipe(w http.ResponseWriter, r *http.Request) {
	var in domain.Recipe
	if !decode(w, r, &in) {
		return
	}
	created, err := h.svc.CreateRecipe(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) getRecipe(w http.ResponseWriter, r *http.Request) {
	recipe, ok := h.svc.Store().GetRecipe(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (h *Handler) updateRecipe(w http.ResponseWriter, r *http.Request) {
	var in domain.Recipe
	if !decode(w, r, &in) {
		return
	}
	updated, err := h.svc.UpdateRecipe(r.Context(), mux.Vars(r)["id"], func(rec *domain.Recipe) error {
		rec.Name = in.Name
		rec.Category = in.Category
		rec.Servings = in.Servings
		rec.Ingredients = in.Ingredients
		rec.LaborCost = in.LaborCost
		rec.OverheadCost = in.OverheadCost
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if updated.ID == "" {
		writeError(w, http.StatusNotFound, "recipe not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteRecipe(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Store().Categories())
}

func (h *Handler) listOrders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Store().ListOrders())
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req core.OrderRequest
	if !decode(w, r, &req) {
		return
	}
	placed, err := h.svc.PlaceOrder(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, placed)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.svc.Store().GetOrder(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status domain.OrderStatus `json:"status"`
	}
	if !decode(w, r, &in) {
		return
	}
	updated, err := h.svc.UpdateOrderStatus(r.Context(), mux.Vars(r)["id"], in.Status)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrInvalidStatusTransition) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}
	if updated.ID == "" {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteOrder(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		customer, ok := h.svc.GetCustomerByName(name)
		if !ok {
			writeError(w, http.StatusNotFound, "customer not found")
			return
		}
		writeJSON(w, http.StatusOK, customer)
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Store().ListCustomers())
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var in domain.Customer
	if !decode(w, r, &in) {
		return
	}
	created, err := h.svc.CreateCustomer(r.Context(), in)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var in domain.Customer
	if !decode(w, r, &in) {
		return
	}
	updated, err := h.svc.UpdateCustomer(r.Context(), mux.Vars(r)["id"], func(c *domain.Customer) error {
		c.Name = in.Name
		c.Phone = in.Phone
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if updated.ID == "" {
		writeError(w, http.StatusNotFound, "customer not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCustomer(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listInventory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.derived.InventoryDetails(r.Context()))
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.derived.Alerts(r.Context()))
}

func (h *Handler) inventoryStatus(w http.ResponseWriter, r *http.Request) {
	status := h.derived.Status(r.Context(), mux.Vars(r)["ingredientID"])
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Delta float64 `json:"delta"`
	}
	if !decode(w, r, &in) {
		return
	}
	item, err := h.svc.AdjustStock(r.Context(), mux.Vars(r)["ingredientID"], in.Delta)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Quantity       float64    `json:"quantity"`
		CostPerUnit    *float64   `json:"cost_per_unit"`
		ExpirationDate *time.Time `json:"expiration_date"`
	}
	if !decode(w, r, &in) {
		return
	}
	item, err := h.svc.Restock(r.Context(), mux.Vars(r)["ingredientID"], in.Quantity, in.CostPerUnit, in.ExpirationDate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) setMinStock(w http.ResponseWriter, r *http.Request) {
	var in struct {
		MinStock float64 `json:"min_stock"`
	}
	if !decode(w, r, &in) {
		return
	}
	item, err := h.svc.SetMinStock(r.Context(), mux.Vars(r)["ingredientID"], in.MinStock)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) deleteInventoryItem(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteInventoryItem(r.Context(), mux.Vars(r)["ingredientID"]); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) shoppingList(w http.ResponseWriter, r *http.Request) {
	var statuses []domain.OrderStatus
	for _, s := range r.URL.Query()["status"] {
		statuses = append(statuses, domain.OrderStatus(s))
	}
	writeJSON(w, http.StatusOK, h.derived.ShoppingList(r.Context(), statuses...))
}

func (h *Handler) applySnapshot(w http.ResponseWriter, r *http.Request) {
	if h.applier == nil {
		writeError(w, http.StatusServiceUnavailable, "sync disabled")
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if err := h.applier.Apply(r.Context(), body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) syncStatus(w http.ResponseWriter, _ *http.Request) {
	dirty := false
	if h.tracker != nil {
		dirty = h.tracker.Dirty()
	}
	writeJSON(w, http.StatusOK, map[string]any{"dirty": dirty})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
