package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/policykeeper/policykeeper/internal/models"
	"github.com/policykeeper/policykeeper/internal/query"
)

// listCustomers handles GET /customers with optional ?q= search and
// ?birthdays_today=true filtering.
func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.data.GetAll(ctx)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	q := r.URL.Query().Get("q")
	birthdays := r.URL.Query().Get("birthdays_today") == "true"
	customers := query.SearchCustomers(snap.Customers, q, birthdays, time.Now())

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"data":  customers,
		"count": len(customers),
	})
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var c models.Customer
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	c.ID = 0

	created, err := h.data.CreateCustomer(r.Context(), c)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, created)
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	snap, err := h.data.GetAll(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	for _, c := range snap.Customers {
		if c.ID == id {
			h.writeJSONResponse(w, http.StatusOK, c)
			return
		}
	}
	h.writeErrorResponse(w, r, http.StatusNotFound, "customer not found")
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var patch models.CustomerPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !h.customerExists(w, r, id) {
		return
	}
	if err := h.data.UpdateCustomer(r.Context(), id, patch); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"status": "updated"})
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if !h.customerExists(w, r, id) {
		return
	}
	if err := h.data.DeleteCustomer(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"status": "deleted"})
}

// listPayments handles GET /customers/{id}/payments
func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	payments, err := h.data.PaymentsByCustomer(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"data":  payments,
		"count": len(payments),
	})
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var p models.Payment
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p.ID = 0
	p.CustomerID = id

	created, err := h.data.CreatePayment(r.Context(), p)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, created)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.data.DeletePayment(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"status": "deleted"})
}

// pathID parses the {id} route parameter; it writes the 400 itself
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) customerExists(w http.ResponseWriter, r *http.Request, id int) bool {
	snap, err := h.data.GetAll(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return false
	}
	for _, c := range snap.Customers {
		if c.ID == id {
			return true
		}
	}
	h.writeErrorResponse(w, r, http.StatusNotFound, "customer not found")
	return false
}
