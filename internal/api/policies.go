package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/policykeeper/policykeeper/internal/importer"
	"github.com/policykeeper/policykeeper/internal/models"
	"github.com/policykeeper/policykeeper/internal/query"
)

// listPolicies handles GET /policies with the full filter surface:
// ?q=, ?insurer=, ?status=, ?end_from=, ?end_to=. Results carry the
// joined customer fields and computed expiry view.
func (h *Handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.data.GetAll(ctx)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	params := r.URL.Query()
	filter := models.PolicyFilter{
		Q:       params.Get("q"),
		Insurer: params.Get("insurer"),
		Status:  params.Get("status"),
		EndFrom: params.Get("end_from"),
		EndTo:   params.Get("end_to"),
	}

	joined := query.Filter(snap.Policies, snap.Customers, filter)
	now := time.Now()
	computed := make([]models.ComputedPolicy, len(joined))
	for i, j := range joined {
		computed[i] = query.Compute(j, now)
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"data":  computed,
		"count": len(computed),
	})
}

func (h *Handler) createPolicy(w http.ResponseWriter, r *http.Request) {
	var p models.Policy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p.ID = 0

	created, err := h.data.CreatePolicy(r.Context(), p)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, created)
}

func (h *Handler) getPolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	snap, err := h.data.GetAll(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	byID := make(map[int]models.Customer, len(snap.Customers))
	for _, c := range snap.Customers {
		byID[c.ID] = c
	}
	for _, p := range snap.Policies {
		if p.ID == id {
			h.writeJSONResponse(w, http.StatusOK, query.Compute(query.Join(p, byID), time.Now()))
			return
		}
	}
	h.writeErrorResponse(w, r, http.StatusNotFound, "policy not found")
}

func (h *Handler) updatePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var patch models.PolicyPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !h.policyExists(w, r, id) {
		return
	}
	if err := h.data.UpdatePolicy(r.Context(), id, patch); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"status": "updated"})
}

func (h *Handler) deletePolicy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if !h.policyExists(w, r, id) {
		return
	}
	if err := h.data.DeletePolicy(r.Context(), id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"status": "deleted"})
}

// deleteCancelledPolicies handles DELETE /policies/cancelled
func (h *Handler) deleteCancelledPolicies(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.data.DeleteCancelledPolicies(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// importPolicies handles POST /policies/import with a rows payload
func (h *Handler) importPolicies(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rows []importer.Row `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(body.Rows) == 0 {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "rows is required")
		return
	}

	report, err := h.importer.Run(r.Context(), body.Rows)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, report)
}

func (h *Handler) policyExists(w http.ResponseWriter, r *http.Request, id int) bool {
	snap, err := h.data.GetAll(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return false
	}
	for _, p := range snap.Policies {
		if p.ID == id {
			return true
		}
	}
	h.writeErrorResponse(w, r, http.StatusNotFound, "policy not found")
	return false
}
