package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/policykeeper/policykeeper/internal/dataservice"
)

// userView is the API shape of a user; the password hash never leaves
// the server.
type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.data.Users(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	views := make([]userView, len(users))
	for i, u := range users {
		views[i] = userView{ID: u.Key(), Username: u.Username, Role: u.Role, IsActive: u.IsActive}
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"data":  views,
		"count": len(views),
	})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	created, err := h.data.CreateUser(r.Context(), body.Username, body.Password, body.Role)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusCreated, userView{
		ID: created.Key(), Username: created.Username, Role: created.Role, IsActive: created.IsActive,
	})
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "id")
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
		IsActive bool   `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := h.data.UpdateUser(r.Context(), key, dataservice.UserUpdate{
		Username: body.Username,
		Password: body.Password,
		Role:     body.Role,
		IsActive: body.IsActive,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"status": "updated"})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "id")
	if err := h.data.DeleteUser(r.Context(), key); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"status": "deleted"})
}

// updateSettings handles PUT /settings, upserting the admin credential
// pair.
func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.data.UpdateSettings(r.Context(), body.Username, body.Password); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"status": "updated"})
}
