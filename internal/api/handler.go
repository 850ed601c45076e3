package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/policykeeper/policykeeper/config"
	"github.com/policykeeper/policykeeper/internal/auth"
	"github.com/policykeeper/policykeeper/internal/dataservice"
	apperrors "github.com/policykeeper/policykeeper/internal/errors"
	"github.com/policykeeper/policykeeper/internal/importer"
	"github.com/policykeeper/policykeeper/internal/logger"
	middlewares "github.com/policykeeper/policykeeper/internal/middleware"
	"github.com/policykeeper/policykeeper/internal/notifier"
)

// Handler handles HTTP requests for the API
type Handler struct {
	data      *dataservice.Service
	notifier  *notifier.Notifier
	importer  *importer.Importer
	admin     config.AdminConfig
	version   string
	buildTime string
	gitCommit string
	startTime time.Time
}

// NewHandler creates a new API handler
func NewHandler(data *dataservice.Service, ntf *notifier.Notifier, imp *importer.Importer, admin config.AdminConfig, version, buildTime, gitCommit string) *Handler {
	return &Handler{
		data:      data,
		notifier:  ntf,
		importer:  imp,
		admin:     admin,
		version:   version,
		buildTime: buildTime,
		gitCommit: gitCommit,
		startTime: time.Now(),
	}
}

// CheckCredentials validates a login against the settings record, the
// bootstrap pair, and active user accounts.
func (h *Handler) CheckCredentials(ctx context.Context, username, password string) bool {
	snap, err := h.data.GetAll(ctx)
	if err == nil && auth.VerifyAdmin(snap.Settings, h.admin.FallbackUser, h.admin.FallbackPass, username, password) {
		return true
	}
	user, err := h.data.UserByUsername(ctx, username)
	if err != nil || user == nil || !user.IsActive {
		return false
	}
	return auth.CheckPassword(user.PasswordHash, password)
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		// Health check endpoints stay open for probes
		r.Get("/health", h.healthHandler)
		r.Get("/health/ready", h.readinessHandler)
		r.Get("/health/live", h.livenessHandler)
		r.Get("/version", h.versionHandler)

		// Everything below requires a login
		r.Group(func(r chi.Router) {
			r.Use(middlewares.BasicAuth(h.CheckCredentials))
			h.registerDataRoutes(r)
		})
	})

	// Admin routes (protected by shared secret middleware)
	r.Route("/v1/admin", func(r chi.Router) {
		r.With(middlewares.AdminSecret(h.admin.AdminSecret)).Group(func(r chi.Router) {
			r.Post("/reset", h.resetData)
		})
	})

	// Root health check
	r.Get("/health", h.healthHandler)
}

func (h *Handler) registerDataRoutes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.listCustomers)
		r.Post("/", h.createCustomer)
		r.Get("/{id}", h.getCustomer)
		r.Put("/{id}", h.updateCustomer)
		r.Delete("/{id}", h.deleteCustomer)
		r.Get("/{id}/payments", h.listPayments)
		r.Post("/{id}/payments", h.createPayment)
	})
	r.Delete("/payments/{id}", h.deletePayment)

	r.Route("/policies", func(r chi.Router) {
		r.Get("/", h.listPolicies)
		r.Post("/", h.createPolicy)
		r.Delete("/cancelled", h.deleteCancelledPolicies)
		r.Post("/import", h.importPolicies)
		r.Get("/{id}", h.getPolicy)
		r.Put("/{id}", h.updatePolicy)
		r.Delete("/{id}", h.deletePolicy)
	})

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Put("/{id}", h.updateUser)
		r.Delete("/{id}", h.deleteUser)
	})

	r.Put("/settings", h.updateSettings)
	r.Post("/notifications/run", h.runNotifications)
}

// healthHandler provides basic health check
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// readinessHandler checks if the application is ready to serve traffic
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{
		"store": "ok",
	}

	statusCode := http.StatusOK

	if err := h.data.Health(ctx); err != nil {
		checks["store"] = "error: " + err.Error()
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}

	h.writeJSONResponse(w, statusCode, response)
}

// livenessHandler checks if the application is alive
func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// versionHandler returns version information
func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"version":    h.version,
		"build_time": h.buildTime,
		"git_commit": h.gitCommit,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// runNotifications triggers an immediate notification scan; ?forced=true
// re-sends milestones that were already flagged.
func (h *Handler) runNotifications(w http.ResponseWriter, r *http.Request) {
	forced := r.URL.Query().Get("forced") == "true"

	sent, err := h.notifier.Trigger(r.Context(), forced)
	if err != nil {
		switch {
		case errors.Is(err, notifier.ErrScanInProgress):
			h.writeErrorResponse(w, r, http.StatusConflict, err.Error())
		case errors.Is(err, apperrors.ErrMailerNotConfigured):
			h.writeErrorResponse(w, r, http.StatusServiceUnavailable, "mailer not configured")
		default:
			h.writeDomainError(w, r, err)
		}
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"sent":   sent,
		"forced": forced,
	})
}

// resetData wipes customer and policy data. On top of the admin secret
// the caller must echo the emergency reset code.
func (h *Handler) resetData(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Confirm string `json:"confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if h.admin.EmergencyResetCode == "" || body.Confirm != h.admin.EmergencyResetCode {
		h.writeErrorResponse(w, r, http.StatusForbidden, "reset confirmation mismatch")
		return
	}

	if err := h.data.ResetData(r.Context()); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"status": "reset"})
}

// writeDomainError maps data-layer errors onto HTTP statuses
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr apperrors.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeErrorResponse(w, r, http.StatusBadRequest, verr.Error())
	case errors.Is(err, apperrors.ErrInvalidInput):
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		h.writeErrorResponse(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, apperrors.ErrConflict):
		h.writeErrorResponse(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, apperrors.ErrForbidden):
		h.writeErrorResponse(w, r, http.StatusForbidden, "forbidden")
	default:
		logger.WithContext(r.Context()).Error("Request failed", "error", err, "path", r.URL.Path)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeErrorResponse writes a standardized error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: r.Header.Get("X-Request-ID"),
	}

	h.writeJSONResponse(w, statusCode, response)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
