// Package admin is the out-of-band tenant management surface. It owns the
// tenant lifecycle the gateway itself treats as read-only.
package admin

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/akirafn/commerce-gateway/internal/counter"
	"github.com/akirafn/commerce-gateway/internal/db"
	"github.com/akirafn/commerce-gateway/internal/models"
)

type AdminHandler struct {
	db     *db.DB
	store  *counter.Store
	logger *zap.Logger
}

func NewAdminHandler(database *db.DB, store *counter.Store, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{db: database, store: store, logger: logger}
}

func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/admin/tenants", h.ListTenants).Methods("GET")
	router.HandleFunc("/admin/tenants", h.CreateTenant).Methods("POST")
	router.HandleFunc("/admin/tenants/{id}", h.GetTenant).Methods("GET")
	router.HandleFunc("/admin/tenants/{id}", h.UpdateTenant).Methods("PUT")
	router.HandleFunc("/admin/tenants/{id}", h.DeleteTenant).Methods("DELETE")
	router.HandleFunc("/admin/tenants/{id}/rotate-keys", h.RotateKeys).Methods("POST")
	router.HandleFunc("/admin/tenants/{id}/audit", h.RecentAudit).Methods("GET")
}

func (h *AdminHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string   `json:"name"`
		Email          string   `json:"email"`
		Plan           string   `json:"plan"`
		AuthMode       string   `json:"auth_mode"`
		AllowedOrigins []string `json:"allowed_origins"`
		RateLimit      int      `json:"rate_limit"`
		DailyQuota     int      `json:"daily_quota"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Email == "" {
		http.Error(w, "Name and email are required", http.StatusBadRequest)
		return
	}

	authMode := models.AuthModeOpen
	if req.AuthMode == string(models.AuthModeEnterprise) {
		authMode = models.AuthModeEnterprise
	}
	if req.RateLimit <= 0 {
		req.RateLimit = 60
	}
	if req.DailyQuota <= 0 {
		req.DailyQuota = 1000
	}
	if req.Plan == "" {
		req.Plan = "free"
	}

	siteKey, err := generateKey("site", 16)
	if err != nil {
		http.Error(w, "Failed to generate keys", http.StatusInternalServerError)
		return
	}

	tenant := &models.Tenant{
		ID:             uuid.New().String(),
		ClientID:       uuid.New().String()[:8],
		Name:           req.Name,
		Email:          req.Email,
		Plan:           req.Plan,
		AuthMode:       authMode,
		Status:         models.StatusTrial,
		SiteKey:        siteKey,
		AllowedOrigins: req.AllowedOrigins,
		RateLimit:      req.RateLimit,
		DailyQuota:     req.DailyQuota,
	}

	// Enterprise tenants get credential material immediately; the secret
	// is only ever returned from this call and from rotation.
	var secret string
	if authMode == models.AuthModeEnterprise {
		tenant.APIKey, err = generateKey("ak", 24)
		if err == nil {
			secret, err = generateKey("sk", 32)
		}
		if err != nil {
			http.Error(w, "Failed to generate keys", http.StatusInternalServerError)
			return
		}
		tenant.APISecret = secret
	}

	if err := h.db.CreateTenant(r.Context(), tenant); err != nil {
		h.logger.Error("failed to create tenant", zap.Error(err))
		http.Error(w, "Failed to create tenant", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(struct {
		*models.Tenant
		APISecret string `json:"api_secret,omitempty"`
	}{tenant, secret})
}

func (h *AdminHandler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.db.ListTenants(r.Context())
	if err != nil {
		http.Error(w, "Failed to list tenants", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenants)
}

func (h *AdminHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.db.GetTenantByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Tenant not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tenant)
}

func (h *AdminHandler) UpdateTenant(w http.ResponseWriter, r *http.Request) {
	var updates db.TenantUpdates
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	if err := h.db.UpdateTenant(r.Context(), mux.Vars(r)["id"], updates); err != nil {
		if errors.Is(err, db.ErrTenantNotFound) {
			http.Error(w, "Tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update tenant", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "updated"})
}

func (h *AdminHandler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	if err := h.db.DeleteTenant(r.Context(), mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, db.ErrTenantNotFound) {
			http.Error(w, "Tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete tenant", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) RotateKeys(w http.ResponseWriter, r *http.Request) {
	apiKey, err := generateKey("ak", 24)
	if err != nil {
		http.Error(w, "Failed to generate keys", http.StatusInternalServerError)
		return
	}
	secret, err := generateKey("sk", 32)
	if err != nil {
		http.Error(w, "Failed to generate keys", http.StatusInternalServerError)
		return
	}

	if err := h.db.RotateAPIKeys(r.Context(), mux.Vars(r)["id"], apiKey, secret); err != nil {
		if errors.Is(err, db.ErrTenantNotFound) {
			http.Error(w, "Tenant not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to rotate keys", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"api_key":    apiKey,
		"api_secret": secret,
		"status":     "rotated",
	})
}

// RecentAudit reads the rolling buffer, not the durable log; it may miss
// entries older than the buffer bound.
func (h *AdminHandler) RecentAudit(w http.ResponseWriter, r *http.Request) {
	limit := int64(100)
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.store.ListRange(r.Context(), "audit:"+mux.Vars(r)["id"], 0, limit-1)
	if err != nil {
		http.Error(w, "Failed to read audit buffer", http.StatusInternalServerError)
		return
	}

	records := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		records = append(records, json.RawMessage(e))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(records)
}

func generateKey(prefix string, bytes int) (string, error) {
	raw := make([]byte, bytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return prefix + "_" + hex.EncodeToString(raw), nil
}
