// Package api holds the thin product and shipping handlers. Business logic
// lives upstream; these forward the already-gated request and pass the
// upstream response through unchanged.
package api

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/akirafn/commerce-gateway/internal/auth"
	"github.com/akirafn/commerce-gateway/internal/upstream"
)

type Handler struct {
	upstream *upstream.Client
	logger   *zap.Logger
}

func NewHandler(client *upstream.Client, logger *zap.Logger) *Handler {
	return &Handler{upstream: client, logger: logger}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/products", h.forward("/products")).Methods("GET")
	router.HandleFunc("/products/{id}", h.forwardWithVar("/products/", "id")).Methods("GET")
	router.HandleFunc("/shipping/quote", h.forward("/shipping/quote")).Methods("POST")
	router.HandleFunc("/shipping/track/{code}", h.forwardWithVar("/shipping/track/", "code")).Methods("GET")
}

func (h *Handler) forward(endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.proxy(w, r, endpoint)
	}
}

func (h *Handler) forwardWithVar(prefix, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.proxy(w, r, prefix+mux.Vars(r)[name])
	}
}

func (h *Handler) proxy(w http.ResponseWriter, r *http.Request, endpoint string) {
	tenant, ok := auth.GetTenantFromContext(r.Context())
	if !ok {
		auth.WriteError(w, auth.NewAPIError(http.StatusUnauthorized, "unauthorized"))
		return
	}

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			auth.WriteError(w, auth.NewAPIError(http.StatusBadRequest, "failed to read request body"))
			return
		}
	}

	resp, err := h.upstream.Do(r.Context(), r.Method, endpoint, r.URL.Query(), body)
	if err != nil {
		h.logger.Error("upstream call failed",
			zap.Error(err),
			zap.String("endpoint", endpoint),
			zap.String("tenant", tenant.ID),
		)
		auth.WriteError(w, auth.NewAPIError(http.StatusBadGateway, "upstream unavailable"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}
