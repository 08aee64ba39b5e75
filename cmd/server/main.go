package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/akirafn/commerce-gateway/internal/admin"
	"github.com/akirafn/commerce-gateway/internal/api"
	"github.com/akirafn/commerce-gateway/internal/audit"
	"github.com/akirafn/commerce-gateway/internal/auth"
	"github.com/akirafn/commerce-gateway/internal/config"
	"github.com/akirafn/commerce-gateway/internal/counter"
	"github.com/akirafn/commerce-gateway/internal/db"
	"github.com/akirafn/commerce-gateway/internal/logging"
	"github.com/akirafn/commerce-gateway/internal/metrics"
	"github.com/akirafn/commerce-gateway/internal/middleware"
	"github.com/akirafn/commerce-gateway/internal/ratelimit"
	"github.com/akirafn/commerce-gateway/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logging.Sync(logger)

	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// All shared handles are created here, once, and injected. The gateway
	// never lazily initializes connections.
	database, err := db.NewDB(startupCtx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	store, err := counter.NewStore(cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to create counter store", zap.Error(err))
	}
	defer store.Close()
	if err := store.Ping(startupCtx); err != nil {
		logger.Fatal("counter store unreachable", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	gatewayMetrics := metrics.NewGatewayMetrics(registry)

	limiter := ratelimit.NewLimiter(store)
	recorder := audit.NewRecorder(store, database, logger)

	gateway := auth.NewMiddleware(auth.MiddlewareConfig{
		Directory: database,
		Blocklist: store,
		Throttle:  limiter,
		Recorder:  recorder,
		Toucher:   database,
		Validator: &auth.ModeValidator{
			JWTSecret:    cfg.JWTSecret,
			JWTAlgorithm: cfg.JWTAlgorithm,
			HMACExpiry:   time.Duration(cfg.HMACExpirySeconds) * time.Second,
			OpenSkew:     time.Duration(cfg.OpenSkewSeconds) * time.Second,
		},
		Logger:     logger,
		Metrics:    gatewayMetrics,
		AppID:      cfg.AppID,
		APIVersion: cfg.APIVersion,
		UpgradeURL: cfg.QuotaUpgradeURL,
	})

	router := mux.NewRouter()

	router.HandleFunc("/health", healthHandler(cfg.APIVersion)).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/auth/token", tokenHandler(database, cfg.JWTSecret, logger)).Methods("POST")

	adminHandler := admin.NewAdminHandler(database, store, logger)
	adminHandler.RegisterRoutes(router)

	upstreamClient := upstream.NewClient(upstream.Config{
		BaseURL:   cfg.UpstreamURL,
		AppID:     cfg.UpstreamAppID,
		AppKey:    cfg.UpstreamAppKey,
		AppSecret: cfg.UpstreamAppSecret,
	})

	apiRouter := mux.NewRouter().PathPrefix("/api/v1").Subrouter()
	api.NewHandler(upstreamClient, logger).RegisterRoutes(apiRouter)
	router.PathPrefix("/api/v1/").Handler(gateway.Secure(apiRouter))

	handler := middleware.Recovery(logger)(
		middleware.CORS(
			middleware.RequestLogging(logger, gatewayMetrics)(router),
		),
	)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

func healthHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"version": version,
		})
	}
}

// tokenHandler issues a bearer token for enterprise integrations that want
// user-level identity on top of the signed-request scheme.
func tokenHandler(database *db.DB, jwtSecret string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			APIKey string `json:"api_key"`
		}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request", http.StatusBadRequest)
			return
		}

		tenant, err := database.GetTenantByAPIKey(r.Context(), req.APIKey)
		if err != nil {
			logger.Info("token request with unknown API key")
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		token, err := auth.GenerateToken(tenant.ID, tenant.SiteKey, jwtSecret)
		if err != nil {
			logger.Error("token generation failed", zap.Error(err))
			http.Error(w, "Failed to generate token", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	}
}
