package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/saleorbridge/payment-bridge/internal/appconfig"
	"github.com/saleorbridge/payment-bridge/internal/events"
	"github.com/saleorbridge/payment-bridge/internal/metadata"
	"github.com/saleorbridge/payment-bridge/internal/provider"
	"github.com/saleorbridge/payment-bridge/internal/tenant"
	"github.com/saleorbridge/payment-bridge/internal/webhook"
)

const maxWebhookBody = 1 << 20 // 1 MiB

var errMissingAPIURL = errors.New("missing Saleor-Api-Url header")

var knownEvents = map[webhook.EventType]bool{
	webhook.EventPaymentGatewayInitialize: true,
	webhook.EventTransactionInitialize:    true,
	webhook.EventTransactionProcess:       true,
	webhook.EventRefundRequested:          true,
	webhook.EventCancelRequested:          true,
	webhook.EventOrderFulfilled:           true,
}

// configCacheTTL bounds how stale a cached config blob can get across
// instances before the next read goes back to Saleor.
const configCacheTTL = 30 * time.Second

// configuratorFor builds the per-tenant configuration facade: the Saleor
// metadata client behind a short-TTL Redis read cache, wrapped in
// encryption, keyed by the tenant's domain so write leases never collide
// across tenants. The cache sits beneath the encrypting layer, so Redis
// only ever holds ciphertext.
func (app *PaymentApp) configuratorFor(auth *tenant.AuthData) *appconfig.Configurator {
	var manager metadata.Manager = metadata.NewClient(auth.SaleorAPIURL, auth.Token, auth.AppID)
	if app.cache != nil {
		manager = metadata.NewCachedManager(manager, app.cache, configCacheTTL)
	}
	encrypted := metadata.NewEncryptedManager(manager, app.cfg.SecretKey)
	key := metadata.ScopedKey(appconfig.ConfigKey, auth.Domain)
	return appconfig.NewConfigurator(encrypted, app.lease, key)
}

// tenantFromRequest resolves the calling Saleor instance from the
// Saleor-Api-Url header against the tenant registry.
func (app *PaymentApp) tenantFromRequest(r *http.Request) (*tenant.AuthData, error) {
	apiURL := r.Header.Get("Saleor-Api-Url")
	if apiURL == "" {
		return nil, errMissingAPIURL
	}
	return app.tenants.Get(r.Context(), apiURL)
}

func (app *PaymentApp) handleWebhook(w http.ResponseWriter, r *http.Request) {
	event := webhook.EventType(mux.Vars(r)["event"])
	if !knownEvents[event] {
		respondError(w, http.StatusNotFound, "unknown webhook event")
		return
	}

	auth, err := app.tenantFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unregistered Saleor instance")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	configurator := app.configuratorFor(auth)
	factory := func(entry *appconfig.ConfigEntry) webhook.ProviderAPI {
		return provider.NewClient(entry.APIURL, entry.Username, entry.Password, app.cfg.ProviderTimeout)
	}

	handler := webhook.NewHandler(configurator, factory, app.events)
	resp := handler.Handle(r.Context(), event, body)

	// Sync webhooks always answer 200; failures travel in the body.
	respondJSON(w, http.StatusOK, resp)
}

func (app *PaymentApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disabled"
	if app.cache != nil {
		redisStatus = "healthy"
		if err := app.cache.HealthCheck(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	dbStatus := "healthy"
	if err := app.tenants.Ping(); err != nil {
		dbStatus = "unhealthy"
	}

	health := map[string]interface{}{
		"service":   "payment-bridge",
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   "1.0.0",
		"dependencies": map[string]string{
			"database": dbStatus,
			"redis":    redisStatus,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

func (app *PaymentApp) wsStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, app.wsHub.GetStats())
}

// handleInternalEvent rebroadcasts events published by satellite services
// to the WebSocket hub.
func (app *PaymentApp) handleInternalEvent(w http.ResponseWriter, r *http.Request) {
	var evt events.Event
	if err := json.NewDecoder(r.Body).Decode(&evt); err != nil {
		respondError(w, http.StatusBadRequest, "invalid event payload")
		return
	}
	if evt.Type == "" || evt.Event == "" {
		respondError(w, http.StatusBadRequest, "event type and name are required")
		return
	}

	if app.wsHub != nil {
		app.wsHub.BroadcastEvent(evt.Type, evt.Event, evt.Data)
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "broadcast"})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
