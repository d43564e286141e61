package main

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"github.com/saleorbridge/payment-bridge/internal/appconfig"
	"github.com/saleorbridge/payment-bridge/internal/tenant"
)

type registerRequest struct {
	AuthToken string `json:"auth_token"`
	AppID     string `json:"app_id"`
}

// handleRegister stores the credentials Saleor sends during app
// installation. Registration is idempotent; reinstalling a tenant replaces
// its token.
func (app *PaymentApp) handleRegister(w http.ResponseWriter, r *http.Request) {
	apiURL := r.Header.Get("Saleor-Api-Url")
	if apiURL == "" {
		respondError(w, http.StatusBadRequest, "missing Saleor-Api-Url header")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid registration payload")
		return
	}
	if req.AuthToken == "" {
		respondError(w, http.StatusBadRequest, "auth_token is required")
		return
	}

	domain := r.Header.Get("Saleor-Domain")
	if domain == "" {
		if parsed, err := url.Parse(apiURL); err == nil {
			domain = parsed.Host
		}
	}

	auth := &tenant.AuthData{
		SaleorAPIURL: apiURL,
		Token:        req.AuthToken,
		AppID:        req.AppID,
		Domain:       domain,
		InstalledAt:  time.Now().UTC(),
	}
	if err := app.tenants.Save(r.Context(), auth); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store registration")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "registered", "domain": domain})
}

func (app *PaymentApp) getConfiguration(w http.ResponseWriter, r *http.Request) {
	auth, err := app.tenantFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unregistered Saleor instance")
		return
	}

	cfg, err := app.configuratorFor(auth).GetConfigObfuscated(r.Context())
	if err != nil {
		respondConfigError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

type configPatchRequest struct {
	Configurations           []appconfig.ConfigEntry `json:"configurations"`
	ChannelToConfigurationID map[string]*string      `json:"channelToConfigurationId"`
}

// patchConfiguration deep-merges a partial configuration onto the stored
// one. An empty patch changes nothing and performs no remote write.
func (app *PaymentApp) patchConfiguration(w http.ResponseWriter, r *http.Request) {
	auth, err := app.tenantFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unregistered Saleor instance")
		return
	}

	var req configPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid configuration payload")
		return
	}

	configurator := app.configuratorFor(auth)
	patch := appconfig.Patch{
		Configurations:           req.Configurations,
		ChannelToConfigurationID: req.ChannelToConfigurationID,
	}
	if err := configurator.SetConfig(r.Context(), patch); err != nil {
		respondConfigError(w, err)
		return
	}

	cfg, err := configurator.GetConfigObfuscated(r.Context())
	if err != nil {
		respondConfigError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (app *PaymentApp) addEntry(w http.ResponseWriter, r *http.Request) {
	auth, err := app.tenantFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unregistered Saleor instance")
		return
	}

	var entry appconfig.ConfigEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		respondError(w, http.StatusBadRequest, "invalid entry payload")
		return
	}

	created, err := app.configuratorFor(auth).AddEntry(r.Context(), entry)
	if err != nil {
		respondConfigError(w, err)
		return
	}

	app.events.EmitEntryAdded(created.ConfigurationID, created.ConfigurationName, auth.Domain)
	respondJSON(w, http.StatusCreated, created)
}

func (app *PaymentApp) updateEntry(w http.ResponseWriter, r *http.Request) {
	auth, err := app.tenantFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unregistered Saleor instance")
		return
	}

	var entry appconfig.ConfigEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		respondError(w, http.StatusBadRequest, "invalid entry payload")
		return
	}
	entry.ConfigurationID = mux.Vars(r)["id"]

	updated, err := app.configuratorFor(auth).UpdateEntry(r.Context(), entry)
	if err != nil {
		respondConfigError(w, err)
		return
	}

	app.events.EmitEntryUpdated(updated.ConfigurationID, updated.ConfigurationName, auth.Domain)
	respondJSON(w, http.StatusOK, updated)
}

func (app *PaymentApp) deleteEntry(w http.ResponseWriter, r *http.Request) {
	auth, err := app.tenantFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unregistered Saleor instance")
		return
	}

	id := mux.Vars(r)["id"]
	if err := app.configuratorFor(auth).DeleteEntry(r.Context(), id); err != nil {
		respondConfigError(w, err)
		return
	}

	app.events.EmitEntryDeleted(id, auth.Domain)
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type mappingRequest struct {
	ConfigurationID string `json:"configuration_id"`
}

// setMapping points a channel at a configuration entry. An empty
// configuration_id disables payments for the channel without forgetting it.
func (app *PaymentApp) setMapping(w http.ResponseWriter, r *http.Request) {
	auth, err := app.tenantFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unregistered Saleor instance")
		return
	}

	var req mappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid mapping payload")
		return
	}

	channelID := mux.Vars(r)["channelID"]
	if err := app.configuratorFor(auth).SetMapping(r.Context(), channelID, req.ConfigurationID); err != nil {
		respondConfigError(w, err)
		return
	}

	app.events.EmitMappingUpdated(channelID, req.ConfigurationID, auth.Domain)
	respondJSON(w, http.StatusOK, map[string]string{"status": "mapped"})
}

func (app *PaymentApp) deleteMapping(w http.ResponseWriter, r *http.Request) {
	auth, err := app.tenantFromRequest(r)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unregistered Saleor instance")
		return
	}

	channelID := mux.Vars(r)["channelID"]
	if err := app.configuratorFor(auth).DeleteMapping(r.Context(), channelID); err != nil {
		respondConfigError(w, err)
		return
	}

	app.events.EmitMappingUpdated(channelID, "", auth.Domain)
	respondJSON(w, http.StatusOK, map[string]string{"status": "unmapped"})
}

func (app *PaymentApp) listProviders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"environments": app.providers})
}

// respondConfigError maps tagged configuration errors onto HTTP statuses.
func respondConfigError(w http.ResponseWriter, err error) {
	switch {
	case appconfig.IsKind(err, appconfig.ErrorValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case appconfig.IsKind(err, appconfig.ErrorNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case appconfig.IsKind(err, appconfig.ErrorParse):
		respondError(w, http.StatusInternalServerError, err.Error())
	default:
		respondError(w, http.StatusBadGateway, err.Error())
	}
}
