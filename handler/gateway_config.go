package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cnpay-go/cnpay/infra/config"
	"github.com/cnpay-go/cnpay/infra/response"
	"github.com/cnpay-go/cnpay/provider"
)

// ConfigHandler manages gateway credentials at runtime
type ConfigHandler struct {
	manager        *provider.PaymentManager
	providerConfig *config.ProviderConfig
	validate       *validator.Validate
}

// NewConfigHandler creates a new gateway configuration handler
func NewConfigHandler(manager *provider.PaymentManager, providerConfig *config.ProviderConfig, validate *validator.Validate) *ConfigHandler {
	return &ConfigHandler{
		manager:        manager,
		providerConfig: providerConfig,
		validate:       validate,
	}
}

// SetConfigDTO is the request body for installing gateway credentials
type SetConfigDTO struct {
	Gateway string            `json:"gateway" validate:"required"`
	Config  map[string]string `json:"config" validate:"required"`
}

// SetConfig handles POST /v1/config. Credentials are validated by the
// provider before being persisted, so a bad config never replaces a
// working one.
func (h *ConfigHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	var dto SetConfigDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		response.Error(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	if err := h.manager.AddProvider(dto.Gateway, dto.Config); err != nil {
		response.Error(w, errorStatus(err), "gateway configuration rejected", err)
		return
	}
	if err := h.providerConfig.SetConfig(dto.Gateway, dto.Config); err != nil {
		response.Error(w, http.StatusInternalServerError, "gateway configured but not persisted", err)
		return
	}
	response.Success(w, http.StatusOK, "gateway configured", map[string]string{"gateway": dto.Gateway})
}

// DeleteConfig handles DELETE /v1/config/{gateway}
func (h *ConfigHandler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	gateway := chi.URLParam(r, "gateway")
	environment := r.URL.Query().Get("environment")
	if environment == "" {
		environment = "production"
	}

	if err := h.manager.RemoveProvider(gateway); err != nil {
		response.Error(w, errorStatus(err), "gateway removal failed", err)
		return
	}
	if err := h.providerConfig.DeleteConfig(gateway, environment); err != nil {
		response.Error(w, http.StatusInternalServerError, "gateway removed but persisted config remains", err)
		return
	}
	response.Success(w, http.StatusOK, "gateway removed", map[string]string{"gateway": gateway})
}

// RequiredFields handles GET /v1/config/{gateway}/fields. It lists the
// credential fields a gateway needs without exposing stored values.
func (h *ConfigHandler) RequiredFields(w http.ResponseWriter, r *http.Request) {
	gateway := chi.URLParam(r, "gateway")
	environment := r.URL.Query().Get("environment")
	if environment == "" {
		environment = "production"
	}

	factory, err := provider.Get(gateway)
	if err != nil {
		response.Error(w, errorStatus(err), "unknown gateway", err)
		return
	}
	response.Success(w, http.StatusOK, "required configuration", factory().GetRequiredConfig(environment))
}
