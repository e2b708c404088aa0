package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cnpay-go/cnpay/infra/logger"
	"github.com/cnpay-go/cnpay/infra/response"
	"github.com/cnpay-go/cnpay/provider"
)

// PaymentHandler serves the payment API and the gateway callback endpoints
type PaymentHandler struct {
	manager  *provider.PaymentManager
	validate *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(manager *provider.PaymentManager, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{
		manager:  manager,
		validate: validate,
	}
}

// CreateOrderDTO is the request body for order creation
type CreateOrderDTO struct {
	Gateway         string            `json:"gateway" validate:"required"`
	Method          string            `json:"method" validate:"required"`
	MerchantOrderID string            `json:"merchantOrderId" validate:"required"`
	AmountMinor     int64             `json:"amountMinor" validate:"required,gt=0"`
	Subject         string            `json:"subject" validate:"required"`
	Body            string            `json:"body,omitempty"`
	ExpireMinutes   int               `json:"expireMinutes,omitempty"`
	NotifyURL       string            `json:"notifyUrl,omitempty" validate:"omitempty,url"`
	ReturnURL       string            `json:"returnUrl,omitempty" validate:"omitempty,url"`
	PayerID         string            `json:"payerId,omitempty"`
	AuthCode        string            `json:"authCode,omitempty"`
	DeviceID        string            `json:"deviceId,omitempty"`
	SceneInfo       map[string]string `json:"sceneInfo,omitempty"`
}

// RefundDTO is the request body for refunds
type RefundDTO struct {
	Gateway         string `json:"gateway" validate:"required"`
	MerchantOrderID string `json:"merchantOrderId,omitempty"`
	GatewayTradeID  string `json:"gatewayTradeId,omitempty"`
	RefundID        string `json:"refundId,omitempty"`
	AmountMinor     int64  `json:"amountMinor" validate:"required,gt=0"`
	TotalMinor      int64  `json:"totalMinor,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// CreateOrder handles POST /v1/orders
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var dto CreateOrderDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		response.Error(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	request := provider.CreateOrderRequest{
		MerchantOrderID: dto.MerchantOrderID,
		AmountMinor:     dto.AmountMinor,
		Subject:         dto.Subject,
		Body:            dto.Body,
		ExpireMinutes:   dto.ExpireMinutes,
		NotifyURL:       dto.NotifyURL,
		ReturnURL:       dto.ReturnURL,
		PayerID:         dto.PayerID,
		AuthCode:        dto.AuthCode,
		DeviceID:        dto.DeviceID,
		ClientIP:        clientIP(r),
		SceneInfo:       dto.SceneInfo,
	}

	result, err := h.manager.CreateOrder(r.Context(), dto.Gateway+"."+dto.Method, request)
	if err != nil {
		status := errorStatus(err)
		response.Error(w, status, "order creation failed", err)
		return
	}
	response.Success(w, http.StatusOK, "order created", result)
}

// QueryOrder handles GET /v1/orders/{gateway}
func (h *PaymentHandler) QueryOrder(w http.ResponseWriter, r *http.Request) {
	gateway := chi.URLParam(r, "gateway")
	request := provider.QueryOrderRequest{
		MerchantOrderID: r.URL.Query().Get("merchantOrderId"),
		GatewayTradeID:  r.URL.Query().Get("gatewayTradeId"),
	}

	result, err := h.manager.QueryOrder(r.Context(), gateway, request)
	if err != nil {
		response.Error(w, errorStatus(err), "order query failed", err)
		return
	}
	response.Success(w, http.StatusOK, "order status", result)
}

// Refund handles POST /v1/refunds
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	var dto RefundDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		response.Error(w, http.StatusBadRequest, "validation failed", err)
		return
	}

	request := provider.RefundRequest{
		MerchantOrderID: dto.MerchantOrderID,
		GatewayTradeID:  dto.GatewayTradeID,
		RefundID:        dto.RefundID,
		AmountMinor:     dto.AmountMinor,
		TotalMinor:      dto.TotalMinor,
		Reason:          dto.Reason,
	}

	result, err := h.manager.Refund(r.Context(), dto.Gateway, request)
	if err != nil {
		response.Error(w, errorStatus(err), "refund failed", err)
		return
	}
	response.Success(w, http.StatusOK, "refund processed", result)
}

// CloseOrder handles POST /v1/orders/{gateway}/{merchantOrderId}/close
func (h *PaymentHandler) CloseOrder(w http.ResponseWriter, r *http.Request) {
	gateway := chi.URLParam(r, "gateway")
	merchantOrderID := chi.URLParam(r, "merchantOrderId")

	if err := h.manager.CloseOrder(r.Context(), gateway, merchantOrderID); err != nil {
		response.Error(w, errorStatus(err), "order close failed", err)
		return
	}
	response.Success(w, http.StatusOK, "order closed", nil)
}

// ListGateways handles GET /v1/gateways
func (h *PaymentHandler) ListGateways(w http.ResponseWriter, r *http.Request) {
	gateways := map[string][]string{}
	for _, name := range h.manager.Gateways() {
		p, err := h.manager.GetProviderInstance(name)
		if err != nil {
			continue
		}
		gateways[name] = p.GetSupportedMethods()
	}
	response.Success(w, http.StatusOK, "available gateways", gateways)
}

// HandleCallback handles POST /callback/{gateway}. The gateway-specific ack
// is written verbatim: its status code, content type and body are part of
// each platform's wire contract.
func (h *PaymentHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	gateway := chi.URLParam(r, "gateway")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "cannot read callback body", err)
		return
	}

	headers := make(map[string]string, len(r.Header))
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}

	payload := provider.NotifyPayload{Body: body, Headers: headers}
	notification, ack, err := h.manager.HandleNotify(r.Context(), gateway, payload)
	if err != nil {
		logger.Warn("callback rejected", logger.LogContext{
			Provider: gateway,
			Fields:   map[string]any{"error": err.Error()},
		})
		if ack.StatusCode == 0 {
			response.Error(w, errorStatus(err), "callback rejected", err)
			return
		}
		writeAck(w, ack)
		return
	}

	logger.Info("callback handled", logger.LogContext{
		Provider: gateway,
		Fields: map[string]any{
			"order":  notification.MerchantOrderID,
			"status": string(notification.TradeStatus),
		},
	})
	writeAck(w, ack)
}

// writeAck writes a gateway ack exactly as specified.
func writeAck(w http.ResponseWriter, ack provider.Ack) {
	w.Header().Set("Content-Type", ack.ContentType)
	w.WriteHeader(ack.StatusCode)
	_, _ = w.Write([]byte(ack.Body))
}

// errorStatus maps typed payment errors to HTTP status codes.
func errorStatus(err error) int {
	var (
		invalidErr     *provider.InvalidPayloadError
		unknownErr     *provider.UnknownProviderError
		unsupportedErr *provider.UnsupportedMethodError
		configErr      *provider.ConfigError
		gatewayErr     *provider.GatewayError
		timeoutErr     *provider.TimeoutError
	)
	switch {
	case errors.As(err, &invalidErr), errors.As(err, &unsupportedErr):
		return http.StatusBadRequest
	case errors.As(err, &unknownErr):
		return http.StatusNotFound
	case errors.As(err, &configErr):
		return http.StatusInternalServerError
	case errors.As(err, &gatewayErr):
		return http.StatusBadGateway
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout
	case errors.Is(err, provider.ErrManagerClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// clientIP extracts the originating client IP for gateway requests that
// require it.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		for i := 0; i < len(ip); i++ {
			if ip[i] == ',' {
				return ip[:i]
			}
		}
		return ip
	}
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}
