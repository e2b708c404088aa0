package provider

import (
	"context"
	"time"
)

// Gateway identifies a supported payment platform.
type Gateway string

const (
	GatewayWechat Gateway = "wechat"
	GatewayAlipay Gateway = "alipay"
)

// TradeStatus represents the unified status of a trade
type TradeStatus string

const (
	StatusSuccess TradeStatus = "success"
	StatusFailed  TradeStatus = "failed"
	StatusPending TradeStatus = "pending"
)

// ConfigField represents a required configuration field for a payment provider
type ConfigField struct {
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // "string", "number", "url", "boolean"
	Description string `json:"description"`
	Example     string `json:"example"`
	Pattern     string `json:"pattern,omitempty"`   // regex pattern for validation
	MinLength   int    `json:"minLength,omitempty"` // minimum length for string fields
	MaxLength   int    `json:"maxLength,omitempty"` // maximum length for string fields
}

// NotifyPayload is the raw inbound callback as delivered by the HTTP layer.
// Headers carry the signature material for gateways that sign via headers;
// for gateways that sign inside the body they are unused.
type NotifyPayload struct {
	Body    []byte            `json:"body"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Notification is the gateway-agnostic outcome of an inbound callback.
// MerchantOrderID and GatewayTradeID are both set once the status is
// success or failed; either may be empty while pending.
type Notification struct {
	Gateway         Gateway        `json:"gateway"`
	TradeStatus     TradeStatus    `json:"tradeStatus"`
	MerchantOrderID string         `json:"merchantOrderId"`
	GatewayTradeID  string         `json:"gatewayTradeId"`
	AmountMinor     int64          `json:"amountMinor"` // currency minor units
	PayerID         string         `json:"payerId,omitempty"`
	RawPayload      map[string]any `json:"rawPayload,omitempty"`
	ReceivedAt      int64          `json:"receivedAt"` // epoch milliseconds
}

// Ack is the gateway-specific acknowledgment the HTTP layer must write
// verbatim in response to a callback.
type Ack struct {
	StatusCode  int    `json:"statusCode"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// CreateOrderRequest contains all information required to create an order
type CreateOrderRequest struct {
	MerchantOrderID string            `json:"merchantOrderId" validate:"required"`
	AmountMinor     int64             `json:"amountMinor" validate:"required,gt=0"`
	Subject         string            `json:"subject" validate:"required"`
	Body            string            `json:"body,omitempty"`
	ExpireMinutes   int               `json:"expireMinutes,omitempty"`
	NotifyURL       string            `json:"notifyUrl,omitempty"`
	ReturnURL       string            `json:"returnUrl,omitempty"`
	PayerID         string            `json:"payerId,omitempty"`  // wallet user id for in-app flows
	AuthCode        string            `json:"authCode,omitempty"` // customer-presented code for scan-code flows
	DeviceID        string            `json:"deviceId,omitempty"` // terminal id for scan-code flows
	StoreID         string            `json:"storeId,omitempty"`
	ClientIP        string            `json:"clientIp,omitempty"`
	SceneInfo       map[string]string `json:"sceneInfo,omitempty"`
}

// Presentation carries how the payer is presented with the payment.
// Exactly one field is populated, selected by the payment method.
type Presentation struct {
	QRCodeURL   string            `json:"qrCodeUrl,omitempty"`
	RedirectURL string            `json:"redirectUrl,omitempty"`
	PayParams   map[string]string `json:"payParams,omitempty"` // in-app invocation parameters
	HTML        string            `json:"html,omitempty"`
}

// IsZero reports whether no presentation variant is populated.
func (p Presentation) IsZero() bool {
	return p.QRCodeURL == "" && p.RedirectURL == "" && len(p.PayParams) == 0 && p.HTML == ""
}

// CreateOrderResponse contains the result of an order creation request.
// Success=false implies Presentation is empty and ErrorMessage is populated.
type CreateOrderResponse struct {
	Success        bool           `json:"success"`
	GatewayTradeID string         `json:"gatewayTradeId,omitempty"`
	TradeStatus    TradeStatus    `json:"tradeStatus,omitempty"`
	Presentation   Presentation   `json:"presentation,omitempty"`
	ErrorCode      string         `json:"errorCode,omitempty"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	RawPayload     map[string]any `json:"rawPayload,omitempty"`
}

// QueryOrderRequest identifies an order by exactly one of the two identifiers.
type QueryOrderRequest struct {
	MerchantOrderID string `json:"merchantOrderId,omitempty"`
	GatewayTradeID  string `json:"gatewayTradeId,omitempty"`
}

// Validate checks that exactly one identifier is supplied.
func (r QueryOrderRequest) Validate() error {
	if r.MerchantOrderID == "" && r.GatewayTradeID == "" {
		return &InvalidPayloadError{Reason: "either merchantOrderId or gatewayTradeId is required"}
	}
	if r.MerchantOrderID != "" && r.GatewayTradeID != "" {
		return &InvalidPayloadError{Reason: "merchantOrderId and gatewayTradeId are mutually exclusive"}
	}
	return nil
}

// QueryOrderResponse contains the result of an order status query
type QueryOrderResponse struct {
	Success         bool           `json:"success"`
	TradeStatus     TradeStatus    `json:"tradeStatus"`
	MerchantOrderID string         `json:"merchantOrderId,omitempty"`
	GatewayTradeID  string         `json:"gatewayTradeId,omitempty"`
	AmountMinor     int64          `json:"amountMinor,omitempty"`
	PayerID         string         `json:"payerId,omitempty"`
	ErrorCode       string         `json:"errorCode,omitempty"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	RawPayload      map[string]any `json:"rawPayload,omitempty"`
}

// RefundRequest contains information to request a refund.
// Exactly one of MerchantOrderID/GatewayTradeID identifies the original
// trade. TotalMinor is the original order total and may be left zero, in
// which case the provider discovers it where the gateway requires it to be
// echoed.
type RefundRequest struct {
	MerchantOrderID string `json:"merchantOrderId,omitempty"`
	GatewayTradeID  string `json:"gatewayTradeId,omitempty"`
	RefundID        string `json:"refundId,omitempty"` // caller-assigned refund reference
	AmountMinor     int64  `json:"amountMinor" validate:"required,gt=0"`
	TotalMinor      int64  `json:"totalMinor,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// Validate checks the identifier and amount constraints.
func (r RefundRequest) Validate() error {
	if err := (QueryOrderRequest{MerchantOrderID: r.MerchantOrderID, GatewayTradeID: r.GatewayTradeID}).Validate(); err != nil {
		return err
	}
	if r.AmountMinor <= 0 {
		return &InvalidPayloadError{Reason: "refund amount must be greater than 0"}
	}
	return nil
}

// RefundResponse contains the result of a refund request
type RefundResponse struct {
	Success         bool           `json:"success"`
	RefundID        string         `json:"refundId,omitempty"`
	GatewayRefundID string         `json:"gatewayRefundId,omitempty"`
	Status          string         `json:"status,omitempty"`
	AmountMinor     int64          `json:"amountMinor,omitempty"`
	ErrorCode       string         `json:"errorCode,omitempty"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	RawPayload      map[string]any `json:"rawPayload,omitempty"`
}

// PaymentProvider defines the interface that all payment gateways must implement
type PaymentProvider interface {
	// Initialize sets up the payment provider with credentials and configuration.
	// Invalid or missing credential material is a construction-time error.
	Initialize(config map[string]string) error

	// GetRequiredConfig returns the configuration fields required for this provider
	GetRequiredConfig(environment string) []ConfigField

	// ValidateConfig validates the provided configuration against provider requirements
	ValidateConfig(config map[string]string) error

	// GetSupportedMethods returns the payment sub-methods this provider accepts
	GetSupportedMethods() []string

	// IsEnabled reports whether the provider may serve requests
	IsEnabled() bool

	// CreateOrder creates an order using the given payment sub-method
	CreateOrder(ctx context.Context, method string, request CreateOrderRequest) (*CreateOrderResponse, error)

	// QueryOrder retrieves the current status of an order
	QueryOrder(ctx context.Context, request QueryOrderRequest) (*QueryOrderResponse, error)

	// Refund issues a refund for a completed order
	Refund(ctx context.Context, request RefundRequest) (*RefundResponse, error)

	// CloseOrder closes an unpaid order
	CloseOrder(ctx context.Context, merchantOrderID string) error

	// HandleNotify validates, verifies and transforms an inbound callback
	HandleNotify(ctx context.Context, payload NotifyPayload) (*Notification, error)

	// SuccessAck returns the acknowledgment the gateway expects after a
	// successfully handled callback
	SuccessAck() Ack

	// FailureAck returns the acknowledgment the gateway expects when the
	// callback could not be handled
	FailureAck(reason string) Ack
}

// ProviderFactory is a function type that creates a new PaymentProvider
type ProviderFactory func() PaymentProvider

// NotifySteps is the step set every gateway's callback handling is built
// from. RunNotify drives the steps in strict order; any failure
// short-circuits the remaining steps.
type NotifySteps interface {
	// ValidateNotify checks the structural shape of the payload
	ValidateNotify(payload NotifyPayload) error
	// VerifyNotify checks the payload's cryptographic signature
	VerifyNotify(payload NotifyPayload) error
	// TransformNotify decodes the payload into a unified notification
	TransformNotify(payload NotifyPayload) (*Notification, error)
}

// NotifyPostProcessor is an optional extension of NotifySteps for
// gateway-specific work after the notification is built.
type NotifyPostProcessor interface {
	PostProcessNotify(ctx context.Context, notification *Notification) error
}

// RunNotify executes the callback pipeline: validate, verify, transform
// and, when the step set implements NotifyPostProcessor, post-process.
func RunNotify(ctx context.Context, gateway Gateway, steps NotifySteps, payload NotifyPayload) (*Notification, error) {
	if err := steps.ValidateNotify(payload); err != nil {
		return nil, err
	}
	if err := steps.VerifyNotify(payload); err != nil {
		return nil, err
	}
	notification, err := steps.TransformNotify(payload)
	if err != nil {
		return nil, err
	}
	notification.Gateway = gateway
	if notification.ReceivedAt == 0 {
		notification.ReceivedAt = time.Now().UnixMilli()
	}
	if pp, ok := steps.(NotifyPostProcessor); ok {
		if err := pp.PostProcessNotify(ctx, notification); err != nil {
			return nil, err
		}
	}
	return notification, nil
}

// AuditEntry is a single payment event for the audit log sink.
type AuditEntry struct {
	Gateway         string `json:"gateway"`
	Kind            string `json:"kind"` // "notify", "order.create", "order.query", "refund"
	Method          string `json:"method,omitempty"`
	MerchantOrderID string `json:"merchantOrderId,omitempty"`
	GatewayTradeID  string `json:"gatewayTradeId,omitempty"`
	Status          string `json:"status,omitempty"`
	AmountMinor     int64  `json:"amountMinor,omitempty"`
	ErrorCode       string `json:"errorCode,omitempty"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
	ElapsedMs       int64  `json:"elapsedMs,omitempty"`
}

// AuditLogger receives payment events for audit. Implementations must be
// safe for concurrent use; sink failures are logged by the caller and never
// fail the payment operation.
type AuditLogger interface {
	LogPaymentEvent(ctx context.Context, entry AuditEntry) error
}
