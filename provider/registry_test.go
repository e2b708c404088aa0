package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider is a minimal PaymentProvider for registry and manager tests.
type stubProvider struct {
	name        string
	config      map[string]string
	initErr     error
	enabled     bool
	methods     []string
	createFn    func(ctx context.Context, method string, request CreateOrderRequest) (*CreateOrderResponse, error)
	queryFn     func(ctx context.Context, request QueryOrderRequest) (*QueryOrderResponse, error)
	refundFn    func(ctx context.Context, request RefundRequest) (*RefundResponse, error)
	closeFn     func(ctx context.Context, merchantOrderID string) error
	notifyFn    func(ctx context.Context, payload NotifyPayload) (*Notification, error)
	closeCalled int
}

func (s *stubProvider) Initialize(config map[string]string) error {
	s.config = config
	return s.initErr
}

func (s *stubProvider) GetRequiredConfig(environment string) []ConfigField {
	return []ConfigField{{Key: "appId", Required: true, Type: "string"}}
}

func (s *stubProvider) ValidateConfig(config map[string]string) error { return nil }
func (s *stubProvider) GetSupportedMethods() []string                 { return s.methods }
func (s *stubProvider) IsEnabled() bool                               { return s.enabled }

func (s *stubProvider) CreateOrder(ctx context.Context, method string, request CreateOrderRequest) (*CreateOrderResponse, error) {
	if s.createFn != nil {
		return s.createFn(ctx, method, request)
	}
	return &CreateOrderResponse{Success: true, TradeStatus: StatusPending}, nil
}

func (s *stubProvider) QueryOrder(ctx context.Context, request QueryOrderRequest) (*QueryOrderResponse, error) {
	if s.queryFn != nil {
		return s.queryFn(ctx, request)
	}
	return &QueryOrderResponse{Success: true, TradeStatus: StatusPending}, nil
}

func (s *stubProvider) Refund(ctx context.Context, request RefundRequest) (*RefundResponse, error) {
	if s.refundFn != nil {
		return s.refundFn(ctx, request)
	}
	return &RefundResponse{Success: true}, nil
}

func (s *stubProvider) CloseOrder(ctx context.Context, merchantOrderID string) error {
	s.closeCalled++
	if s.closeFn != nil {
		return s.closeFn(ctx, merchantOrderID)
	}
	return nil
}

func (s *stubProvider) HandleNotify(ctx context.Context, payload NotifyPayload) (*Notification, error) {
	if s.notifyFn != nil {
		return s.notifyFn(ctx, payload)
	}
	return &Notification{TradeStatus: StatusSuccess, MerchantOrderID: "ORDER001"}, nil
}

func (s *stubProvider) SuccessAck() Ack {
	return Ack{StatusCode: 200, ContentType: "text/plain", Body: "ok"}
}

func (s *stubProvider) FailureAck(reason string) Ack {
	return Ack{StatusCode: 400, ContentType: "text/plain", Body: reason}
}

func TestProviderRegistry_Register(t *testing.T) {
	registry := NewProviderRegistry()

	err := registry.Register("stub", func() PaymentProvider { return &stubProvider{} }, nil)
	require.NoError(t, err)

	factory, err := registry.Get("stub")
	assert.NoError(t, err)
	assert.NotNil(t, factory)
}

func TestProviderRegistry_RegisterDuplicate(t *testing.T) {
	registry := NewProviderRegistry()
	factory := func() PaymentProvider { return &stubProvider{} }

	require.NoError(t, registry.Register("stub", factory, nil))
	err := registry.Register("stub", factory, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestProviderRegistry_Get_NotFound(t *testing.T) {
	registry := NewProviderRegistry()

	var unknownErr *UnknownProviderError
	_, err := registry.Get("non-existent")
	assert.ErrorAs(t, err, &unknownErr)
}

func TestProviderRegistry_Create_MergesDefaults(t *testing.T) {
	registry := NewProviderRegistry()
	stub := &stubProvider{}
	require.NoError(t, registry.Register("stub", func() PaymentProvider { return stub }, map[string]string{
		"environment": "production",
		"signType":    "RSA2",
	}))

	_, err := registry.Create("stub", map[string]string{
		"appId":    "app-1",
		"signType": "RSA",
	})
	require.NoError(t, err)

	// Caller config wins over defaults.
	assert.Equal(t, "app-1", stub.config["appId"])
	assert.Equal(t, "RSA", stub.config["signType"])
	assert.Equal(t, "production", stub.config["environment"])
}

func TestProviderRegistry_Create_InitializeFails(t *testing.T) {
	registry := NewProviderRegistry()
	initErr := &ConfigError{Provider: "stub", Message: "missing appId"}
	require.NoError(t, registry.Register("stub", func() PaymentProvider {
		return &stubProvider{initErr: initErr}
	}, nil))

	_, err := registry.Create("stub", nil)
	var configErr *ConfigError
	assert.ErrorAs(t, err, &configErr)
}

func TestProviderRegistry_GetOrCreate_CachesInstance(t *testing.T) {
	registry := NewProviderRegistry()
	created := 0
	require.NoError(t, registry.Register("stub", func() PaymentProvider {
		created++
		return &stubProvider{}
	}, nil))

	first, err := registry.GetOrCreate("stub", nil)
	require.NoError(t, err)
	second, err := registry.GetOrCreate("stub", nil)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, created)
}

func TestProviderRegistry_NamesAndReset(t *testing.T) {
	registry := NewProviderRegistry()
	factory := func() PaymentProvider { return &stubProvider{} }
	require.NoError(t, registry.Register("one", factory, nil))
	require.NoError(t, registry.Register("two", factory, nil))

	names := registry.Names()
	assert.Len(t, names, 2)
	assert.Contains(t, names, "one")
	assert.Contains(t, names, "two")

	registry.Reset()
	assert.Empty(t, registry.Names())
}

func TestDefaultRegistryFunctions(t *testing.T) {
	require.NoError(t, Register("registry-test", func() PaymentProvider { return &stubProvider{} }, nil))

	factory, err := Get("registry-test")
	assert.NoError(t, err)
	assert.NotNil(t, factory)

	p, err := Create("registry-test", map[string]string{"appId": "x"})
	assert.NoError(t, err)
	assert.NotNil(t, p)
}
