package provider

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cnpay-go/cnpay/infra/logger"
)

// ManagerConfig configures a PaymentManager. Gateways maps provider name to
// its credential config; every named gateway is created and initialized at
// construction time so configuration problems fail fast.
type ManagerConfig struct {
	Gateways map[string]map[string]string
}

// ManagerOption customizes a PaymentManager.
type ManagerOption func(*PaymentManager)

// WithRegistry uses a registry other than DefaultRegistry. Intended for tests.
func WithRegistry(r *ProviderRegistry) ManagerOption {
	return func(m *PaymentManager) { m.registry = r }
}

// WithAuditLogger attaches an audit sink. Sink failures are logged and never
// fail the payment operation.
func WithAuditLogger(a AuditLogger) ManagerOption {
	return func(m *PaymentManager) { m.audit = a }
}

// PaymentManager routes payment operations to configured gateway providers
// and dispatches lifecycle hooks for inbound callbacks.
type PaymentManager struct {
	mu        sync.RWMutex
	registry  *ProviderRegistry
	providers map[string]PaymentProvider
	hooks     *hookRegistry
	audit     AuditLogger
	closed    bool
}

// NewPaymentManager builds a manager with one initialized provider per
// configured gateway.
func NewPaymentManager(cfg ManagerConfig, opts ...ManagerOption) (*PaymentManager, error) {
	m := &PaymentManager{
		registry:  DefaultRegistry,
		providers: make(map[string]PaymentProvider),
		hooks:     newHookRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	for name, config := range cfg.Gateways {
		p, err := m.registry.Create(name, config)
		if err != nil {
			return nil, err
		}
		m.providers[name] = p
	}
	return m, nil
}

// On registers a hook for an event.
func (m *PaymentManager) On(event HookEvent, fn HookFunc) {
	m.hooks.add(event, fn)
}

// resolve splits a routing method of the form "gateway" or
// "gateway.submethod" and returns the provider plus the sub-method.
func (m *PaymentManager) resolve(method string) (PaymentProvider, string, string, error) {
	gateway, sub, _ := strings.Cut(method, ".")

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, "", "", ErrManagerClosed
	}
	p, ok := m.providers[gateway]
	if !ok {
		return nil, "", "", &UnknownProviderError{Name: gateway}
	}
	return p, gateway, sub, nil
}

// CreateOrder creates an order via "gateway.submethod" routing, e.g.
// "wechat.native" or "alipay.page".
func (m *PaymentManager) CreateOrder(ctx context.Context, method string, request CreateOrderRequest) (*CreateOrderResponse, error) {
	p, gateway, sub, err := m.resolve(method)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := p.CreateOrder(ctx, sub, request)
	m.auditOrder(ctx, gateway, "order.create", sub, request.MerchantOrderID, request.AmountMinor, resp, err, start)
	return resp, err
}

// QueryOrder queries an order's status on the named gateway.
func (m *PaymentManager) QueryOrder(ctx context.Context, gateway string, request QueryOrderRequest) (*QueryOrderResponse, error) {
	p, _, _, err := m.resolve(gateway)
	if err != nil {
		return nil, err
	}
	return p.QueryOrder(ctx, request)
}

// Refund issues a refund on the named gateway.
func (m *PaymentManager) Refund(ctx context.Context, gateway string, request RefundRequest) (*RefundResponse, error) {
	p, name, _, err := m.resolve(gateway)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := p.Refund(ctx, request)
	if m.audit != nil {
		entry := AuditEntry{
			Gateway:         name,
			Kind:            "refund",
			MerchantOrderID: request.MerchantOrderID,
			GatewayTradeID:  request.GatewayTradeID,
			AmountMinor:     request.AmountMinor,
			ElapsedMs:       time.Since(start).Milliseconds(),
		}
		if err != nil {
			entry.Status = "error"
			entry.ErrorMessage = err.Error()
		} else {
			entry.Status = resp.Status
			entry.ErrorCode = resp.ErrorCode
			entry.ErrorMessage = resp.ErrorMessage
		}
		m.logAudit(ctx, entry)
	}
	return resp, err
}

// CloseOrder closes an unpaid order on the named gateway.
func (m *PaymentManager) CloseOrder(ctx context.Context, gateway, merchantOrderID string) error {
	p, _, _, err := m.resolve(gateway)
	if err != nil {
		return err
	}
	return p.CloseOrder(ctx, merchantOrderID)
}

// HandleNotify processes an inbound callback for the named gateway. It
// returns the unified notification together with the ack the HTTP layer
// must write verbatim. On a verified notification the onNotify hooks fire
// first, then exactly one of onSuccess/onFail/onPending according to the
// trade status. Hook failures are logged, never propagated.
func (m *PaymentManager) HandleNotify(ctx context.Context, gateway string, payload NotifyPayload) (*Notification, Ack, error) {
	p, name, _, err := m.resolve(gateway)
	if err != nil {
		return nil, Ack{}, err
	}

	start := time.Now()
	notification, err := p.HandleNotify(ctx, payload)
	if err != nil {
		if m.audit != nil {
			m.logAudit(ctx, AuditEntry{
				Gateway:      name,
				Kind:         "notify",
				Status:       "rejected",
				ErrorMessage: err.Error(),
				ElapsedMs:    time.Since(start).Milliseconds(),
			})
		}
		return nil, p.FailureAck(err.Error()), err
	}

	m.fireHooks(ctx, EventNotify, notification)
	m.fireHooks(ctx, statusEvent(notification.TradeStatus), notification)

	if m.audit != nil {
		m.logAudit(ctx, AuditEntry{
			Gateway:         name,
			Kind:            "notify",
			MerchantOrderID: notification.MerchantOrderID,
			GatewayTradeID:  notification.GatewayTradeID,
			Status:          string(notification.TradeStatus),
			AmountMinor:     notification.AmountMinor,
			ElapsedMs:       time.Since(start).Milliseconds(),
		})
	}
	return notification, p.SuccessAck(), nil
}

func (m *PaymentManager) fireHooks(ctx context.Context, event HookEvent, notification *Notification) {
	for _, err := range m.hooks.fire(ctx, event, notification) {
		logger.Warn("notification hook failed", logger.LogContext{
			Provider: string(notification.Gateway),
			Fields: map[string]any{
				"event": string(event),
				"order": notification.MerchantOrderID,
				"error": err.Error(),
			},
		})
	}
}

func (m *PaymentManager) auditOrder(ctx context.Context, gateway, kind, method, orderID string, amount int64, resp *CreateOrderResponse, err error, start time.Time) {
	if m.audit == nil {
		return
	}
	entry := AuditEntry{
		Gateway:         gateway,
		Kind:            kind,
		Method:          method,
		MerchantOrderID: orderID,
		AmountMinor:     amount,
		ElapsedMs:       time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Status = "error"
		entry.ErrorMessage = err.Error()
	} else {
		entry.Status = string(resp.TradeStatus)
		entry.GatewayTradeID = resp.GatewayTradeID
		entry.ErrorCode = resp.ErrorCode
		entry.ErrorMessage = resp.ErrorMessage
	}
	m.logAudit(ctx, entry)
}

func (m *PaymentManager) logAudit(ctx context.Context, entry AuditEntry) {
	if m.audit == nil {
		return
	}
	if err := m.audit.LogPaymentEvent(ctx, entry); err != nil {
		logger.Warn("audit sink failed", logger.LogContext{
			Provider: entry.Gateway,
			Fields:   map[string]any{"error": err.Error()},
		})
	}
}

// AddProvider creates, initializes and installs a provider at runtime.
func (m *PaymentManager) AddProvider(name string, config map[string]string) error {
	p, err := m.registry.Create(name, config)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	m.providers[name] = p
	return nil
}

// RemoveProvider uninstalls a provider. In-flight calls holding the old
// instance finish against it.
func (m *PaymentManager) RemoveProvider(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	if _, ok := m.providers[name]; !ok {
		return &UnknownProviderError{Name: name}
	}
	delete(m.providers, name)
	return nil
}

// GetProviderInstance returns the installed provider for a gateway.
func (m *PaymentManager) GetProviderInstance(name string) (PaymentProvider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	p, ok := m.providers[name]
	if !ok {
		return nil, &UnknownProviderError{Name: name}
	}
	return p, nil
}

// Gateways returns the names of the installed providers.
func (m *PaymentManager) Gateways() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	return names
}

// UpdateConfig rebuilds every configured gateway with new credentials and
// swaps the provider map atomically. The whole new map is constructed and
// validated before the swap; on any error the old map stays in place.
func (m *PaymentManager) UpdateConfig(gateways map[string]map[string]string) error {
	next := make(map[string]PaymentProvider, len(gateways))
	for name, config := range gateways {
		p, err := m.registry.Create(name, config)
		if err != nil {
			return err
		}
		next[name] = p
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	m.providers = next
	return nil
}

// Destroy releases the manager: the provider map and every hook
// registration are cleared. Every subsequent call returns ErrManagerClosed.
// In-flight calls that already resolved their provider finish normally.
func (m *PaymentManager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.providers = make(map[string]PaymentProvider)
	m.hooks = newHookRegistry()
}
