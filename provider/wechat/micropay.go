package wechat

import (
	"context"
	"time"

	"github.com/cnpay-go/cnpay/provider"
)

const (
	resultSuccess = "SUCCESS"

	errCodeSystemError = "SYSTEMERROR"
	errCodeUserPaying  = "USERPAYING"

	tradeStateSuccess  = "SUCCESS"
	tradeStateClosed   = "CLOSED"
	tradeStateRevoked  = "REVOKED"
	tradeStatePayError = "PAYERROR"
)

// micropayAPI is the slice of the legacy client the scan-code flow needs.
type micropayAPI interface {
	Micropay(ctx context.Context, params Params) (Params, error)
	OrderQuery(ctx context.Context, outTradeNo string) (Params, error)
	Reverse(ctx context.Context, outTradeNo string) (Params, error)
}

// MicropayOptions controls the synchronous scan-code flow. Now and Sleep
// are injectable so the polling behavior is testable without waiting.
type MicropayOptions struct {
	GracePeriod  time.Duration // wait before the single query after a system error
	PollInterval time.Duration // interval between queries while the payer confirms
	PollTimeout  time.Duration // wall-clock cap on the confirmation wait
	Now          func() time.Time
	Sleep        func(ctx context.Context, d time.Duration) error
}

// DefaultMicropayOptions returns the standard timing for the scan-code flow.
func DefaultMicropayOptions() MicropayOptions {
	return MicropayOptions{
		GracePeriod:  5 * time.Second,
		PollInterval: 10 * time.Second,
		PollTimeout:  45 * time.Second,
	}
}

func (o *MicropayOptions) fill() {
	defaults := DefaultMicropayOptions()
	if o.GracePeriod <= 0 {
		o.GracePeriod = defaults.GracePeriod
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = defaults.PollTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}
}

func isTerminalFail(tradeState string) bool {
	switch tradeState {
	case tradeStateClosed, tradeStateRevoked, tradeStatePayError:
		return true
	}
	return false
}

// runMicropay drives the synchronous charge to a definite outcome. A system
// error on the charge gets one query after a short grace period; while the
// payer is still confirming, the order is polled up to a wall-clock cap and
// reversed if it never settles. The returned Params describe the paid order.
func runMicropay(ctx context.Context, api micropayAPI, outTradeNo string, request Params, opts MicropayOptions) (Params, error) {
	opts.fill()

	result, err := api.Micropay(ctx, request)
	if err != nil {
		return nil, err
	}

	if result["result_code"] == resultSuccess {
		return result, nil
	}

	switch result["err_code"] {
	case errCodeSystemError:
		return settleAfterSystemError(ctx, api, outTradeNo, opts)
	case errCodeUserPaying:
		return pollUntilPaid(ctx, api, outTradeNo, opts)
	default:
		return nil, &provider.GatewayError{
			Gateway: provider.GatewayWechat,
			Code:    result["err_code"],
			Message: result["err_code_des"],
		}
	}
}

// settleAfterSystemError gives the platform one grace period, queries once,
// and reverses the order if the outcome is still unknown.
func settleAfterSystemError(ctx context.Context, api micropayAPI, outTradeNo string, opts MicropayOptions) (Params, error) {
	if err := opts.Sleep(ctx, opts.GracePeriod); err != nil {
		reverseBestEffort(ctx, api, outTradeNo)
		return nil, &provider.IndeterminateError{MerchantOrderID: outTradeNo, Reason: "canceled while awaiting system error grace period"}
	}

	query, err := api.OrderQuery(ctx, outTradeNo)
	if err != nil {
		reverseBestEffort(ctx, api, outTradeNo)
		return nil, &provider.IndeterminateError{MerchantOrderID: outTradeNo, Reason: "order state unknown after system error"}
	}

	switch state := query["trade_state"]; {
	case state == tradeStateSuccess:
		return query, nil
	case isTerminalFail(state):
		return nil, &provider.GatewayError{
			Gateway: provider.GatewayWechat,
			Code:    state,
			Message: query["trade_state_desc"],
		}
	default:
		reverseBestEffort(ctx, api, outTradeNo)
		return nil, &provider.IndeterminateError{MerchantOrderID: outTradeNo, Reason: "order state unknown after system error"}
	}
}

// pollUntilPaid waits for the payer to confirm. The deadline is computed
// once on entry; a terminal failure short-circuits the wait, and hitting
// the cap reverses the order before reporting the timeout.
func pollUntilPaid(ctx context.Context, api micropayAPI, outTradeNo string, opts MicropayOptions) (Params, error) {
	start := opts.Now()
	deadline := start.Add(opts.PollTimeout)

	for {
		now := opts.Now()
		if !now.Before(deadline) {
			break
		}
		// Never sleep past the deadline; the final wait is truncated so the
		// cap is honored exactly.
		wait := opts.PollInterval
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}
		if err := opts.Sleep(ctx, wait); err != nil {
			reverseBestEffort(ctx, api, outTradeNo)
			return nil, &provider.TimeoutError{Op: "micropay confirmation", Elapsed: opts.Now().Sub(start)}
		}

		query, err := api.OrderQuery(ctx, outTradeNo)
		if err != nil {
			// transient; the deadline bounds the retries
			continue
		}

		switch state := query["trade_state"]; {
		case state == tradeStateSuccess:
			return query, nil
		case isTerminalFail(state):
			return nil, &provider.GatewayError{
				Gateway: provider.GatewayWechat,
				Code:    state,
				Message: query["trade_state_desc"],
			}
		}
	}

	reverseBestEffort(ctx, api, outTradeNo)
	return nil, &provider.TimeoutError{Op: "micropay confirmation", Elapsed: opts.Now().Sub(start)}
}

func reverseBestEffort(ctx context.Context, api micropayAPI, outTradeNo string) {
	_, _ = api.Reverse(ctx, outTradeNo)
}
