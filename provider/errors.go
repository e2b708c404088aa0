package provider

import (
	"errors"
	"fmt"
	"time"
)

// ErrManagerClosed is returned by every PaymentManager method after Destroy.
var ErrManagerClosed = errors.New("payment manager is closed")

// ErrUnsupportedAlgorithm is returned for signature or hash algorithm names
// outside the supported set.
var ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

// ConfigError indicates missing or malformed provider configuration.
type ConfigError struct {
	Provider string
	Message  string
}

func (e *ConfigError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error for provider %s: %s", e.Provider, e.Message)
}

// InvalidPayloadError indicates a structurally invalid request or callback
// payload, detected before any cryptographic work.
type InvalidPayloadError struct {
	Reason string
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("invalid payload: %s", e.Reason)
}

// VerificationError indicates a signature that was well-formed but did not
// verify against the expected key.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("signature verification failed: %s", e.Reason)
}

// KeyError indicates unusable key material (bad PEM, wrong key type). It is
// distinct from VerificationError so callers can tell misconfiguration apart
// from a forged or corrupted message.
type KeyError struct {
	Reason string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("key error: %s", e.Reason)
}

// DecryptionError indicates an authenticated decryption failure. It never
// carries ciphertext or plaintext fragments.
type DecryptionError struct {
	Reason string
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed: %s", e.Reason)
}

// UnknownProviderError indicates a provider name with no registered factory.
type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown provider: %s", e.Name)
}

// UnsupportedMethodError indicates a payment sub-method the provider does
// not accept.
type UnsupportedMethodError struct {
	Provider string
	Method   string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("provider %s does not support method %s", e.Provider, e.Method)
}

// NetworkError indicates a transport-level failure talking to a gateway:
// connection errors, timeouts, or non-2xx HTTP statuses without a parseable
// business error.
type NetworkError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("network error: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// GatewayError is a business-level rejection from a payment platform. The
// request reached the gateway and was understood; the gateway declined it.
type GatewayError struct {
	Gateway    Gateway
	Code       string
	Message    string
	HTTPStatus int
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s gateway error %s: %s", e.Gateway, e.Code, e.Message)
}

// TimeoutError indicates an operation abandoned after its wall-clock cap.
// For the scan-code flow the order has been reversed before this is returned.
type TimeoutError struct {
	Op      string
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.Elapsed)
}

// IndeterminateError indicates the final state of a payment could not be
// established and a best-effort reversal was attempted. Callers must
// reconcile the order out of band.
type IndeterminateError struct {
	MerchantOrderID string
	Reason          string
}

func (e *IndeterminateError) Error() string {
	return fmt.Sprintf("payment state indeterminate for order %s: %s", e.MerchantOrderID, e.Reason)
}
