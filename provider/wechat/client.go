package wechat

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cnpay-go/cnpay/provider"
)

const (
	apiProductionURL = "https://api.mch.weixin.qq.com"

	authorizationType = "WECHATPAY2-SHA256-RSA2048"

	headerTimestamp = "Wechatpay-Timestamp"
	headerNonce     = "Wechatpay-Nonce"
	headerSignature = "Wechatpay-Signature"
	headerSerial    = "Wechatpay-Serial"
)

// Client talks to the JSON API. Requests carry an RSA-SHA256 signature in
// the Authorization header; callbacks are verified against the platform
// public key and decrypted with the AES-256-GCM API key.
type Client struct {
	appID             string
	mchID             string
	serialNo          string
	privateKey        *rsa.PrivateKey
	platformPublicKey *rsa.PublicKey
	apiV3Key          []byte
	http              *provider.ProviderHTTPClient
	now               func() time.Time
}

// ClientConfig carries the credentials for the JSON API client.
type ClientConfig struct {
	AppID             string
	MchID             string
	SerialNo          string
	PrivateKeyPEM     string
	PlatformPublicPEM string
	APIV3Key          string
	BaseURL           string
	Timeout           time.Duration
	RetryCount        int
}

// httpConfig builds the transport configuration shared by both API clients.
func httpConfig(baseURL string, timeout time.Duration, retryCount int) *provider.HTTPClientConfig {
	cfg := provider.CreateHTTPClientConfig(baseURL, true, timeout)
	cfg.RetryCount = retryCount
	return cfg
}

// NewClient builds a JSON API client. Key material is parsed eagerly so
// misconfiguration fails at construction time.
func NewClient(cfg ClientConfig) (*Client, error) {
	privateKey, err := provider.ParseRSAPrivateKey(cfg.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	var platformKey *rsa.PublicKey
	if cfg.PlatformPublicPEM != "" {
		platformKey, err = provider.ParseRSAPublicKey(cfg.PlatformPublicPEM)
		if err != nil {
			return nil, err
		}
	}
	if len(cfg.APIV3Key) != 0 && len(cfg.APIV3Key) != 32 {
		return nil, &provider.ConfigError{Provider: "wechat", Message: "apiV3Key must be exactly 32 bytes"}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = apiProductionURL
	}

	return &Client{
		appID:             cfg.AppID,
		mchID:             cfg.MchID,
		serialNo:          cfg.SerialNo,
		privateKey:        privateKey,
		platformPublicKey: platformKey,
		apiV3Key:          []byte(cfg.APIV3Key),
		http:              provider.NewProviderHTTPClient(httpConfig(baseURL, cfg.Timeout, cfg.RetryCount)),
		now:               time.Now,
	}, nil
}

// authorization builds the Authorization header for a request. The signed
// message is METHOD, URL path (with query), timestamp, nonce and body, each
// followed by a newline.
func (c *Client) authorization(method, path, body string) (string, error) {
	timestamp := fmt.Sprintf("%d", c.now().Unix())
	nonce := provider.NonceString()

	message := method + "\n" + path + "\n" + timestamp + "\n" + nonce + "\n" + body + "\n"
	signature, err := provider.SignRSA(provider.SignTypeRSA2, c.privateKey, []byte(message))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`%s mchid="%s",nonce_str="%s",signature="%s",timestamp="%s",serial_no="%s"`,
		authorizationType, c.mchID, nonce, signature, timestamp, c.serialNo), nil
}

// Do sends a signed request and decodes the JSON response. A non-2xx status
// with a parseable platform error becomes a GatewayError; anything else at
// the transport level stays a NetworkError.
func (c *Client) Do(ctx context.Context, method, path string, body any) (map[string]any, error) {
	var payload string
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("wechat: marshal request: %w", err)
		}
		payload = string(data)
	}

	auth, err := c.authorization(method, path, payload)
	if err != nil {
		return nil, err
	}

	req := &provider.HTTPRequest{
		Method:   method,
		Endpoint: path,
		Headers: map[string]string{
			"Authorization": auth,
			"Accept":        "application/json",
			"Content-Type":  "application/json",
		},
	}
	if payload != "" {
		req.Body = payload
	}

	resp, err := c.http.SendRaw(ctx, req)
	if err != nil {
		var netErr *provider.NetworkError
		if errors.As(err, &netErr) && resp != nil && len(resp.Body) > 0 {
			var platformErr struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			}
			if jsonErr := json.Unmarshal(resp.Body, &platformErr); jsonErr == nil && platformErr.Code != "" {
				return nil, &provider.GatewayError{
					Gateway:    provider.GatewayWechat,
					Code:       platformErr.Code,
					Message:    platformErr.Message,
					HTTPStatus: resp.StatusCode,
				}
			}
		}
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent || len(resp.Body) == 0 {
		return map[string]any{}, nil
	}

	var result map[string]any
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, &provider.InvalidPayloadError{Reason: "wechat response is not valid JSON"}
	}
	return result, nil
}

// VerifyCallback checks the platform signature of an inbound callback. The
// signed message is the timestamp, nonce and raw body from the callback,
// each followed by a newline.
func (c *Client) VerifyCallback(headers map[string]string, body []byte) error {
	if c.platformPublicKey == nil {
		return &provider.ConfigError{Provider: "wechat", Message: "platformPublicKey is required to verify callbacks"}
	}

	timestamp := headers[headerTimestamp]
	nonce := headers[headerNonce]
	signature := headers[headerSignature]
	if timestamp == "" || nonce == "" || signature == "" {
		return &provider.InvalidPayloadError{Reason: "missing callback signature headers"}
	}

	message := timestamp + "\n" + nonce + "\n" + string(body) + "\n"
	return provider.VerifyRSA(provider.SignTypeRSA2, c.platformPublicKey, []byte(message), signature)
}

// DecryptResource decrypts an encrypted callback resource.
func (c *Client) DecryptResource(nonce, associatedData, ciphertext string) ([]byte, error) {
	if len(c.apiV3Key) == 0 {
		return nil, &provider.ConfigError{Provider: "wechat", Message: "apiV3Key is required to decrypt callbacks"}
	}
	return provider.DecryptAESGCM(c.apiV3Key, nonce, associatedData, ciphertext)
}
