package alipay

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cnpay-go/cnpay/provider"
)

const (
	gatewayProductionURL = "https://openapi.alipay.com/gateway.do"
	gatewaySandboxURL    = "https://openapi-sandbox.dl.alipaydev.com/gateway.do"

	codeSuccess = "10000"

	timestampLayout = "2006-01-02 15:04:05"
)

// Client talks to the form-style gateway. Every request is a signed
// parameter set; the signature travels inside the parameter set itself.
type Client struct {
	appID      string
	signType   provider.SignType
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	gatewayURL string
	http       *provider.ProviderHTTPClient
	now        func() time.Time
}

// ClientConfig carries the credentials for the gateway client.
type ClientConfig struct {
	AppID         string
	SignType      provider.SignType
	PrivateKeyPEM string
	PublicKeyPEM  string
	GatewayURL    string
	Sandbox       bool
	Timeout       time.Duration
	RetryCount    int
}

// NewClient builds a gateway client. Key material is parsed eagerly so
// misconfiguration fails at construction time.
func NewClient(cfg ClientConfig) (*Client, error) {
	privateKey, err := provider.ParseRSAPrivateKey(cfg.PrivateKeyPEM)
	if err != nil {
		return nil, err
	}
	publicKey, err := provider.ParseRSAPublicKey(cfg.PublicKeyPEM)
	if err != nil {
		return nil, err
	}

	signType := cfg.SignType
	if signType == "" {
		signType = provider.SignTypeRSA2
	}

	gatewayURL := cfg.GatewayURL
	if gatewayURL == "" {
		if cfg.Sandbox {
			gatewayURL = gatewaySandboxURL
		} else {
			gatewayURL = gatewayProductionURL
		}
	}

	httpCfg := provider.CreateHTTPClientConfig(gatewayURL, !cfg.Sandbox, cfg.Timeout)
	httpCfg.RetryCount = cfg.RetryCount

	return &Client{
		appID:      cfg.AppID,
		signType:   signType,
		privateKey: privateKey,
		publicKey:  publicKey,
		gatewayURL: gatewayURL,
		http:       provider.NewProviderHTTPClient(httpCfg),
		now:        time.Now,
	}, nil
}

// buildParams assembles and signs the common parameter set for an API
// method. The signature covers the ascending-sorted k=v join of all
// non-empty parameters.
func (c *Client) buildParams(method string, bizContent map[string]any, extra map[string]string) (map[string]string, error) {
	params := map[string]string{
		"app_id":    c.appID,
		"method":    method,
		"format":    "JSON",
		"charset":   "utf-8",
		"sign_type": string(c.signType),
		"timestamp": c.now().Format(timestampLayout),
		"version":   "1.0",
	}
	for k, v := range extra {
		params[k] = v
	}
	if bizContent != nil {
		content, err := json.Marshal(bizContent)
		if err != nil {
			return nil, fmt.Errorf("alipay: marshal biz_content: %w", err)
		}
		params["biz_content"] = string(content)
	}

	canonical := provider.CanonicalString(params, "sign")
	sign, err := provider.SignRSA(c.signType, c.privateKey, []byte(canonical))
	if err != nil {
		return nil, err
	}
	params["sign"] = sign
	return params, nil
}

// Execute sends a signed request and returns the decoded response node.
// The sync-response signature is verified over the raw substring of the
// response node before any field is trusted; a non-success code becomes a
// GatewayError.
func (c *Client) Execute(ctx context.Context, method string, bizContent map[string]any, extra map[string]string) (map[string]any, error) {
	params, err := c.buildParams(method, bizContent, extra)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.SendForm(ctx, &provider.HTTPRequest{
		Method:   "POST",
		Endpoint: c.gatewayURL,
		FormData: params,
	})
	if err != nil {
		return nil, err
	}

	node := strings.ReplaceAll(method, ".", "_") + "_response"
	content, sign, err := extractResponseNode(resp.RawBody, node)
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, &provider.InvalidPayloadError{Reason: "response node is not valid JSON"}
	}

	code, _ := result["code"].(string)
	if sign != "" {
		if err := provider.VerifyRSA(c.signType, c.publicKey, []byte(content), sign); err != nil {
			return nil, err
		}
	} else if code == codeSuccess {
		return nil, &provider.VerificationError{Reason: "success response carries no signature"}
	}

	if code != codeSuccess {
		gwErr := &provider.GatewayError{Gateway: provider.GatewayAlipay, Code: code}
		if subCode, ok := result["sub_code"].(string); ok && subCode != "" {
			gwErr.Code = subCode
		}
		if subMsg, ok := result["sub_msg"].(string); ok && subMsg != "" {
			gwErr.Message = subMsg
		} else if msg, ok := result["msg"].(string); ok {
			gwErr.Message = msg
		}
		return nil, gwErr
	}
	return result, nil
}

// extractResponseNode locates the raw substring of the named response node
// and the detached signature. Signature verification must run against the
// exact bytes the gateway signed, so the node is never re-marshaled.
func extractResponseNode(body, node string) (content, sign string, err error) {
	key := `"` + node + `":`
	start := strings.Index(body, key)
	if start < 0 {
		return "", "", &provider.InvalidPayloadError{Reason: "response node not found"}
	}
	start += len(key)

	open := strings.Index(body[start:], "{")
	if open < 0 {
		return "", "", &provider.InvalidPayloadError{Reason: "response node is not an object"}
	}
	open += start

	depth := 0
	end := -1
	inString := false
	escaped := false
	for i := open; i < len(body); i++ {
		ch := body[i]
		if inString {
			if escaped {
				escaped = false
			} else if ch == '\\' {
				escaped = true
			} else if ch == '"' {
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return "", "", &provider.InvalidPayloadError{Reason: "response node is not terminated"}
	}
	content = body[open : end+1]

	var envelope map[string]json.RawMessage
	if jsonErr := json.Unmarshal([]byte(body), &envelope); jsonErr == nil {
		if rawSign, ok := envelope["sign"]; ok {
			_ = json.Unmarshal(rawSign, &sign)
		}
	}
	return content, sign, nil
}

// PageExecute builds a signed redirect URL for browser-facing methods.
func (c *Client) PageExecute(method string, bizContent map[string]any, extra map[string]string) (string, error) {
	params, err := c.buildParams(method, bizContent, extra)
	if err != nil {
		return "", err
	}

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return c.gatewayURL + "?" + values.Encode(), nil
}

// VerifyNotify checks the signature of an asynchronous notification. The
// signed message is the sorted k=v join of all non-empty form fields except
// sign and sign_type.
func (c *Client) VerifyNotify(form map[string]string) error {
	sign := form["sign"]
	if sign == "" {
		return &provider.InvalidPayloadError{Reason: "notification carries no signature"}
	}

	signType := c.signType
	if st := form["sign_type"]; st != "" {
		signType = provider.SignType(st)
	}

	canonical := provider.CanonicalString(form, "sign", "sign_type")
	return provider.VerifyRSA(signType, c.publicKey, []byte(canonical), sign)
}
