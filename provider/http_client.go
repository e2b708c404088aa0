package provider

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClientConfig represents configuration for HTTP client
type HTTPClientConfig struct {
	BaseURL            string
	Timeout            time.Duration
	RetryCount         int // extra attempts after a transport-level failure
	InsecureSkipVerify bool
	DefaultHeaders     map[string]string
}

// HTTPRequest represents a standardized HTTP request
type HTTPRequest struct {
	Method      string
	Endpoint    string
	Headers     map[string]string
	Body        any
	FormData    map[string]string
	QueryParams map[string]string
}

// HTTPResponse represents a standardized HTTP response
type HTTPResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	RawBody    string
}

// ProviderHTTPClient provides standardized HTTP operations for payment providers
type ProviderHTTPClient struct {
	config *HTTPClientConfig
	client *http.Client
}

// NewProviderHTTPClient creates a new provider HTTP client
func NewProviderHTTPClient(config *HTTPClientConfig) *ProviderHTTPClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
	}

	client := &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}

	return &ProviderHTTPClient{
		config: config,
		client: client,
	}
}

// SendJSON sends a JSON request and returns the response
func (c *ProviderHTTPClient) SendJSON(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	return c.sendRequest(ctx, req, "application/json")
}

// SendForm sends a form-encoded request and returns the response
func (c *ProviderHTTPClient) SendForm(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	return c.sendRequest(ctx, req, "application/x-www-form-urlencoded")
}

// SendRaw sends a request with caller-controlled Content-Type and returns
// the response. The body must be a string or []byte.
func (c *ProviderHTTPClient) SendRaw(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error) {
	return c.sendRequest(ctx, req, "")
}

// sendRequest is the internal method that handles all HTTP requests.
// Transport-level failures are retried up to RetryCount extra attempts; a
// response from the gateway is never retried. Non-2xx statuses return the
// response alongside a NetworkError so callers can still parse a structured
// gateway error out of the body.
func (c *ProviderHTTPClient) sendRequest(ctx context.Context, req *HTTPRequest, contentType string) (*HTTPResponse, error) {
	fullURL := c.buildURL(req.Endpoint, req.QueryParams)

	var bodyBytes []byte
	switch {
	case contentType == "application/x-www-form-urlencoded":
		if len(req.FormData) > 0 {
			formData := url.Values{}
			for key, value := range req.FormData {
				formData.Set(key, value)
			}
			bodyBytes = []byte(formData.Encode())
		} else if rawBody, ok := req.Body.(string); ok {
			bodyBytes = []byte(rawBody)
		}
	case contentType == "application/json" && req.Body != nil:
		jsonData, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON body: %w", err)
		}
		bodyBytes = jsonData
	case req.Body != nil:
		if rawBody, ok := req.Body.(string); ok {
			bodyBytes = []byte(rawBody)
		} else if rawBody, ok := req.Body.([]byte); ok {
			bodyBytes = rawBody
		}
	}

	attempts := c.config.RetryCount + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP request: %w", err)
		}

		for key, value := range c.config.DefaultHeaders {
			httpReq.Header.Set(key, value)
		}
		for key, value := range req.Headers {
			httpReq.Header.Set(key, value)
		}
		if contentType != "" {
			httpReq.Header.Set("Content-Type", contentType)
		}

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = &NetworkError{Err: err}
			if ctx.Err() != nil {
				break
			}
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = &NetworkError{Err: fmt.Errorf("failed to read response body: %w", err)}
			if ctx.Err() != nil {
				break
			}
			continue
		}

		response := &HTTPResponse{
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
			Body:       respBody,
			RawBody:    string(respBody),
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return response, &NetworkError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		return response, nil
	}

	return nil, lastErr
}

func joinURL(base, endpoint string) string {
	if strings.HasSuffix(base, "/") && strings.HasPrefix(endpoint, "/") {
		return base + endpoint[1:]
	}
	if !strings.HasSuffix(base, "/") && !strings.HasPrefix(endpoint, "/") {
		return base + "/" + endpoint
	}
	return base + endpoint
}

// buildURL constructs the full URL with query parameters
func (c *ProviderHTTPClient) buildURL(endpoint string, queryParams map[string]string) string {
	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return endpoint
		}

		if len(queryParams) > 0 {
			q := u.Query()
			for key, value := range queryParams {
				q.Set(key, value)
			}
			u.RawQuery = q.Encode()
		}

		return u.String()
	}

	fullURL := joinURL(c.config.BaseURL, endpoint)

	if len(queryParams) > 0 {
		u, err := url.Parse(fullURL)
		if err != nil {
			return fullURL
		}

		q := u.Query()
		for key, value := range queryParams {
			q.Set(key, value)
		}
		u.RawQuery = q.Encode()
		return u.String()
	}

	return fullURL
}

// ParseJSONResponse parses the response body as JSON into the target interface
func (c *ProviderHTTPClient) ParseJSONResponse(response *HTTPResponse, target any) error {
	return json.Unmarshal(response.Body, target)
}

// CreateHTTPClientConfig creates a standard HTTP client configuration for providers
func CreateHTTPClientConfig(baseURL string, isProduction bool, timeout time.Duration) *HTTPClientConfig {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPClientConfig{
		BaseURL:            baseURL,
		Timeout:            timeout,
		InsecureSkipVerify: !isProduction, // skip TLS verification in sandbox only
		DefaultHeaders: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "cnpay/1.0",
		},
	}
}
