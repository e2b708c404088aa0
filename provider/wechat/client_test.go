package wechat

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnpay-go/cnpay/provider"
)

func generateKeyPEM(t *testing.T) (privatePEM, publicPEM string, key *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePEM = string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}))
	return privatePEM, publicPEM, key
}

var authorizationRe = regexp.MustCompile(
	`^WECHATPAY2-SHA256-RSA2048 mchid="([^"]+)",nonce_str="([^"]+)",signature="([^"]+)",timestamp="(\d+)",serial_no="([^"]+)"$`)

func TestClient_Do_AuthorizationHeader(t *testing.T) {
	privatePEM, publicPEM, _ := generateKeyPEM(t)
	merchantPublicKey, err := provider.ParseRSAPublicKey(publicPEM)
	require.NoError(t, err)

	var gotAuth string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code_url":"weixin://wxpay/bizpayurl?pr=abc"}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		AppID:         "wxd930ea5d5a258f4f",
		MchID:         "10000100",
		SerialNo:      "SERIAL001",
		PrivateKeyPEM: privatePEM,
		BaseURL:       server.URL,
	})
	require.NoError(t, err)

	result, err := client.Do(context.Background(), "POST", "/v3/pay/transactions/native", map[string]any{
		"out_trade_no": "ORDER001",
	})
	require.NoError(t, err)
	assert.Equal(t, "weixin://wxpay/bizpayurl?pr=abc", result["code_url"])

	matches := authorizationRe.FindStringSubmatch(gotAuth)
	require.NotNil(t, matches, "authorization header has unexpected shape: %s", gotAuth)
	assert.Equal(t, "10000100", matches[1])
	assert.Equal(t, "SERIAL001", matches[5])

	// The header signature verifies over METHOD\nPATH\nTIMESTAMP\nNONCE\nBODY\n.
	message := "POST\n/v3/pay/transactions/native\n" + matches[4] + "\n" + matches[2] + "\n" + string(gotBody) + "\n"
	assert.NoError(t, provider.VerifyRSA(provider.SignTypeRSA2, merchantPublicKey, []byte(message), matches[3]))
}

func TestClient_Do_PlatformError(t *testing.T) {
	privatePEM, _, _ := generateKeyPEM(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"PARAM_ERROR","message":"amount invalid"}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		AppID:         "wxd930ea5d5a258f4f",
		MchID:         "10000100",
		SerialNo:      "SERIAL001",
		PrivateKeyPEM: privatePEM,
		BaseURL:       server.URL,
	})
	require.NoError(t, err)

	_, err = client.Do(context.Background(), "POST", "/v3/pay/transactions/native", map[string]any{})

	var gwErr *provider.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "PARAM_ERROR", gwErr.Code)
	assert.Equal(t, "amount invalid", gwErr.Message)
	assert.Equal(t, http.StatusBadRequest, gwErr.HTTPStatus)
}

func TestClient_Do_EmptyResponse(t *testing.T) {
	privatePEM, _, _ := generateKeyPEM(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		AppID:         "wxd930ea5d5a258f4f",
		MchID:         "10000100",
		SerialNo:      "SERIAL001",
		PrivateKeyPEM: privatePEM,
		BaseURL:       server.URL,
	})
	require.NoError(t, err)

	result, err := client.Do(context.Background(), "POST", "/v3/pay/transactions/out-trade-no/ORDER001/close", map[string]any{"mchid": "10000100"})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestNewClient_BadKeyMaterial(t *testing.T) {
	var keyErr *provider.KeyError
	_, err := NewClient(ClientConfig{PrivateKeyPEM: "garbage"})
	assert.ErrorAs(t, err, &keyErr)

	privatePEM, _, _ := generateKeyPEM(t)
	var configErr *provider.ConfigError
	_, err = NewClient(ClientConfig{PrivateKeyPEM: privatePEM, APIV3Key: "too-short"})
	assert.ErrorAs(t, err, &configErr)
}

func TestClient_VerifyCallback(t *testing.T) {
	_, platformPubPEM, platformKey := generateKeyPEM(t)
	merchantPrivPEM, _, _ := generateKeyPEM(t)

	client, err := NewClient(ClientConfig{
		AppID:             "wxd930ea5d5a258f4f",
		MchID:             "10000100",
		SerialNo:          "SERIAL001",
		PrivateKeyPEM:     merchantPrivPEM,
		PlatformPublicPEM: platformPubPEM,
	})
	require.NoError(t, err)

	body := []byte(`{"id":"evt-1","resource":{}}`)
	timestamp := "1700000000"
	nonce := "abcdef"
	message := timestamp + "\n" + nonce + "\n" + string(body) + "\n"
	signature, err := provider.SignRSA(provider.SignTypeRSA2, platformKey, []byte(message))
	require.NoError(t, err)

	headers := map[string]string{
		headerTimestamp: timestamp,
		headerNonce:     nonce,
		headerSignature: signature,
	}
	assert.NoError(t, client.VerifyCallback(headers, body))

	// Tampered body fails verification.
	var verifyErr *provider.VerificationError
	err = client.VerifyCallback(headers, []byte(`{"id":"evt-2"}`))
	assert.ErrorAs(t, err, &verifyErr)

	// Missing headers are a payload problem, not a signature mismatch.
	var payloadErr *provider.InvalidPayloadError
	err = client.VerifyCallback(map[string]string{headerTimestamp: timestamp}, body)
	assert.ErrorAs(t, err, &payloadErr)
}

func TestClient_DecryptResource(t *testing.T) {
	privatePEM, _, _ := generateKeyPEM(t)
	apiV3Key := "0123456789abcdef0123456789abcdef"

	client, err := NewClient(ClientConfig{
		AppID:         "wxd930ea5d5a258f4f",
		MchID:         "10000100",
		SerialNo:      "SERIAL001",
		PrivateKeyPEM: privatePEM,
		APIV3Key:      apiV3Key,
	})
	require.NoError(t, err)

	plaintext := map[string]any{"out_trade_no": "ORDER001", "trade_state": "SUCCESS"}
	data, err := json.Marshal(plaintext)
	require.NoError(t, err)
	ciphertext := encryptResource(t, []byte(apiV3Key), "abcdef123456", "transaction", data)

	decrypted, err := client.DecryptResource("abcdef123456", "transaction", ciphertext)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(decrypted))
}
