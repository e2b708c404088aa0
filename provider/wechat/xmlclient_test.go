package wechat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cnpay-go/cnpay/provider"
)

const testAPIKey = "192006250b4c09247ec02edce69f6a2d"

func TestEncodeDecodeXML(t *testing.T) {
	params := Params{
		"return_code":  "SUCCESS",
		"out_trade_no": "ORDER001",
		"total_fee":    "100",
	}

	decoded, err := decodeXML([]byte(encodeXML(params)))
	require.NoError(t, err)
	assert.Equal(t, params, decoded)
}

func TestDecodeXML_Invalid(t *testing.T) {
	var payloadErr *provider.InvalidPayloadError
	_, err := decodeXML([]byte("not xml at all"))
	assert.ErrorAs(t, err, &payloadErr)
}

func newXMLTestServer(t *testing.T, respond func(request Params) Params) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		request, err := decodeXML(body)
		require.NoError(t, err)

		response := respond(request)
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(encodeXML(response)))
	}))
}

func signedResponse(t *testing.T, params Params) Params {
	t.Helper()
	sign, err := provider.SignParams(provider.HashTypeMD5, params, testAPIKey)
	require.NoError(t, err)
	params["sign"] = sign
	return params
}

func newTestXMLClient(serverURL string) *XMLClient {
	return NewXMLClient(XMLClientConfig{
		AppID:   "wxd930ea5d5a258f4f",
		MchID:   "10000100",
		APIKey:  testAPIKey,
		BaseURL: serverURL,
	})
}

func TestXMLClient_Post(t *testing.T) {
	var gotRequest Params
	server := newXMLTestServer(t, func(request Params) Params {
		gotRequest = request
		return signedResponse(t, Params{
			"return_code":    "SUCCESS",
			"result_code":    "SUCCESS",
			"transaction_id": "4200001234",
		})
	})
	defer server.Close()

	client := newTestXMLClient(server.URL)
	result, err := client.Micropay(context.Background(), Params{
		"out_trade_no": "ORDER001",
		"auth_code":    "134567890123456789",
	})
	require.NoError(t, err)
	assert.Equal(t, "4200001234", result["transaction_id"])

	// Identity fields and a verifiable signature were filled in.
	assert.Equal(t, "wxd930ea5d5a258f4f", gotRequest["appid"])
	assert.Equal(t, "10000100", gotRequest["mch_id"])
	assert.NotEmpty(t, gotRequest["nonce_str"])
	want, err := provider.SignParams(provider.HashTypeMD5, gotRequest, testAPIKey)
	require.NoError(t, err)
	assert.Equal(t, want, gotRequest["sign"])
}

func TestXMLClient_Post_ReturnFail(t *testing.T) {
	server := newXMLTestServer(t, func(request Params) Params {
		return Params{"return_code": "FAIL", "return_msg": "appid not found"}
	})
	defer server.Close()

	client := newTestXMLClient(server.URL)
	_, err := client.OrderQuery(context.Background(), "ORDER001")

	var gwErr *provider.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "FAIL", gwErr.Code)
	assert.Equal(t, "appid not found", gwErr.Message)
}

func TestXMLClient_Post_BadSignature(t *testing.T) {
	server := newXMLTestServer(t, func(request Params) Params {
		return Params{
			"return_code": "SUCCESS",
			"result_code": "SUCCESS",
			"sign":        "0000000000000000000000000000DEAD",
		}
	})
	defer server.Close()

	client := newTestXMLClient(server.URL)
	_, err := client.OrderQuery(context.Background(), "ORDER001")

	var verifyErr *provider.VerificationError
	assert.ErrorAs(t, err, &verifyErr)
}

func TestXMLClient_Post_MissingSignature(t *testing.T) {
	server := newXMLTestServer(t, func(request Params) Params {
		return Params{"return_code": "SUCCESS", "result_code": "SUCCESS"}
	})
	defer server.Close()

	client := newTestXMLClient(server.URL)
	_, err := client.OrderQuery(context.Background(), "ORDER001")

	var verifyErr *provider.VerificationError
	assert.ErrorAs(t, err, &verifyErr)
}

func TestXMLClient_HMACSHA256SignType(t *testing.T) {
	var gotRequest Params
	server := newXMLTestServer(t, func(request Params) Params {
		gotRequest = request
		params := Params{"return_code": "SUCCESS", "result_code": "SUCCESS"}
		sign, err := provider.SignParams(provider.HashTypeHMACSHA256, params, testAPIKey)
		require.NoError(t, err)
		params["sign"] = sign
		return params
	})
	defer server.Close()

	client := NewXMLClient(XMLClientConfig{
		AppID:    "wxd930ea5d5a258f4f",
		MchID:    "10000100",
		APIKey:   testAPIKey,
		HashType: provider.HashTypeHMACSHA256,
		BaseURL:  server.URL,
	})

	_, err := client.OrderQuery(context.Background(), "ORDER001")
	require.NoError(t, err)
	assert.Equal(t, "HMAC-SHA256", gotRequest["sign_type"])
}
