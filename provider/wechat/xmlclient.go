package wechat

import (
	"context"
	"encoding/xml"
	"strings"
	"time"

	"github.com/cnpay-go/cnpay/provider"
)

const (
	endpointMicropay   = "/pay/micropay"
	endpointOrderQuery = "/pay/orderquery"
	endpointReverse    = "/secapi/pay/reverse"

	returnSuccess = "SUCCESS"
)

// Params is a flat element map for the legacy XML API.
type Params map[string]string

// encodeXML renders params as a flat <xml> document with CDATA values.
// Element order is not significant on the wire; signing happens over the
// canonical sorted form, not the document.
func encodeXML(p Params) string {
	var sb strings.Builder
	sb.WriteString("<xml>")
	for key, value := range p {
		sb.WriteString("<" + key + "><![CDATA[")
		sb.WriteString(value)
		sb.WriteString("]]></" + key + ">")
	}
	sb.WriteString("</xml>")
	return sb.String()
}

// decodeXML parses a flat <xml> document into a Params map.
func decodeXML(data []byte) (Params, error) {
	params := make(Params)
	decoder := xml.NewDecoder(strings.NewReader(string(data)))

	var current string
	depth := 0
	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := token.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				current = t.Name.Local
			}
		case xml.EndElement:
			depth--
			current = ""
		case xml.CharData:
			if depth == 2 && current != "" {
				params[current] += string(t)
			}
		}
	}
	if len(params) == 0 {
		return nil, &provider.InvalidPayloadError{Reason: "response is not a flat xml document"}
	}
	return params, nil
}

// XMLClient talks to the legacy keyed-hash XML API used by the synchronous
// scan-code flow.
type XMLClient struct {
	appID    string
	mchID    string
	apiKey   string
	hashType provider.HashType
	http     *provider.ProviderHTTPClient
}

// XMLClientConfig carries the credentials for the legacy API client.
type XMLClientConfig struct {
	AppID      string
	MchID      string
	APIKey     string
	HashType   provider.HashType
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

// NewXMLClient builds a legacy API client.
func NewXMLClient(cfg XMLClientConfig) *XMLClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = apiProductionURL
	}
	hashType := cfg.HashType
	if hashType == "" {
		hashType = provider.HashTypeMD5
	}
	return &XMLClient{
		appID:    cfg.AppID,
		mchID:    cfg.MchID,
		apiKey:   cfg.APIKey,
		hashType: hashType,
		http:     provider.NewProviderHTTPClient(httpConfig(baseURL, cfg.Timeout, cfg.RetryCount)),
	}
}

// Post fills the common identity fields, signs the parameter map and sends
// it. The response signature is verified before any field is trusted; a
// communication-level FAIL becomes a GatewayError.
func (c *XMLClient) Post(ctx context.Context, endpoint string, params Params) (Params, error) {
	request := make(Params, len(params)+4)
	for k, v := range params {
		request[k] = v
	}
	request["appid"] = c.appID
	request["mch_id"] = c.mchID
	request["nonce_str"] = provider.NonceString()
	if c.hashType == provider.HashTypeHMACSHA256 {
		request["sign_type"] = "HMAC-SHA256"
	}

	sign, err := provider.SignParams(c.hashType, request, c.apiKey)
	if err != nil {
		return nil, err
	}
	request["sign"] = sign

	resp, err := c.http.SendRaw(ctx, &provider.HTTPRequest{
		Method:   "POST",
		Endpoint: endpoint,
		Headers:  map[string]string{"Content-Type": "text/xml"},
		Body:     encodeXML(request),
	})
	if err != nil {
		return nil, err
	}

	result, err := decodeXML(resp.Body)
	if err != nil {
		return nil, err
	}

	if result["return_code"] != returnSuccess {
		return nil, &provider.GatewayError{
			Gateway: provider.GatewayWechat,
			Code:    result["return_code"],
			Message: result["return_msg"],
		}
	}

	if err := c.verifyResponse(result); err != nil {
		return nil, err
	}
	return result, nil
}

// verifyResponse checks the keyed-hash signature of a response in constant
// time.
func (c *XMLClient) verifyResponse(result Params) error {
	got := result["sign"]
	if got == "" {
		return &provider.VerificationError{Reason: "response carries no signature"}
	}
	want, err := provider.SignParams(c.hashType, result, c.apiKey)
	if err != nil {
		return err
	}
	if !provider.ConstantTimeEquals(got, want) {
		return &provider.VerificationError{Reason: "response signature mismatch"}
	}
	return nil
}

// Micropay submits a customer-presented auth code for immediate charge.
func (c *XMLClient) Micropay(ctx context.Context, params Params) (Params, error) {
	return c.Post(ctx, endpointMicropay, params)
}

// OrderQuery fetches the current state of an order by merchant order id.
func (c *XMLClient) OrderQuery(ctx context.Context, outTradeNo string) (Params, error) {
	return c.Post(ctx, endpointOrderQuery, Params{"out_trade_no": outTradeNo})
}

// Reverse cancels an order whose outcome is unknown. The platform refunds
// the customer if the charge had gone through.
func (c *XMLClient) Reverse(ctx context.Context, outTradeNo string) (Params, error) {
	return c.Post(ctx, endpointReverse, Params{"out_trade_no": outTradeNo})
}
