// Package cnpay provides a unified payment gateway for the Chinese payment
// ecosystem, abstracting WeChat Pay and Alipay behind a single, standardized
// API. It handles order creation, queries, refunds, asynchronous callbacks,
// and audit logging so your applications only ever speak one protocol.
//
// # Overview
//
// WeChat Pay and Alipay expose very different APIs: WeChat Pay v3 speaks JSON
// with RSA request signing and AES-GCM encrypted callbacks, WeChat Pay v2
// speaks XML with keyed-hash signatures, and Alipay speaks form-encoded
// requests with RSA2 signatures over a canonical parameter string. CNPay
// normalizes all of them into one consistent interface with minor-unit
// amounts, shared trade statuses, and uniform error types.
//
// # Architecture
//
// The payment flow follows this pattern:
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│                 │    │                 │    │                 │
//	│   Your Apps     │◄──►│     CNPay       │◄──►│  WeChat Pay /   │
//	│  (APP1, APP2)   │    │   (Gateway)     │    │     Alipay      │
//	│                 │    │                 │    │                 │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//
// # Supported Gateways
//
// Currently supported payment gateways include:
//   - WeChat Pay: Native QR, JSAPI, H5, and Micropay (scan-code) flows with
//     v3 JSON and v2 XML transports, refunds, order close, and reversal
//   - Alipay: Page, WAP, and QR (precreate) flows with refunds and
//     order close
//
// # Quick Start
//
// Basic usage example:
//
//	package main
//
//	import (
//	    "context"
//
//	    "github.com/cnpay-go/cnpay/provider"
//	    _ "github.com/cnpay-go/cnpay/provider/alipay" // Import to register gateway
//	    _ "github.com/cnpay-go/cnpay/provider/wechat" // Import to register gateway
//	)
//
//	func main() {
//	    // Configure gateways
//	    manager, err := provider.NewPaymentManager(provider.ManagerConfig{
//	        Gateways: map[string]map[string]string{
//	            "wechat": {
//	                "appId":       "your-app-id",
//	                "mchId":       "your-merchant-id",
//	                "serialNo":    "your-certificate-serial",
//	                "privateKey":  "your-merchant-private-key-pem",
//	                "platformKey": "wechat-platform-public-key-pem",
//	                "apiV3Key":    "your-api-v3-key",
//	                "environment": "sandbox", // or "production"
//	            },
//	        },
//	    })
//	    if err != nil {
//	        panic(err)
//	    }
//	    defer manager.Destroy()
//
//	    // Create an order; amounts are in minor units (fen)
//	    resp, err := manager.CreateOrder(context.Background(), "wechat.native", provider.CreateOrderRequest{
//	        MerchantOrderID: "ORDER20260831001",
//	        AmountMinor:     8800,
//	        Subject:         "CNPay demo order",
//	        NotifyURL:       "https://yourapp.com/callback/wechat",
//	    })
//	    if err != nil {
//	        panic(err)
//	    }
//
//	    // Present resp.Presentation.QRCodeURL to the customer
//	    _ = resp
//	}
//
// # HTTP Gateway
//
// The cmd/ binary exposes the same operations over REST:
//   - POST /v1/orders - create an order on any configured gateway
//   - GET /v1/orders/{gateway} - query order state
//   - POST /v1/refunds - refund a captured order
//   - POST /v1/orders/{gateway}/{merchantOrderId}/close - close an unpaid order
//   - POST /callback/{gateway} - receive asynchronous payment notifications
//   - POST /v1/config - configure gateway credentials at runtime
//
// Callback responses are written exactly as each gateway requires, so the
// HTTP layer can be pointed at directly as the notify URL.
//
// # Notifications and Hooks
//
// Asynchronous callbacks are verified, decrypted where required, and mapped
// to a normalized Notification. Register hooks on the manager to react to
// settled payments:
//
//	manager.On(provider.EventSuccess, func(ctx context.Context, n *provider.Notification) error {
//	    // fulfil the order
//	    return nil
//	})
//
// Hook errors are logged but never change the acknowledgment sent back to the
// gateway, which controls whether the gateway retries delivery.
//
// # Security Features
//
//   - RSA-SHA256 request signing and response verification for both gateways
//   - AES-256-GCM callback decryption for WeChat Pay v3
//   - MD5 and HMAC-SHA256 keyed-hash signatures for WeChat Pay v2
//   - Constant-time signature comparison for keyed-hash verification
//   - Credentials validated against per-gateway field schemas before use
//
// # Development and Testing
//
// Both gateways support sandbox environments, selected with the
// "environment" configuration key. Gateway credentials can come from
// environment variables (WECHAT_* / ALIPAY_* prefixes), from the SQLite
// credential store, or from the runtime configuration endpoint.
//
// To add a new payment gateway:
//
//  1. Implement the provider.PaymentProvider interface
//  2. Add the gateway package under provider/{gateway}/
//  3. Register the gateway in provider/{gateway}/register.go
//  4. Add comprehensive tests
package cnpay
