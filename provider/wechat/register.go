package wechat

import "github.com/cnpay-go/cnpay/provider"

// Register WeChat Pay provider with the gateway registry
func init() {
	provider.MustRegister("wechat", NewProvider, map[string]string{
		"environment": "production",
	})
}
