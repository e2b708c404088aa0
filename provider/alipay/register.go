package alipay

import "github.com/cnpay-go/cnpay/provider"

// Register Alipay provider with the gateway registry
func init() {
	provider.MustRegister("alipay", NewProvider, map[string]string{
		"environment": "production",
		"signType":    "RSA2",
	})
}
