// Package provider defines the unified payment gateway abstraction: the
// PaymentProvider interface, the provider registry, the PaymentManager
// routing layer with notification hooks, shared HTTP plumbing and the
// cryptographic primitives the gateway implementations are built on.
//
// Gateway implementations live in subpackages (wechat, alipay) and register
// themselves with the default registry via package side effects:
//
//	import (
//	    _ "github.com/cnpay-go/cnpay/provider/alipay"
//	    _ "github.com/cnpay-go/cnpay/provider/wechat"
//	)
package provider
