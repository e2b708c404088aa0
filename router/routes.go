package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/cnpay-go/cnpay/handler"
)

// Routes mounts the payment API routes
func Routes(r chi.Router, paymentHandler *handler.PaymentHandler, configHandler *handler.ConfigHandler) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/gateways", paymentHandler.ListGateways)
		r.Post("/orders", paymentHandler.CreateOrder)
		r.Get("/orders/{gateway}", paymentHandler.QueryOrder)
		r.Post("/orders/{gateway}/{merchantOrderId}/close", paymentHandler.CloseOrder)
		r.Post("/refunds", paymentHandler.Refund)

		r.Post("/config", configHandler.SetConfig)
		r.Delete("/config/{gateway}", configHandler.DeleteConfig)
		r.Get("/config/{gateway}/fields", configHandler.RequiredFields)
	})

	// Callback routes for payment gateways (no auth, ack bodies are part of
	// each platform's wire contract)
	r.Route("/callback", func(r chi.Router) {
		r.Post("/{gateway}", paymentHandler.HandleCallback)
	})
}
