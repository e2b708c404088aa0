package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/cnpay-go/cnpay/handler"
	"github.com/cnpay-go/cnpay/infra/config"
	"github.com/cnpay-go/cnpay/infra/logger"
	"github.com/cnpay-go/cnpay/infra/opensearch"
	"github.com/cnpay-go/cnpay/infra/response"
	"github.com/cnpay-go/cnpay/provider"
	"github.com/cnpay-go/cnpay/router"

	// Gateway providers self-register on import.
	_ "github.com/cnpay-go/cnpay/provider/alipay"
	_ "github.com/cnpay-go/cnpay/provider/wechat"
)

func init() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

// openSearchAudit adapts the OpenSearch payment logger to the manager's
// audit sink interface.
type openSearchAudit struct {
	logger *opensearch.Logger
}

func (a *openSearchAudit) LogPaymentEvent(ctx context.Context, entry provider.AuditEntry) error {
	return a.logger.LogPaymentEvent(ctx, opensearch.PaymentEvent{
		Gateway:         entry.Gateway,
		Kind:            entry.Kind,
		Method:          entry.Method,
		MerchantOrderID: entry.MerchantOrderID,
		GatewayTradeID:  entry.GatewayTradeID,
		Status:          entry.Status,
		AmountMinor:     entry.AmountMinor,
		Error: opensearch.ErrorInfo{
			Code:    entry.ErrorCode,
			Message: entry.ErrorMessage,
		},
		ProcessingMs: entry.ElapsedMs,
	})
}

func main() {
	appConfig := config.GetAppConfig()

	var osLogger *opensearch.Logger
	if appConfig.EnableLogging {
		osClient, err := opensearch.NewClient(appConfig)
		if err != nil {
			log.Printf("Warning: OpenSearch unavailable, audit logging disabled: %v", err)
		} else {
			osLogger = opensearch.NewLogger(osClient)
		}
	}
	logger.InitGlobalLogger(osLogger)

	storage, err := config.NewSQLiteStorage(appConfig.ConfigDBPath)
	if err != nil {
		logger.Fatal("Failed to open config storage", err, logger.LogContext{
			Fields: map[string]any{"path": appConfig.ConfigDBPath},
		})
	}
	defer storage.Close()

	providerConfig := config.NewProviderConfig(storage)
	providerConfig.LoadFromEnv()
	if err := providerConfig.LoadFromStorage(); err != nil {
		logger.Warn("Failed to load persisted gateway configs", logger.LogContext{
			Fields: map[string]any{"error": err.Error()},
		})
	}

	managerOpts := []provider.ManagerOption{}
	if osLogger != nil {
		managerOpts = append(managerOpts, provider.WithAuditLogger(&openSearchAudit{logger: osLogger}))
	}

	manager, err := provider.NewPaymentManager(provider.ManagerConfig{
		Gateways: providerConfig.GatewayConfigs(),
	}, managerOpts...)
	if err != nil {
		logger.Fatal("Failed to initialize payment gateways", err)
	}
	defer manager.Destroy()

	logger.Info("Payment gateways initialized", logger.LogContext{
		Fields: map[string]any{"gateways": manager.Gateways()},
	})

	validate := config.App().Validator
	paymentHandler := handler.NewPaymentHandler(manager, validate)
	configHandler := handler.NewConfigHandler(manager, providerConfig, validate)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.Success(w, http.StatusOK, "healthy", map[string]any{
			"gateways": manager.Gateways(),
		})
	})

	router.Routes(r, paymentHandler, configHandler)

	server := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Server starting", logger.LogContext{
			Fields: map[string]any{"port": appConfig.Port},
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", err)
	}
}
