package cmd

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go"

	"ticket-engine/config"
	"ticket-engine/handlers"
	_ "ticket-engine/migrations"
	"ticket-engine/monitoring"
	"ticket-engine/security"
	"ticket-engine/services"
	"ticket-engine/store"
	"ticket-engine/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient, err := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Initialize PubNub when keys are configured
	var pn *pubnub.PubNub
	var notifier services.Notifier = services.NopNotifier{}
	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		pn = pubnub.NewPubNub(pnConfig)
		notifier = services.NewPubNubNotifier(pn)
	}

	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The store binds lazily: PocketBase collections are only reachable once
	// the app has bootstrapped, and the memory backend needs no app at all.
	recordStore, err := store.New(store.Backend(cfg.StoreBackend), app)
	if err != nil {
		return err
	}

	// Initialize services
	ledger := services.NewCapacityService(recordStore)
	promoService := services.NewPromoService(recordStore)
	seatService := services.NewSeatService(redisClient, cfg.SeatHoldTimeout)
	ticketService := services.NewTicketService(recordStore, ledger, promoService, seatService, notifier, cfg.MaxPurchaseQuantity)
	paymentService := services.NewPaymentService(redisClient, pn, recordStore, ticketService, ledger, seatService, promoService, notifier, cfg.PaymentTimeout, cfg.SweepInterval)
	redemptionService := services.NewRedemptionService(recordStore, redisClient, notifier)
	gateService := services.NewGateService(recordStore, redisClient, cfg.GateCodeTTL, cfg.GateSessionTTL)
	limiter := security.NewRateLimiter(redisClient, cfg.ScanRateLimit, cfg.ScanRateWindow)

	// Initialize handlers
	devMode := cfg.Environment == "development"
	purchaseHandler := handlers.NewPurchaseHandler(app, ticketService, paymentService, devMode)
	scanHandler := handlers.NewScanHandler(app, redemptionService, gateService, limiter)
	promoHandler := handlers.NewPromoHandler(app, promoService)
	eventHandler := handlers.NewEventHandler(app, recordStore, ledger, seatService, gateService)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Start background workers
	paymentService.Start()
	defer paymentService.Shutdown()

	if cfg.EnableMetrics {
		monitoring.NewMonitor(redisClient)
		monitoring.StartMetricsServer(cfg.MetricsPort)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Purchase endpoints
		e.Router.POST("/api/v1/purchase", purchaseHandler.Purchase)
		e.Router.POST("/api/v1/purchase/pending", purchaseHandler.CreatePending)
		e.Router.GET("/api/v1/purchase/{purchaseId}", purchaseHandler.GetPending)
		e.Router.POST("/api/v1/purchase/{purchaseId}/cancel", purchaseHandler.CancelPending)

		// Scan endpoints
		e.Router.POST("/api/v1/scan/validate", scanHandler.Validate)
		e.Router.POST("/api/v1/scan/verify-access", scanHandler.VerifyAccess)
		e.Router.GET("/api/v1/scan/stats", scanHandler.Stats)
		e.Router.GET("/api/v1/scan/tally", scanHandler.Tally)

		// Promo endpoints
		e.Router.POST("/api/v1/events/{eventId}/promos", promoHandler.Create)
		e.Router.GET("/api/v1/events/{eventId}/promos", promoHandler.List)
		e.Router.PATCH("/api/v1/promos/{promoId}", promoHandler.SetActive)
		e.Router.DELETE("/api/v1/promos/{promoId}", promoHandler.Delete)

		// Event endpoints
		e.Router.GET("/api/v1/events/{eventId}/availability", eventHandler.Availability)
		e.Router.POST("/api/v1/events/{eventId}/gates", eventHandler.CreateGate)
		e.Router.GET("/api/v1/events/{eventId}/gates", eventHandler.ListGates)
		e.Router.PATCH("/api/v1/gates/{gateId}", eventHandler.SetGateActive)

		// Test endpoint for payment simulation
		if devMode {
			e.Router.POST("/api/v1/test/simulate-payment", purchaseHandler.SimulatePayment)
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		return err
	}
	return nil
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("shutdown signal received, cleaning up")
	cancel()
}
