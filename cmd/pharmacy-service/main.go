package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/curamed/curamed-backend/internal/pharmacy/consumers"
	"github.com/curamed/curamed-backend/internal/pharmacy/events"
	"github.com/curamed/curamed-backend/internal/pharmacy/handler"
	"github.com/curamed/curamed-backend/internal/pharmacy/repository"
	"github.com/curamed/curamed-backend/internal/pharmacy/service"
	"github.com/curamed/curamed-backend/pkg/config"
	"github.com/curamed/curamed-backend/pkg/database"
	"github.com/curamed/curamed-backend/pkg/httputil"
	"github.com/curamed/curamed-backend/pkg/logger"
	"github.com/curamed/curamed-backend/pkg/messaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("pharmacy-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("pharmacy-service", cfg.Server.Environment)
	log.Info().Msg("starting Pharmacy Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewPharmacyEventPublisher(rmq, log.Component("events"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	storeRepo := repository.NewStoreRepository(db)
	itemRepo := repository.NewItemRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	chargeRepo := repository.NewChargeRepository(db)
	requisitionRepo := repository.NewRequisitionRepository(db)
	userCacheRepo := repository.NewUserCacheRepository(db)

	// Initialize services
	stockService := service.NewStockService(db, storeRepo, itemRepo, batchRepo, transactionRepo, publisher, log)
	saleService := service.NewSaleService(db, storeRepo, itemRepo, batchRepo, transactionRepo, saleRepo, chargeRepo, publisher, log)
	requisitionService := service.NewRequisitionService(db, storeRepo, itemRepo, batchRepo, transactionRepo, requisitionRepo, publisher, log)
	catalogService := service.NewCatalogService(itemRepo, storeRepo, log)

	// Initialize handlers
	stockHandler := handler.NewStockHandler(stockService, cfg.Pharmacy.ExpiryWarningDays, log)
	saleHandler := handler.NewSaleHandler(saleService, log)
	requisitionHandler := handler.NewRequisitionHandler(requisitionService, log)
	catalogHandler := handler.NewCatalogHandler(catalogService, log)

	// Start user event consumer
	userConsumer, err := consumers.NewUserEventConsumer(rmq, userCacheRepo, log.Component("user-consumer"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := userConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start user event consumer")
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "http://localhost:3000" || origin == "http://localhost:5173" {
				return true
			}
			// Allow *.curamed.health for production
			return strings.HasSuffix(origin, ".curamed.health")
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-User-ID", "X-User-Email", "X-User-Role"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.ActorMiddleware) // Extract actor identity from headers

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "pharmacy-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/pharmacy", func(r chi.Router) {
		// Stock routes
		r.Route("/stock", func(r chi.Router) {
			r.Get("/", stockHandler.GetStock)
			r.Post("/receipts", stockHandler.Receive)
			r.Get("/expiring", stockHandler.Expiring)
		})

		// Batch routes
		r.Route("/batches", func(r chi.Router) {
			r.Get("/{id}", stockHandler.GetBatch)
			r.Get("/{id}/transactions", stockHandler.BatchTransactions)
		})

		// Sale routes
		r.Route("/sales", func(r chi.Router) {
			r.Post("/", saleHandler.Sell)
			r.Get("/{id}", saleHandler.GetSale)
		})

		// Admission dispensing routes
		r.Route("/admissions/{admissionID}", func(r chi.Router) {
			r.Post("/issues", saleHandler.Issue)
			r.Get("/charges", saleHandler.AdmissionCharges)
		})

		// Requisition routes
		r.Route("/requisitions", func(r chi.Router) {
			r.Get("/", requisitionHandler.List)
			r.Post("/", requisitionHandler.Create)
			r.Get("/{id}", requisitionHandler.Get)
			r.Post("/{id}/fulfill", requisitionHandler.Fulfill)
		})

		// Catalog routes
		r.Route("/items", func(r chi.Router) {
			r.Get("/", catalogHandler.ListItems)
			r.Get("/{id}", catalogHandler.GetItem)
		})
		r.Get("/stores", catalogHandler.ListStores)
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
