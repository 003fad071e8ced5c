/**
 * @description
 * This is the main entry point for the payment-service. It is responsible for
 * initializing all components of the service, including configuration, database connection,
 * external API clients, message brokers, repositories, the core application service,
 * and the HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/shopspring/decimal: Fee configuration parsing.
 * - internal/api, internal/app, internal/config, internal/metrics, internal/store: Internal packages.
 * - pkg/pushclient, pkg/receiptclient, pkg/rabbitmq: External service clients.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/causewayapp/payment-service/internal/api"
	"github.com/causewayapp/payment-service/internal/app"
	"github.com/causewayapp/payment-service/internal/config"
	"github.com/causewayapp/payment-service/internal/metrics"
	"github.com/causewayapp/payment-service/internal/store"
	"github.com/causewayapp/payment-service/pkg/pushclient"
	cwrabbit "github.com/causewayapp/payment-service/pkg/rabbitmq"
	"github.com/causewayapp/payment-service/pkg/receiptclient"
)

const contentEventsExchange = "causeway.events"

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting payment-service\" port=%s", cfg.ServerPort)

	feeMinimum, err := decimal.NewFromString(cfg.ProcessingFeeMinimumJMD)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"invalid PROCESSING_FEE_MIN_JMD\" value=%q err=%v", cfg.ProcessingFeeMinimumJMD, err)
	}
	feePercent, err := decimal.NewFromString(cfg.ProcessingFeePercent)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"invalid PROCESSING_FEE_PERCENT\" value=%q err=%v", cfg.ProcessingFeePercent, err)
	}

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer for settlement events. Publishing is a
	// secondary effect, so a missing broker degrades to the no-op fallback.
	var producer cwrabbit.Publisher
	rabbitProducer, err := cwrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &cwrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize clients for the receipt and push delivery services.
	receiptClient := receiptclient.NewClient(cfg.ReceiptServiceURL, cfg.ReceiptServiceAPIKey)
	pushClient := pushclient.NewClient(cfg.PushServiceURL, cfg.PushServiceAPIKey)

	var redisClient *redis.Client
	if cfg.ConfirmRateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; confirm rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; confirm rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; confirm rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	metrics.Register()

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application services with their dependencies.
	orchestrator := app.NewOrchestrator(receiptClient, feeMinimum, feePercent)
	engine := app.NewSettlementEngine(repository, orchestrator, producer)
	paymentService := app.NewService(repository, engine)

	// Initialize the API handlers.
	paymentHandlers := api.NewPaymentHandlers(paymentService)
	if redisClient != nil {
		paymentHandlers.SetRateLimiter(
			app.NewConfirmRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
			cfg.ConfirmRateLimitPerMinute,
		)
	}

	router := api.PaymentRoutes(paymentHandlers, cfg.GatewayWebhookSecret)

	// Wire up the content event consumer for notification fan-out.
	notificationService := app.NewNotificationService(repository, pushClient)
	contentConsumer := app.NewContentEventConsumer(notificationService)

	rabbitConsumer, err := cwrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq consumer unavailable; notification fan-out disabled\" err=%v", err)
	} else {
		defer rabbitConsumer.Close()
		if err := rabbitConsumer.Consume(contentEventsExchange, cfg.ContentEventQueue, "content.created", contentConsumer.HandleMessage); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"content consumer start failed\" err=%v", err)
		}
		log.Println("level=info component=bootstrap msg=\"content event consumer started\"")
	}

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
