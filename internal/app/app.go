package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/apperrors"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/clients/inventory"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/clients/notification"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/clients/payment"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/clients/remote"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/postgres"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/rabbitmq"
	outboxrepo "github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/dal/repositories/outbox/postgres"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/metrics"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/otel"
	"github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/service/services/ordersvc"
	httptransport "github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/transport/http"
	outboxworker "github.com/karanjakinyanjui/cloud-native-microservices-system-sub000/internal/worker/outbox"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	orderSvc       *ordersvc.OrderService
	transport      *httptransport.HTTPTransport
	postgresClient *postgres.Client
	rabbitClient   *rabbitmq.Client
	outboxWorker   *outboxworker.Worker
	otelController *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()
	m := metrics.MustNewMetrics()

	postgresClient := postgres.MustNewClient()
	rabbitClient := rabbitmq.MustNewClient()

	exchangeName := viper.GetString("rabbitmq.notifications.exchange")
	if exchangeName == "" {
		exchangeName = "notifications"
	}
	if err := rabbitClient.DeclareExchange(rabbitmq.DeclareExchangeConfig{
		Name:    exchangeName,
		Kind:    "topic",
		Durable: true,
	}); err != nil {
		panic("failed to declare notifications exchange: " + err.Error())
	}

	inventoryClient := inventory.NewClient(
		viper.GetString("clients.inventory.base_url"),
		remote.NewCaller(callerConfig("inventory"), m, apperrors.IsTransient),
	)
	paymentClient := payment.NewClient(
		viper.GetString("clients.payment.base_url"),
		remote.NewCaller(callerConfig("payment"), m, apperrors.IsTransient),
	)

	outboxRepo := outboxrepo.NewPostgresOutboxRepository(postgresClient.Pool())
	notificationClient := notification.NewClient(
		rabbitClient,
		outboxRepo,
		remote.NewCaller(callerConfig("notification"), m, apperrors.IsTransient),
		exchangeName,
		viper.GetInt("rabbitmq.outbox.max_retries"),
	)

	orderSvc := ordersvc.MustNewOrderService(
		ordersvc.WithPostgresClient(postgresClient),
		ordersvc.WithInventoryClient(inventoryClient),
		ordersvc.WithPaymentClient(paymentClient),
		ordersvc.WithNotificationClient(notificationClient),
		ordersvc.WithMetrics(m),
	)

	transport := httptransport.NewHTTPTransport(orderSvc)
	transport.RegisterRoutes()

	return &App{
		orderSvc:       orderSvc,
		transport:      transport,
		postgresClient: postgresClient,
		rabbitClient:   rabbitClient,
		outboxWorker:   outboxworker.NewWorker(outboxRepo, rabbitClient),
		otelController: otelController,
	}
}

// callerConfig reads the retry policy of one downstream service. Each
// service gets its own policy; payment tolerates a longer timeout because
// charges are slow, notification gives up sooner because the outbox
// catches what publishing misses.
func callerConfig(service string) remote.Config {
	prefix := "clients." + service + "."

	maxAttempts := viper.GetInt(prefix + "max_attempts")
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	initialDelayMs := viper.GetInt(prefix + "initial_delay_ms")
	if initialDelayMs == 0 {
		initialDelayMs = 100
	}
	multiplier := viper.GetFloat64(prefix + "backoff_multiplier")
	if multiplier == 0 {
		multiplier = 2
	}
	timeoutMs := viper.GetInt(prefix + "timeout_ms")
	if timeoutMs == 0 {
		timeoutMs = 2000
	}

	return remote.Config{
		Service:           service,
		MaxAttempts:       maxAttempts,
		InitialDelay:      time.Duration(initialDelayMs) * time.Millisecond,
		BackoffMultiplier: multiplier,
		Timeout:           time.Duration(timeoutMs) * time.Millisecond,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	go a.outboxWorker.Start(workerCtx)

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	a.outboxWorker.Stop()
	cancelWorker()

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Tracer shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
