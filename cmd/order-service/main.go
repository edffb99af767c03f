package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/mealwire/order-service/internal/api"
	"github.com/mealwire/order-service/internal/events"
	"github.com/mealwire/order-service/internal/store"
	"github.com/mealwire/order-service/internal/whatsapp"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	// Database configuration
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "orderservice")
	dbPassword := getEnv("DB_PASSWORD", "orderservice")
	dbName := getEnv("DB_NAME", "orders")

	// Kafka is optional; events are only published when brokers are set.
	kafkaBrokers := getEnv("KAFKA_BROKERS", "")

	// WhatsApp gateway; without a URL messages are logged instead of sent.
	whatsappURL := getEnv("WHATSAPP_API_URL", "")
	whatsappToken := getEnv("WHATSAPP_API_TOKEN", "")

	port := getEnv("ORDER_SERVICE_PORT", "8080")

	// Connect to database
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			logger.Info("Database connection established")
			break
		}
		logger.Info("Waiting for database...")
		time.Sleep(2 * time.Second)
	}

	st := store.NewPostgres(db)
	if err := st.CreateSchema(); err != nil {
		logger.WithError(err).Fatal("Failed to create tables")
	}

	var sender whatsapp.Sender
	if whatsappURL != "" {
		sender = whatsapp.NewClient(whatsappURL, whatsappToken, logger)
		logger.WithField("gateway", whatsappURL).Info("WhatsApp gateway configured")
	} else {
		sender = whatsapp.NewLogSender(logger)
		logger.Warn("No WhatsApp gateway configured, messages will be logged only")
	}

	handler := api.NewHandler(st, sender, logger)

	if kafkaBrokers != "" {
		producer, err := events.NewKafkaProducer(kafkaBrokers, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
		handler.SetEventPublisher(producer)
		logger.WithField("brokers", kafkaBrokers).Info("Kafka producer configured")
	}

	// Create server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		logger.WithField("port", port).Info("Starting order service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
