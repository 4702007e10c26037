package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ishantai95/invoicebot/internal/auth"
	"github.com/ishantai95/invoicebot/internal/chat"
	"github.com/ishantai95/invoicebot/internal/config"
	"github.com/ishantai95/invoicebot/internal/httpapi"
	"github.com/ishantai95/invoicebot/internal/invoice"
	"github.com/ishantai95/invoicebot/internal/llm"
	"github.com/ishantai95/invoicebot/internal/observability"
	"github.com/ishantai95/invoicebot/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := observability.NewLogger(observability.LoggerOptions{
		JSON:    cfg.LogJSON,
		Level:   cfg.LogLevel,
		Service: "invoicebot",
	}, os.Stdout)

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()

	var store invoice.Store
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pg, err := invoice.NewPostgresStore(ctx, invoice.PostgresConfig{
			DSN:          cfg.DatabaseURL,
			QueryTimeout: cfg.QueryTimeout,
		})
		if err != nil {
			logger.Error("postgres store init failed", "error", err)
			os.Exit(1)
		}
		store = pg
		logger.Info("invoice store: postgres")
	} else {
		// No database configured: run against a seeded in-memory store so
		// the whole loop works out of the box.
		store = invoice.NewMemoryStore(demoInvoices()...)
		logger.Info("invoice store: in-memory demo data")
	}
	defer store.Close()

	provider, err := llm.NewProvider(llm.Config{
		Mode:          cfg.LLMProvider,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIModel:   cfg.OpenAIModel,
		Timeout:       cfg.LLMTimeout,
	})
	if err != nil {
		logger.Error("llm provider init failed", "error", err)
		os.Exit(1)
	}
	logger.Info("llm provider selected", "provider", provider.Name())

	validator, err := auth.NewStaticValidator(cfg.BackendAPIKeys)
	if err != nil {
		logger.Error("api key config invalid", "error", err)
		os.Exit(1)
	}
	if validator.Enabled() {
		logger.Info("api key auth enabled")
	} else {
		logger.Warn("api key auth disabled, API is open")
	}

	factory := func(label string) *chat.Service {
		return chat.NewService(store, provider, session.NewManager(cfg.HistoryWindow), metrics, logger.With("tenant", label))
	}

	api := httpapi.New(cfg, validator, factory, metrics, logger)
	defer api.Close()

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		logger.Info("server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen error", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	logger.Info("shutdown complete")
}

func demoInvoices() []invoice.Invoice {
	return []invoice.Invoice{
		{InvoiceID: "d1", InvoiceNumber: "INV-001", IssueDate: "2025-05-02", DueDate: "2025-06-01", Status: "paid", Currency: "EUR", CustomerName: "Acme Corp", CustomerEmail: "billing@acme.example", SubTotal: 480, Tax: 20, TotalAmount: 500},
		{InvoiceID: "d2", InvoiceNumber: "INV-002", IssueDate: "2025-06-15", DueDate: "2025-07-15", Status: "pending", Currency: "EUR", CustomerName: "Acme Corp", CustomerEmail: "billing@acme.example", SubTotal: 240, Tax: 10.50, TotalAmount: 250.50},
		{InvoiceID: "d3", InvoiceNumber: "INV-003", IssueDate: "2025-07-20", DueDate: "2025-08-19", Status: "paid", Currency: "USD", CustomerName: "Acme Corp", CustomerEmail: "billing@acme.example", SubTotal: 900, Tax: 45, TotalAmount: 945},
		{InvoiceID: "d4", InvoiceNumber: "INV-004", IssueDate: "2025-07-28", DueDate: "2025-08-27", Status: "overdue", Currency: "EUR", CustomerName: "Globex", CustomerEmail: "ap@globex.example", SubTotal: 120, Tax: 5, TotalAmount: 125},
	}
}
