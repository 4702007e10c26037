package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ishantai95/invoicebot/internal/invoice"
	"github.com/ishantai95/invoicebot/internal/llm"
	"github.com/ishantai95/invoicebot/internal/observability"
	"github.com/ishantai95/invoicebot/internal/session"
)

// ErrCustomerNotFound reports an authentication attempt for a customer
// name with no invoices.
var ErrCustomerNotFound = errors.New("customer not found")

// SafeErrorMessage is the user-facing text for any failed turn. Raw error
// detail never reaches the response text.
const SafeErrorMessage = "I couldn't process that query. Please try rephrasing."

// TurnResult is the outcome of one conversation turn.
type TurnResult struct {
	Response    string           `json:"response"`
	SQL         string           `json:"sql,omitempty"`
	RowCount    int              `json:"row_count,omitempty"`
	Rows        []map[string]any `json:"data,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
	Err         string           `json:"error,omitempty"`
}

// Service orchestrates a conversation turn end to end: authenticate,
// translate, execute, compose, persist the turn, suggest follow-ups.
type Service struct {
	store      invoice.Store
	provider   llm.Provider
	translator *Translator
	composer   *Composer
	sessions   *session.Manager
	metrics    *observability.Metrics
	logger     *slog.Logger
}

func NewService(store invoice.Store, provider llm.Provider, sessions *session.Manager, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		provider:   provider,
		translator: NewTranslator(provider),
		composer:   NewComposer(provider),
		sessions:   sessions,
		metrics:    metrics,
		logger:     logger,
	}
}

// Authenticate checks that the customer has at least one invoice, then
// creates the session on first use and recomputes its profile stats.
// Store errors propagate as hard failures, never as "not found".
func (s *Service) Authenticate(ctx context.Context, customerName string) (*session.Session, error) {
	start := time.Now()
	exists, err := s.store.CustomerExists(ctx, customerName)
	s.metrics.ObserveStoreLatency("customer_exists", time.Since(start))
	if err != nil {
		s.metrics.AuthAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("authenticate %q: %w", customerName, err)
	}
	if !exists {
		s.metrics.AuthAttempts.WithLabelValues("not_found").Inc()
		return nil, ErrCustomerNotFound
	}

	start = time.Now()
	stats, err := s.store.CustomerStats(ctx, customerName)
	s.metrics.ObserveStoreLatency("customer_stats", time.Since(start))
	if err != nil {
		s.metrics.AuthAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load stats for %q: %w", customerName, err)
	}

	sess, created := s.sessions.Resolve(customerName)
	sess.SetStats(stats)
	if created {
		s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	}
	s.metrics.AuthAttempts.WithLabelValues("success").Inc()
	s.logger.InfoContext(ctx, "customer authenticated",
		slog.String("customer", customerName),
		slog.Bool("new_session", created),
		slog.Int("invoices", stats.TotalInvoices),
	)
	return sess, nil
}

// resolveSession returns the live session for the customer,
// authenticating first when none exists yet.
func (s *Service) resolveSession(ctx context.Context, customerName string) (*session.Session, error) {
	if sess, err := s.sessions.Get(customerName); err == nil {
		return sess, nil
	}
	return s.Authenticate(ctx, customerName)
}

// HandleTurn processes one conversation turn. Authentication failures
// return an error and leave every session untouched; translation,
// execution, and composition failures are recovered into a safe response
// that is still recorded in history.
func (s *Service) HandleTurn(ctx context.Context, customerName, message string) (TurnResult, error) {
	sess, err := s.resolveSession(ctx, customerName)
	if err != nil {
		return TurnResult{}, err
	}

	// One in-flight turn per customer; holding the turn lock for the whole
	// pipeline keeps history appends from interleaving.
	sess.LockTurn()
	defer sess.UnlockTurn()

	start := time.Now()
	sql, err := s.translator.Translate(ctx, message, sess)
	s.metrics.ObserveLLMLatency(s.provider.Name(), "translate", time.Since(start))
	if err != nil {
		return s.failTurn(ctx, sess, message, "", err), nil
	}

	start = time.Now()
	result, err := s.store.Execute(ctx, sql)
	s.metrics.ObserveStoreLatency("execute", time.Since(start))
	if err != nil {
		return s.failTurn(ctx, sess, message, sql, err), nil
	}

	start = time.Now()
	response, err := s.composer.Compose(ctx, result, message, sess)
	s.metrics.ObserveLLMLatency(s.provider.Name(), "compose", time.Since(start))
	if err != nil {
		return s.failTurn(ctx, sess, message, sql, err), nil
	}

	sess.AppendExchange(message, response)
	s.metrics.ChatTurns.WithLabelValues("success").Inc()
	s.logger.InfoContext(ctx, "chat turn completed",
		slog.String("customer", sess.CustomerName()),
		slog.Int("row_count", result.RowCount),
	)

	return TurnResult{
		Response:    response,
		SQL:         sql,
		RowCount:    result.RowCount,
		Rows:        result.Rows,
		Suggestions: Suggestions(sess),
	}, nil
}

// failTurn recovers a failed turn: the caller gets the fixed safe message
// with the raw detail on the side, and the turn is still recorded.
func (s *Service) failTurn(ctx context.Context, sess *session.Session, message, sql string, cause error) TurnResult {
	sess.AppendExchange(message, SafeErrorMessage)
	s.metrics.ChatTurns.WithLabelValues("error").Inc()
	s.logger.WarnContext(ctx, "chat turn failed",
		slog.String("customer", sess.CustomerName()),
		slog.String("error", cause.Error()),
	)
	return TurnResult{
		Response:    SafeErrorMessage,
		SQL:         sql,
		Err:         cause.Error(),
		Suggestions: Suggestions(sess),
	}
}

// History replays the session's retained turns in original order,
// authenticating the customer first when needed.
func (s *Service) History(ctx context.Context, customerName string) ([]session.Turn, error) {
	sess, err := s.resolveSession(ctx, customerName)
	if err != nil {
		return nil, err
	}
	return sess.History(), nil
}

// Clear empties the customer's conversation history. Profile stats are
// retained. Idempotent.
func (s *Service) Clear(ctx context.Context, customerName string) error {
	sess, err := s.resolveSession(ctx, customerName)
	if err != nil {
		return err
	}
	sess.ClearHistory()
	return nil
}

// SuggestionsFor exposes suggestion assembly for an authenticated session.
func (s *Service) SuggestionsFor(customerName string) []string {
	sess, err := s.sessions.Get(customerName)
	if err != nil {
		return nil
	}
	return Suggestions(sess)
}

// Sessions exposes the registry for transport-level metrics.
func (s *Service) Sessions() *session.Manager { return s.sessions }

// Close releases the underlying store.
func (s *Service) Close() error { return s.store.Close() }
