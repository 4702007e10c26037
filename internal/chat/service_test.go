package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ishantai95/invoicebot/internal/invoice"
	"github.com/ishantai95/invoicebot/internal/llm"
	"github.com/ishantai95/invoicebot/internal/observability"
	"github.com/ishantai95/invoicebot/internal/session"
)

var metricsSeq atomic.Int64

func newTestMetrics(t *testing.T) *observability.Metrics {
	t.Helper()
	return observability.NewMetrics(fmt.Sprintf("test_chat_%d", metricsSeq.Add(1)))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore wraps the in-memory store with injectable failures and
// scripted query results.
type fakeStore struct {
	*invoice.MemoryStore
	existsErr  error
	statsErr   error
	execErr    error
	execResult *invoice.QueryResult
}

func (f *fakeStore) CustomerExists(ctx context.Context, name string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.MemoryStore.CustomerExists(ctx, name)
}

func (f *fakeStore) CustomerStats(ctx context.Context, name string) (session.ProfileStats, error) {
	if f.statsErr != nil {
		return session.ProfileStats{}, f.statsErr
	}
	return f.MemoryStore.CustomerStats(ctx, name)
}

func (f *fakeStore) Execute(ctx context.Context, sql string) (invoice.QueryResult, error) {
	if f.execErr != nil {
		return invoice.QueryResult{}, f.execErr
	}
	if f.execResult != nil {
		result := *f.execResult
		result.SQL = sql
		return result, nil
	}
	return f.MemoryStore.Execute(ctx, sql)
}

func acmeInvoices() []invoice.Invoice {
	return []invoice.Invoice{
		{InvoiceID: "a1", InvoiceNumber: "INV-001", IssueDate: "2025-06-01", Status: "paid", Currency: "EUR", CustomerName: "Acme Corp", TotalAmount: 500},
		{InvoiceID: "a2", InvoiceNumber: "INV-002", IssueDate: "2025-07-12", Status: "pending", Currency: "EUR", CustomerName: "Acme Corp", TotalAmount: 250.50},
		{InvoiceID: "a3", InvoiceNumber: "INV-003", IssueDate: "2025-08-15", Status: "paid", Currency: "EUR", CustomerName: "Acme Corp", TotalAmount: 500},
	}
}

func newTestService(t *testing.T, store invoice.Store, provider llm.Provider) *Service {
	t.Helper()
	return NewService(store, provider, session.NewManager(10), newTestMetrics(t), discardLogger())
}

func TestAuthenticateUnknownCustomerCreatesNoSession(t *testing.T) {
	svc := newTestService(t, invoice.NewMemoryStore(), llm.NewMockProvider())

	_, err := svc.Authenticate(context.Background(), "Nobody Inc")
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("Authenticate() error = %v, want ErrCustomerNotFound", err)
	}
	if svc.Sessions().ActiveCount() != 0 {
		t.Fatalf("session created for unknown customer")
	}
}

func TestAuthenticateStoreErrorIsNotNotFound(t *testing.T) {
	dbErr := errors.New("connection refused")
	store := &fakeStore{MemoryStore: invoice.NewMemoryStore(), existsErr: dbErr}
	svc := newTestService(t, store, llm.NewMockProvider())

	_, err := svc.Authenticate(context.Background(), "Acme Corp")
	if errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("store error must not map to ErrCustomerNotFound")
	}
	if !errors.Is(err, dbErr) {
		t.Fatalf("Authenticate() error = %v, want wrapped store error", err)
	}
}

func TestAuthenticateRefreshesStats(t *testing.T) {
	store := invoice.NewMemoryStore(acmeInvoices()...)
	svc := newTestService(t, store, llm.NewMockProvider())
	ctx := context.Background()

	sess, err := svc.Authenticate(ctx, "Acme Corp")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if sess.Stats().TotalInvoices != 3 {
		t.Fatalf("TotalInvoices = %d, want 3", sess.Stats().TotalInvoices)
	}

	store.Add(invoice.Invoice{InvoiceID: "a4", IssueDate: "2025-08-20", Status: "pending", Currency: "EUR", CustomerName: "Acme Corp", TotalAmount: 75})
	sess, err = svc.Authenticate(ctx, "Acme Corp")
	if err != nil {
		t.Fatalf("re-Authenticate() error = %v", err)
	}
	if sess.Stats().TotalInvoices != 4 {
		t.Fatalf("stats not recomputed: TotalInvoices = %d, want 4", sess.Stats().TotalInvoices)
	}
	if svc.Sessions().ActiveCount() != 1 {
		t.Fatalf("re-authentication must reuse the session")
	}
}

// End-to-end: authenticated customer with a pending invoice gets the
// pending suggestion.
func TestAuthenticatedCustomerGetsPendingSuggestion(t *testing.T) {
	svc := newTestService(t, invoice.NewMemoryStore(acmeInvoices()...), llm.NewMockProvider())

	if _, err := svc.Authenticate(context.Background(), "Acme Corp"); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	suggestions := svc.SuggestionsFor("Acme Corp")
	found := false
	for _, s := range suggestions {
		if s == "Show all pending invoices" {
			found = true
		}
	}
	if !found {
		t.Fatalf("suggestions = %v, want pending entry", suggestions)
	}
}

func TestHandleTurnSuccess(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.Enqueue("SELECT * FROM invoice")
	provider.Enqueue("You have 3 invoices totaling 1250.50 EUR.")
	svc := newTestService(t, invoice.NewMemoryStore(acmeInvoices()...), provider)

	result, err := svc.HandleTurn(context.Background(), "Acme Corp", "show my invoices")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Response != "You have 3 invoices totaling 1250.50 EUR." {
		t.Fatalf("Response = %q", result.Response)
	}
	if result.RowCount != 3 || len(result.Rows) != 3 {
		t.Fatalf("RowCount = %d, rows = %d; want 3", result.RowCount, len(result.Rows))
	}
	if !strings.Contains(result.SQL, `"customerName" = 'Acme Corp'`) {
		t.Fatalf("SQL = %q, missing scope filter", result.SQL)
	}
	if result.Err != "" {
		t.Fatalf("Err = %q, want empty", result.Err)
	}
	if len(result.Suggestions) == 0 || len(result.Suggestions) > 6 {
		t.Fatalf("suggestions = %v", result.Suggestions)
	}

	history, err := svc.History(context.Background(), "Acme Corp")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Role != session.RoleUser || history[1].Role != session.RoleAssistant {
		t.Fatalf("history = %+v", history)
	}
}

// End-to-end: an empty result set short-circuits to the fixed message and
// never calls the model for composition.
func TestHandleTurnEmptyResult(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.Enqueue(`SELECT * FROM invoice WHERE "customerName" = 'Acme Corp' AND status = 'void'`)
	store := &fakeStore{
		MemoryStore: invoice.NewMemoryStore(acmeInvoices()...),
		execResult:  &invoice.QueryResult{RowCount: 0},
	}
	svc := newTestService(t, store, provider)

	result, err := svc.HandleTurn(context.Background(), "Acme Corp", "show my void invoices")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Response != NoDataMessage {
		t.Fatalf("Response = %q, want %q", result.Response, NoDataMessage)
	}
	if result.RowCount != 0 {
		t.Fatalf("RowCount = %d, want 0", result.RowCount)
	}
	if got := len(provider.Prompts()); got != 1 {
		t.Fatalf("model calls = %d, want 1 (translation only)", got)
	}
}

// End-to-end: a failing query yields the safe message, carries the raw
// detail on the side, and the turn is still recorded.
func TestHandleTurnQueryFailureIsRecovered(t *testing.T) {
	provider := llm.NewMockProvider()
	dbErr := errors.New(`relation "invoice" does not exist`)
	store := &fakeStore{MemoryStore: invoice.NewMemoryStore(acmeInvoices()...), execErr: dbErr}
	svc := newTestService(t, store, provider)

	result, err := svc.HandleTurn(context.Background(), "Acme Corp", "show my invoices")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v, failures must be recovered in-turn", err)
	}
	if result.Response != SafeErrorMessage {
		t.Fatalf("Response = %q, want safe message", result.Response)
	}
	if !strings.Contains(result.Err, dbErr.Error()) {
		t.Fatalf("Err = %q, want raw detail", result.Err)
	}
	if len(result.Suggestions) == 0 {
		t.Fatalf("failed turn should still carry suggestions")
	}

	history, err := svc.History(context.Background(), "Acme Corp")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("failed turn missing from history: %+v", history)
	}
	if history[1].Content != SafeErrorMessage {
		t.Fatalf("assistant turn = %q, want safe message", history[1].Content)
	}
}

func TestHandleTurnGenerationFailureIsRecovered(t *testing.T) {
	provider := llm.NewMockProvider()
	provider.EnqueueError(errors.New("inference backend unreachable"))
	svc := newTestService(t, invoice.NewMemoryStore(acmeInvoices()...), provider)

	result, err := svc.HandleTurn(context.Background(), "Acme Corp", "show my invoices")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v, generation failures must be recovered", err)
	}
	if result.Response != SafeErrorMessage {
		t.Fatalf("Response = %q, want safe message", result.Response)
	}
	if !strings.Contains(result.Err, "unreachable") {
		t.Fatalf("Err = %q, want raw detail", result.Err)
	}
}

func TestHandleTurnUnknownCustomer(t *testing.T) {
	svc := newTestService(t, invoice.NewMemoryStore(), llm.NewMockProvider())

	_, err := svc.HandleTurn(context.Background(), "Nobody Inc", "hello")
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("HandleTurn() error = %v, want ErrCustomerNotFound", err)
	}
}

// End-to-end: consecutive turns about pending then paid invoices produce a
// topic suggestion. The customer has a single paid invoice so the
// conditional entries leave room before the six-item cutoff.
func TestTopicSuggestionAfterTwoTurns(t *testing.T) {
	provider := llm.NewMockProvider()
	store := invoice.NewMemoryStore(invoice.Invoice{
		InvoiceID: "s1", InvoiceNumber: "INV-100", IssueDate: "2025-08-01",
		Status: "paid", Currency: "EUR", CustomerName: "Solo LLC", TotalAmount: 99,
	})
	svc := newTestService(t, store, provider)
	ctx := context.Background()

	if _, err := svc.HandleTurn(ctx, "Solo LLC", "show my pending invoices"); err != nil {
		t.Fatalf("turn 1 error = %v", err)
	}
	result, err := svc.HandleTurn(ctx, "Solo LLC", "now the paid invoices")
	if err != nil {
		t.Fatalf("turn 2 error = %v", err)
	}

	found := false
	for _, s := range result.Suggestions {
		if s == "Tell me more about pending invoices" || s == "Tell me more about paid invoices" {
			found = true
		}
	}
	if !found {
		t.Fatalf("suggestions = %v, want a topic entry", result.Suggestions)
	}
}

func TestHistoryWindowBoundedAcrossTurns(t *testing.T) {
	provider := llm.NewMockProvider()
	svc := newTestService(t, invoice.NewMemoryStore(acmeInvoices()...), provider)
	ctx := context.Background()

	for i := 1; i <= 12; i++ {
		if _, err := svc.HandleTurn(ctx, "Acme Corp", fmt.Sprintf("question %d", i)); err != nil {
			t.Fatalf("turn %d error = %v", i, err)
		}
	}

	history, err := svc.History(ctx, "Acme Corp")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 20 {
		t.Fatalf("history length = %d, want 20", len(history))
	}
	if history[0].Content != "question 3" {
		t.Fatalf("oldest retained = %q, want question 3", history[0].Content)
	}
}

func TestHistoryIdempotent(t *testing.T) {
	provider := llm.NewMockProvider()
	svc := newTestService(t, invoice.NewMemoryStore(acmeInvoices()...), provider)
	ctx := context.Background()

	if _, err := svc.HandleTurn(ctx, "Acme Corp", "show my invoices"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	first, err := svc.History(ctx, "Acme Corp")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	second, err := svc.History(ctx, "Acme Corp")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("History() not idempotent")
	}
}

func TestClearEmptiesHistoryKeepsStats(t *testing.T) {
	provider := llm.NewMockProvider()
	svc := newTestService(t, invoice.NewMemoryStore(acmeInvoices()...), provider)
	ctx := context.Background()

	if _, err := svc.HandleTurn(ctx, "Acme Corp", "show my invoices"); err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	sess, err := svc.Sessions().Get("Acme Corp")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	statsBefore := sess.Stats()

	if err := svc.Clear(ctx, "Acme Corp"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	history, err := svc.History(ctx, "Acme Corp")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("history length after clear = %d, want 0", len(history))
	}
	if sess.Stats() != statsBefore {
		t.Fatalf("stats changed by clear")
	}

	// Idempotent.
	if err := svc.Clear(ctx, "Acme Corp"); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}
}
