package session

import (
	"strings"
	"sync"
)

// ProfileStats is an aggregate snapshot of a customer's invoice set.
// It is recomputed wholesale on every authentication, never patched
// incrementally. Statuses and Currencies hold the distinct values
// comma-joined, as produced by the stats query.
type ProfileStats struct {
	TotalInvoices int     `json:"total_invoice"`
	TotalAmount   float64 `json:"total_amount"`
	FirstInvoice  string  `json:"first_invoice"`
	LastInvoice   string  `json:"last_invoice"`
	Statuses      string  `json:"statuses"`
	Currencies    string  `json:"currencies"`
}

// FirstCurrency returns the first distinct currency recorded for the
// customer, or the empty string when none is known.
func (p ProfileStats) FirstCurrency() string {
	if p.Currencies == "" {
		return ""
	}
	first, _, _ := strings.Cut(p.Currencies, ",")
	return strings.TrimSpace(first)
}

// HasStatus reports whether any recorded status contains the given
// substring, case-insensitively.
func (p ProfileStats) HasStatus(substr string) bool {
	return strings.Contains(strings.ToLower(p.Statuses), strings.ToLower(substr))
}

// Session is the per-customer conversation state. The customer name never
// changes after creation. State access is guarded by an internal mutex;
// whole turns are serialized separately via LockTurn/UnlockTurn so two
// concurrent requests for the same customer cannot interleave history
// appends.
type Session struct {
	customerName string

	turnMu sync.Mutex

	mu      sync.Mutex
	stats   ProfileStats
	history *Window
}

func newSession(customerName string, window int) *Session {
	return &Session{
		customerName: customerName,
		history:      NewWindow(window),
	}
}

func (s *Session) CustomerName() string { return s.customerName }

// LockTurn serializes an entire conversation turn for this customer.
func (s *Session) LockTurn() { s.turnMu.Lock() }

func (s *Session) UnlockTurn() { s.turnMu.Unlock() }

func (s *Session) Stats() ProfileStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) SetStats(stats ProfileStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = stats
}

func (s *Session) AppendExchange(userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.AppendExchange(userText, assistantText)
}

// History returns a copy of the retained turns in chronological order.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Turns()
}

// RenderHistory formats the retained turns for inclusion in a prompt.
func (s *Session) RenderHistory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Render()
}

// ClearHistory empties the conversation window. Profile stats are retained.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Clear()
}
