package invoice

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ishantai95/invoicebot/internal/session"
)

// Invoice is one row of the fixed invoice schema, used by the in-memory
// store.
type Invoice struct {
	InvoiceID       string
	InvoiceNumber   string
	IssueDate       string
	DueDate         string
	Status          string
	Currency        string
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
	CustomerPhone   string
	Items           string
	SubTotal        float64
	Tax             float64
	Discount        float64
	TotalAmount     float64
}

var customerFilterRe = regexp.MustCompile(`"customerName"\s*=\s*'((?:[^']|'')*)'`)

// MemoryStore is a deterministic in-memory Store for tests and keyless
// local runs. Execute does not interpret SQL beyond the customer scoping
// filter: it returns the scoped customer's invoices and rejects unscoped
// queries outright.
type MemoryStore struct {
	mu       sync.RWMutex
	invoices []Invoice
}

func NewMemoryStore(invoices ...Invoice) *MemoryStore {
	return &MemoryStore{invoices: invoices}
}

func (m *MemoryStore) Add(invoices ...Invoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices = append(m.invoices, invoices...)
}

func (m *MemoryStore) CustomerExists(_ context.Context, customerName string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.invoices {
		if inv.CustomerName == customerName {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) CustomerStats(_ context.Context, customerName string) (session.ProfileStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stats session.ProfileStats
	statuses := map[string]struct{}{}
	currencies := map[string]struct{}{}
	for _, inv := range m.invoices {
		if inv.CustomerName != customerName {
			continue
		}
		stats.TotalInvoices++
		stats.TotalAmount += inv.TotalAmount
		if stats.FirstInvoice == "" || inv.IssueDate < stats.FirstInvoice {
			stats.FirstInvoice = inv.IssueDate
		}
		if inv.IssueDate > stats.LastInvoice {
			stats.LastInvoice = inv.IssueDate
		}
		statuses[inv.Status] = struct{}{}
		currencies[inv.Currency] = struct{}{}
	}
	stats.Statuses = joinSorted(statuses)
	stats.Currencies = joinSorted(currencies)
	return stats, nil
}

func (m *MemoryStore) Execute(_ context.Context, query string) (QueryResult, error) {
	match := customerFilterRe.FindStringSubmatch(query)
	if match == nil {
		return QueryResult{}, fmt.Errorf("memory store: query has no customer scope filter: %s", query)
	}
	customerName := strings.ReplaceAll(match[1], "''", "'")

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := QueryResult{SQL: query, Columns: Columns}
	for _, inv := range m.invoices {
		if inv.CustomerName != customerName {
			continue
		}
		result.Rows = append(result.Rows, map[string]any{
			"invoiceId":       inv.InvoiceID,
			"invoiceNumber":   inv.InvoiceNumber,
			"issueDate":       inv.IssueDate,
			"dueDate":         inv.DueDate,
			"status":          inv.Status,
			"currency":        inv.Currency,
			"customerName":    inv.CustomerName,
			"customerEmail":   inv.CustomerEmail,
			"customerAddress": inv.CustomerAddress,
			"customerPhone":   inv.CustomerPhone,
			"items":           inv.Items,
			"subTotal":        inv.SubTotal,
			"tax":             inv.Tax,
			"discount":        inv.Discount,
			"totalAmount":     inv.TotalAmount,
		})
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

func (m *MemoryStore) Close() error { return nil }

func joinSorted(set map[string]struct{}) string {
	if len(set) == 0 {
		return ""
	}
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return strings.Join(values, ", ")
}
