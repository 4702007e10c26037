package invoice

import (
	"context"

	"github.com/ishantai95/invoicebot/internal/session"
)

// Columns is the fixed invoice table schema, in column order. Identifiers
// are case-sensitive and must be double-quoted in generated SQL.
var Columns = []string{
	"invoiceId", "invoiceNumber", "issueDate", "dueDate", "status",
	"currency", "customerName", "customerEmail", "customerAddress",
	"customerPhone", "items", "subTotal", "tax", "discount", "totalAmount",
}

// QueryResult is the ephemeral outcome of executing one generated query.
// It is consumed immediately by the response composer and returned to the
// caller; nothing here is persisted.
type QueryResult struct {
	SQL      string
	Columns  []string
	Rows     []map[string]any
	RowCount int
}

// Store is the data access layer over the invoice table.
type Store interface {
	// CustomerExists reports whether at least one invoice exists for the
	// customer name.
	CustomerExists(ctx context.Context, customerName string) (bool, error)
	// CustomerStats recomputes the aggregate profile snapshot for the
	// customer.
	CustomerStats(ctx context.Context, customerName string) (session.ProfileStats, error)
	// Execute runs one generated read query and returns its rows in order.
	Execute(ctx context.Context, sql string) (QueryResult, error)
	Close() error
}
