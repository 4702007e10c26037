package chat

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ishantai95/invoicebot/internal/llm"
	"github.com/ishantai95/invoicebot/internal/session"
)

// ErrUnsafeQuery marks generated SQL rejected before execution.
var ErrUnsafeQuery = errors.New("generated query is not a single read-only statement")

var (
	fenceRe     = regexp.MustCompile("(?i)```sql|```")
	whereRe     = regexp.MustCompile(`(?i)\bWHERE\b`)
	fromTableRe = regexp.MustCompile(`(?i)(FROM\s+invoice\b)`)
)

// Translator turns a natural-language question plus conversation history
// into a customer-scoped SQL statement.
type Translator struct {
	provider llm.Provider
}

func NewTranslator(provider llm.Provider) *Translator {
	return &Translator{provider: provider}
}

// Translate invokes the generation model and post-processes its output.
// Post-processing is part of the contract: the model is instructed to
// scope by customer, but is not trusted to obey. The scoping filter is
// enforced unconditionally before the SQL is returned.
func (t *Translator) Translate(ctx context.Context, question string, sess *session.Session) (string, error) {
	prompt := renderSQLPrompt(sess.CustomerName(), sess.RenderHistory(), question)

	raw, err := t.provider.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}

	sql := stripSQLFences(raw)
	sql = enforceCustomerScope(sql, sess.CustomerName())
	if err := guardStatement(sql); err != nil {
		return "", err
	}
	return sql, nil
}

func stripSQLFences(raw string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
}

// enforceCustomerScope injects the customer filter when the model omitted
// it. The presence check is textual, not semantic: SQL that merely mentions
// the column anywhere passes. A security boundary with a known blind spot,
// kept deliberately close to the upstream behavior; the statement guard
// below narrows the blast radius.
func enforceCustomerScope(sql, customerName string) string {
	if strings.Contains(sql, "customerName") {
		return sql
	}

	escaped := strings.ReplaceAll(customerName, "'", "''")
	filter := `"customerName" = '` + escaped + `'`

	if loc := whereRe.FindStringIndex(sql); loc != nil {
		return sql[:loc[1]] + " " + filter + " AND" + sql[loc[1]:]
	}
	if fromTableRe.MatchString(sql) {
		return fromTableRe.ReplaceAllString(sql, "$1 WHERE "+filter)
	}
	// No recognizable table reference: still refuse to emit unscoped SQL.
	return sql + " WHERE " + filter
}

// guardStatement rejects anything but a single read-only statement.
func guardStatement(sql string) error {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(sql), ";"))
	if trimmed == "" {
		return fmt.Errorf("%w: empty statement", ErrUnsafeQuery)
	}
	if strings.Contains(trimmed, ";") {
		return fmt.Errorf("%w: multiple statements", ErrUnsafeQuery)
	}
	first := strings.ToUpper(firstWord(trimmed))
	if first != "SELECT" && first != "WITH" {
		return fmt.Errorf("%w: statement starts with %s", ErrUnsafeQuery, first)
	}
	return nil
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
