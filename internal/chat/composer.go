package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ishantai95/invoicebot/internal/invoice"
	"github.com/ishantai95/invoicebot/internal/llm"
	"github.com/ishantai95/invoicebot/internal/session"
)

// NoDataMessage is returned verbatim for empty result sets, without any
// model call.
const NoDataMessage = "No data found for your query."

// composerRowLimit caps how many rows are serialized into the prompt.
const composerRowLimit = 10

// Composer turns tabular query results plus conversation history into a
// natural-language answer.
type Composer struct {
	provider llm.Provider
}

func NewComposer(provider llm.Provider) *Composer {
	return &Composer{provider: provider}
}

func (c *Composer) Compose(ctx context.Context, result invoice.QueryResult, question string, sess *session.Session) (string, error) {
	if result.RowCount == 0 {
		return NoDataMessage, nil
	}

	rows := result.Rows
	if len(rows) > composerRowLimit {
		rows = rows[:composerRowLimit]
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("serialize result rows: %w", err)
	}

	prompt := renderResponsePrompt(question, sess.RenderHistory(), string(data))
	text, err := c.provider.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate response: %w", err)
	}
	return strings.TrimSpace(text), nil
}
