package chat

import (
	"strings"

	"github.com/ishantai95/invoicebot/internal/session"
)

const maxSuggestions = 6

// recentTopicWindow is how many trailing turns are scanned for topics.
const recentTopicWindow = 4

// Suggestions assembles follow-up prompts from the session's cached
// profile stats and its most recent turns. Assembly order is fixed and the
// result is deterministic for identical inputs; the final list is
// truncated, never re-sorted.
func Suggestions(sess *session.Session) []string {
	stats := sess.Stats()

	currency := stats.FirstCurrency()
	if currency == "" {
		currency = "USD"
	}

	suggestions := []string{
		"Show me all my invoices",
		"What's my total outstanding amount?",
		"Show invoices in " + currency,
	}

	if stats.TotalInvoices > 5 {
		suggestions = append(suggestions, "Show my last 5 invoices")
	}
	if stats.HasStatus("pending") {
		suggestions = append(suggestions, "Show all pending invoices")
	}
	if stats.TotalInvoices > 1 {
		suggestions = append(suggestions,
			"What's my highest invoice amount?",
			"Show invoices from last month",
		)
	}

	if topics := recentTopics(sess.History()); len(topics) > 0 {
		suggestions = append(suggestions, "Tell me more about "+topics[0])
	}

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

// recentTopics scans the trailing turns for user messages mentioning
// invoices by status, deduplicated in scan order.
func recentTopics(history []session.Turn) []string {
	start := len(history) - recentTopicWindow
	if start < 0 {
		start = 0
	}

	var topics []string
	seen := map[string]struct{}{}
	for _, turn := range history[start:] {
		if turn.Role != session.RoleUser {
			continue
		}
		content := strings.ToLower(turn.Content)
		if !strings.Contains(content, "invoice") {
			continue
		}
		var topic string
		switch {
		case strings.Contains(content, "pending"):
			topic = "pending invoices"
		case strings.Contains(content, "paid"):
			topic = "paid invoices"
		default:
			continue
		}
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}
	return topics
}
