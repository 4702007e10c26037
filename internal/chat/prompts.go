package chat

import "fmt"

// schemaContext is the fixed invoice table description supplied to the
// generation model. The service performs no schema introspection.
const schemaContext = `Table: invoice
Columns: invoiceId (UUID), invoiceNumber, issueDate, dueDate, status,
currency, customerName, customerEmail, customerAddress, customerPhone,
items, subTotal, tax, discount, totalAmount`

const sqlTemplate = `Convert this natural language query to SQL.
Context: %s
Customer: %s

Chat History:
%s

Rules:
1. ALWAYS filter by customerName = '%s'
2. Use proper PostgreSQL syntax with quoted column names
3. Return ONLY the SQL query, no explanations
4. For date operations use PostgreSQL date functions

Query: %s
SQL:`

const responseTemplate = `Format this data as a natural language response to: "%s"

Chat History:
%s

Data: %s

Rules:
1. Be concise and informative
2. Highlight key information
3. Format numbers and dates nicely
4. Max 3-4 sentences
5. Consider the conversation context

Response:`

func renderSQLPrompt(customerName, history, question string) string {
	return fmt.Sprintf(sqlTemplate, schemaContext, customerName, history, customerName, question)
}

func renderResponsePrompt(question, history, data string) string {
	return fmt.Sprintf(responseTemplate, question, history, data)
}
