package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	SystemInstruction = "You are a data analyst skilled in writing BigQuery SQL queries."
	userPromptFormat  = "Generate a BigQuery SQL query for: %s"
)

// ErrTransient marks failures worth one more attempt: network errors,
// rate limiting and upstream 5xx responses.
var ErrTransient = errors.New("transient language model failure")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Question string `json:"question"`
}

type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

// BuildMessages returns the fixed system instruction followed by the user's
// question wrapped in the generation prompt.
func BuildMessages(question string) []Message {
	return []Message{
		{Role: "system", Content: SystemInstruction},
		{Role: "user", Content: UserPrompt(question)},
	}
}

func UserPrompt(question string) string {
	return fmt.Sprintf(userPromptFormat, question)
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return trimmed
}
