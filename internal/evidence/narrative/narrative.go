// Package narrative produces the optional analyst narrative attached to a dossier.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

var defaultModels = []string{"gpt-4o-mini", "gpt-4.1-mini"}

var errEmptyResponse = errors.New("model returned an empty response")

var systemMessage = openai.ChatCompletionMessage{
	Role:    openai.ChatMessageRoleSystem,
	Content: "You are a compliance analyst reviewing a know-your-customer dossier. Answer in plain text.",
}

// Subject is what the narrator is told about a screened document.
type Subject struct {
	Document           string
	DocumentType       string
	EntityName         string
	RegistrationStatus string
	RiskLevel          string
	TotalSanctions     int
}

// OpenAI asks each configured model in order until one answers.
type OpenAI struct {
	client *openai.Client
	models []string
	logger *slog.Logger
}

// NewOpenAI returns nil when apiKey is empty; callers treat a nil narrator as not configured.
func NewOpenAI(apiKey, baseURL string, models []string, timeout time.Duration, logger *slog.Logger) *OpenAI {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: timeout}
	}
	if len(models) == 0 {
		models = defaultModels
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		models: models,
		logger: logger,
	}
}

// Narrate returns the first non-empty answer. When every model fails, the last
// failure is returned.
func (n *OpenAI) Narrate(ctx context.Context, s Subject) (string, error) {
	messages := []openai.ChatCompletionMessage{
		systemMessage,
		{Role: openai.ChatMessageRoleUser, Content: Prompt(s)},
	}

	var lastErr error
	for _, model := range n.models {
		text, err := n.complete(ctx, model, messages)
		if err == nil {
			return text, nil
		}
		lastErr = err
		n.logger.WarnContext(ctx, "narrative model failed", "model", model, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (n *OpenAI) complete(ctx context.Context, model string, messages []openai.ChatCompletionMessage) (string, error) {
	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}

// Prompt renders the analyst brief for s.
func Prompt(s Subject) string {
	name := s.EntityName
	if name == "" {
		name = strings.TrimSpace(s.DocumentType + " " + s.Document)
	}
	status := s.RegistrationStatus
	if status == "" {
		status = "N/A"
	}
	risk := s.RiskLevel
	if risk == "" {
		risk = "UNKNOWN"
	}

	var b strings.Builder
	b.WriteString("Write a short (4-6 lines), objective compliance analysis.\n")
	fmt.Fprintf(&b, "Document: %s (%s)\n", s.Document, s.DocumentType)
	fmt.Fprintf(&b, "Entity: %s\n", name)
	fmt.Fprintf(&b, "Registration status: %s\n", status)
	fmt.Fprintf(&b, "Computed risk level: %s\n", risk)
	fmt.Fprintf(&b, "Total sanctions found: %d\n", s.TotalSanctions)
	b.WriteString("End with a simple recommendation (Approve / Review / Reject) based on the data.\n")
	return b.String()
}
