// Package genai provides GenAI-backed intake operations using the OpenAI API.
//
// It wraps chat completions for category prediction, autocomplete and
// summary generation. The prompts are thin pass-throughs; no model logic
// lives here.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// MaxSuggestions caps the number of autocomplete options returned.
const MaxSuggestions = 5

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey       string
	BaseURL      string
	Model        string
	SummaryModel string
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey overrides the OPENAI_API_KEY environment variable.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel sets the chat model for interactive operations.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithSummaryModel sets the model used for summary generation. Defaults to
// the interactive model.
func WithSummaryModel(model string) Option {
	return func(o *Opts) { o.SummaryModel = model }
}

// ClientInterface defines the GenAI operations the intake engine depends on.
type ClientInterface interface {
	PredictCategory(ctx context.Context, complaint string, categories []string) (string, error)
	PredictNextCategory(ctx context.Context, contextText string, remaining []string) (string, error)
	Autocomplete(ctx context.Context, query, question, contextText string, conditional bool) ([]string, error)
	Summarize(ctx context.Context, contextText string) (string, error)
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	client       openai.Client
	model        string
	summaryModel string
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = cfg.Model
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	slog.Debug("GenAI client initialized", "model", cfg.Model, "summary_model", cfg.SummaryModel, "base_url_set", cfg.BaseURL != "")
	return &Client{
		client:       openai.NewClient(reqOpts...),
		model:        cfg.Model,
		summaryModel: cfg.SummaryModel,
	}, nil
}

// complete runs a single system+user chat completion and returns the trimmed
// message content.
func (c *Client) complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(temperature),
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(maxTokens)
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// PredictCategory asks the model for the best matching category for a
// complaint and returns the first category contained in the reply, empty
// when nothing matches.
func (c *Client) PredictCategory(ctx context.Context, complaint string, categories []string) (string, error) {
	if strings.TrimSpace(complaint) == "" || len(categories) == 0 {
		return "", nil
	}
	systemPrompt := "You are a medical expert. Provide the best match from the list of categories."
	userPrompt := fmt.Sprintf("Complaint: %s\nCategories: %s\nWhich category is most relevant?", complaint, strings.Join(categories, ", "))

	reply, err := c.complete(ctx, c.model, systemPrompt, userPrompt, 0, 0)
	if err != nil {
		return "", fmt.Errorf("failed to predict category: %w", err)
	}
	return matchCategory(reply, categories), nil
}

// PredictNextCategory asks the model for the next category to explore among
// the remaining ones.
func (c *Client) PredictNextCategory(ctx context.Context, contextText string, remaining []string) (string, error) {
	if len(remaining) == 0 {
		return "", nil
	}
	systemPrompt := "You are a medical assistant. Provide the next best category to explore."
	userPrompt := fmt.Sprintf("Context: %s\nRemaining categories: %s\nWhich category is most relevant next?", contextText, strings.Join(remaining, ", "))

	reply, err := c.complete(ctx, c.model, systemPrompt, userPrompt, 0, 0)
	if err != nil {
		return "", fmt.Errorf("failed to predict next category: %w", err)
	}
	return matchCategory(reply, remaining), nil
}

// Autocomplete suggests completions for a partial input, one per line, at
// most MaxSuggestions. When question is set the completion is scoped to that
// question; the conditional flag asks for yes-branch detail.
func (c *Client) Autocomplete(ctx context.Context, query, question, contextText string, conditional bool) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	var systemPrompt, userPrompt string
	if question != "" {
		systemPrompt = "You are helping a patient complete an answer."
		userPrompt = fmt.Sprintf("Question: %s\nContext: %s\nPartial answer: %s\nSuggest possible completions (one per line).", question, contextText, query)
		if conditional {
			userPrompt += "\nThis is a conditional question. Provide relevant detail."
		}
	} else {
		systemPrompt = "You are providing suggestions for chief complaints."
		userPrompt = fmt.Sprintf("Partial chief complaint: %s\nSuggest possible completions (one per line).", query)
	}

	reply, err := c.complete(ctx, c.model, systemPrompt, userPrompt, 0.7, 50)
	if err != nil {
		return nil, fmt.Errorf("failed to autocomplete: %w", err)
	}
	return splitSuggestions(reply), nil
}

// summaryTemplate is the history-and-physical layout the summary follows.
const summaryTemplate = `
HISTORY AND PHYSICAL FINDINGS
CHIEF COMPLAINTS-
{chief_complaints}
HISTORY OF PRESENTING ILLNESS-
{history_of_presenting_illness}
PAST HISTORY:
{past_history}
PERSONAL HISTORY:
{personal_history}
FAMILY HISTORY-
{family_history}
GENERALIZED PHYSICAL EXAMINATION:
{general_physical_exam}
SYSTEMIC EXAMINATION-
{systemic_examination}
`

// Summarize produces the narrative summary of an interview transcript.
func (c *Client) Summarize(ctx context.Context, contextText string) (string, error) {
	if strings.TrimSpace(contextText) == "" {
		return "", fmt.Errorf("no context provided")
	}
	systemPrompt := "You are a medical expert. Generate a thorough summary from the context using this template. Include only relevant info."
	userPrompt := fmt.Sprintf("Context:\n%s\n\nTemplate:\n%s", contextText, summaryTemplate)

	summary, err := c.complete(ctx, c.summaryModel, systemPrompt, userPrompt, 0.2, 1500)
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}
	return summary, nil
}

// matchCategory returns the first candidate contained case-insensitively in
// the model reply.
func matchCategory(reply string, candidates []string) string {
	lower := strings.ToLower(reply)
	for _, candidate := range candidates {
		if strings.Contains(lower, strings.ToLower(candidate)) {
			return candidate
		}
	}
	return ""
}

// splitSuggestions parses a one-per-line completion reply.
func splitSuggestions(reply string) []string {
	var suggestions []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		suggestions = append(suggestions, line)
		if len(suggestions) == MaxSuggestions {
			break
		}
	}
	return suggestions
}
