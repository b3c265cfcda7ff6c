// Package client provides an HTTP implementation of the interview service
// contract against the question service endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/needl-health/NeedlIntake/internal/interview"
	"github.com/needl-health/NeedlIntake/internal/models"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:5000"

// DefaultTimeout bounds each request when the caller's context carries no
// deadline of its own.
const DefaultTimeout = 30 * time.Second

// Opts holds configuration options for the HTTP client.
type Opts struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Option defines a configuration option for the HTTP client.
type Option func(*Opts)

// WithBaseURL sets the question service base URL.
func WithBaseURL(u string) Option {
	return func(o *Opts) {
		o.BaseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client, used by tests to inject
// transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *Opts) {
		o.HTTPClient = hc
	}
}

// Client talks to the question service over HTTP. It implements
// interview.Service.
type Client struct {
	baseURL string
	http    *http.Client
}

// Compile-time check that Client satisfies the service contract.
var _ interview.Service = (*Client)(nil)

// NewClient creates a question service client with the given options.
func NewClient(opts ...Option) *Client {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	slog.Debug("client.NewClient: created question service client", "base_url", cfg.BaseURL)
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    cfg.HTTPClient,
	}
}

// ListCategories fetches the static category list.
func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	var resp models.CategoriesResponse
	if err := c.getJSON(ctx, "/get_categories", &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// Suggest fetches autocomplete options for a partial input.
func (c *Client) Suggest(ctx context.Context, req models.AutocompleteRequest) ([]string, error) {
	var resp models.AutocompleteResponse
	if err := c.postJSON(ctx, "/autocomplete", req, &resp); err != nil {
		return nil, err
	}
	return resp.Options, nil
}

// PredictCategory maps a free-text complaint to a category.
func (c *Client) PredictCategory(ctx context.Context, complaint string) (string, error) {
	var resp models.PredictCategoryResponse
	req := models.PredictCategoryRequest{Complaint: complaint}
	if err := c.postJSON(ctx, "/predict_category", req, &resp); err != nil {
		return "", err
	}
	return resp.Category, nil
}

// NextQuestion fetches the next unanswered question for a category.
func (c *Client) NextQuestion(ctx context.Context, category, contextText string) (models.Question, error) {
	var resp models.AskQuestionsResponse
	req := models.AskQuestionsRequest{Category: category, Context: contextText}
	if err := c.postJSON(ctx, "/ask_questions", req, &resp); err != nil {
		return models.Question{}, err
	}
	return resp.Question(), nil
}

// SubmitAnswer records an answer and returns the authoritative follow-up
// state. Zero-valued result fields were absent from the response.
func (c *Client) SubmitAnswer(ctx context.Context, req models.SubmitAnswerRequest) (interview.AnswerResult, error) {
	var resp models.SubmitAnswerResponse
	if err := c.postJSON(ctx, "/submit_answer", req, &resp); err != nil {
		return interview.AnswerResult{}, err
	}
	return interview.AnswerResult{
		Context:         resp.Context,
		Category:        resp.Category,
		AskedCategories: resp.AskedCategories,
		Question:        resp.Question(),
	}, nil
}

// PredictNextCategory picks the next category to explore.
func (c *Client) PredictNextCategory(ctx context.Context, contextText string, asked []string) (string, error) {
	var resp models.PredictCategoryResponse
	req := models.PredictNextCategoryRequest{Context: contextText, AskedCategories: asked}
	if err := c.postJSON(ctx, "/predict_next_category", req, &resp); err != nil {
		return "", err
	}
	return resp.Category, nil
}

// GenerateSummary produces the narrative summary of the transcript.
func (c *Client) GenerateSummary(ctx context.Context, contextText string) (string, error) {
	var resp models.GenerateSummaryResponse
	req := models.GenerateSummaryRequest{Context: contextText}
	if err := c.postJSON(ctx, "/generate_summary", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success {
		if resp.Error != "" {
			return "", fmt.Errorf("summary generation failed: %s", resp.Error)
		}
		return "", fmt.Errorf("summary generation failed")
	}
	return resp.Summary, nil
}

// getJSON performs a GET request and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	return c.do(req, path, out)
}

// postJSON performs a POST request with a JSON body and decodes the JSON
// response into out.
func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("Client.do: unexpected status from question service", "path", path, "status", resp.StatusCode)
		return fmt.Errorf("question service returned status %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
