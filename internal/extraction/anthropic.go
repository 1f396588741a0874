package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"budgetwise/internal/core"
	applog "budgetwise/internal/log"
)

// Client calls the Anthropic Messages API. Each call is attempted once.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	timeout    time.Duration
	maxTokens  int
}

var _ Analyzer = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{
		httpClient: cfg.HTTPClient,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		maxTokens:  cfg.MaxTokens,
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return c, nil
}

type (
	messageRequest struct {
		Model       string    `json:"model"`
		MaxTokens   int       `json:"max_tokens"`
		Temperature float64   `json:"temperature"`
		System      string    `json:"system"`
		Messages    []message `json:"messages"`
	}

	message struct {
		Role    string         `json:"role"`
		Content []contentBlock `json:"content"`
	}

	contentBlock struct {
		Type   string       `json:"type"`
		Text   string       `json:"text,omitempty"`
		Source *blockSource `json:"source,omitempty"`
	}

	blockSource struct {
		Type      string `json:"type"`
		MediaType string `json:"media_type"`
		Data      string `json:"data"`
	}

	// anthropicResponse is the subset of the Messages API reply we read.
	anthropicResponse struct {
		ID         string `json:"id"`
		Model      string `json:"model"`
		StopReason string `json:"stop_reason"`
		Content    []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}

	anthropicError struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
)

// Analyze sends doc to the model and validates the reply as a loan draft.
func (c *Client) Analyze(ctx context.Context, doc Document) (core.Loan, error) {
	if err := doc.Validate(); err != nil {
		return core.Loan{}, err
	}

	blocks := append(documentBlocks(doc), contentBlock{Type: "text", Text: analyzePrompt})
	text, err := c.send(ctx, blocks)
	if err != nil {
		return core.Loan{}, err
	}

	loan, err := parseLoanReply(text)
	if err != nil {
		return core.Loan{}, newError(KindSchema, err)
	}

	slog.DebugContext(ctx, "Model reply parsed",
		applog.FieldComponent, applog.ComponentExtraction,
		applog.FieldOperation, applog.OpAnalyze,
		applog.FieldMediaType, doc.MediaType,
		applog.FieldBytes, len(doc.Data),
		applog.FieldLoanName, loan.LoanName)
	return loan, nil
}

// documentBlocks encodes doc for the Messages API. PDFs travel as base64
// document blocks and text exports as text documents. Spreadsheets have
// no native block type, so they are passed as their data URI.
func documentBlocks(doc Document) []contentBlock {
	switch {
	case doc.MediaType == MediaPDF:
		return []contentBlock{{
			Type:   "document",
			Source: &blockSource{Type: "base64", MediaType: MediaPDF, Data: doc.Base64()},
		}}
	case doc.IsText():
		return []contentBlock{{
			Type:   "document",
			Source: &blockSource{Type: "text", MediaType: MediaText, Data: string(doc.Data)},
		}}
	default:
		return []contentBlock{{
			Type: "text",
			Text: "Statement file (" + doc.Name + "), as a data URI:\n" + doc.DataURI(),
		}}
	}
}

// send performs one Messages API call under the client timeout and returns
// the first text block of the reply.
func (c *Client) send(ctx context.Context, blocks []contentBlock) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(messageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: blocks}},
	})
	if err != nil {
		return "", newError(KindRequest, fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", newError(KindRequest, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return "", newError(KindTimeout, fmt.Errorf("no reply within %s: %w", c.timeout, err))
		}
		return "", newError(KindRequest, fmt.Errorf("request failed: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		if isTimeout(ctx, err) {
			return "", newError(KindTimeout, fmt.Errorf("read reply: %w", err))
		}
		return "", newError(KindRequest, fmt.Errorf("read reply: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		e := newError(KindStatus, errors.New(statusMessage(raw)))
		e.StatusCode = resp.StatusCode
		return "", e
	}

	var out anthropicResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", newError(KindSchema, fmt.Errorf("parse response: %w", err))
	}
	for _, block := range out.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			slog.DebugContext(ctx, "Model reply received",
				applog.FieldComponent, applog.ComponentExtraction,
				"model", out.Model,
				"input_tokens", out.Usage.InputTokens,
				"output_tokens", out.Usage.OutputTokens,
				applog.FieldDuration, time.Since(start).Milliseconds())
			return block.Text, nil
		}
	}
	return "", newError(KindSchema, errors.New("no text content in response"))
}

func statusMessage(raw []byte) string {
	var e anthropicError
	if err := json.Unmarshal(raw, &e); err == nil && e.Error.Message != "" {
		return e.Error.Type + ": " + e.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "empty response body"
	}
	return msg
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
