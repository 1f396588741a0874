// Package extraction turns uploaded loan statements into loan drafts, and
// descriptions into expense categories, using a hosted language model.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"budgetwise/internal/core"
)

// Analyzer is the model-backed extraction port used by the HTTP layer.
type Analyzer interface {
	// Analyze returns a draft loan read from doc. Nothing is persisted.
	Analyze(ctx context.Context, doc Document) (core.Loan, error)
	// SuggestCategory picks an expense category for description, falling
	// back to Other when the model strays outside the closed set.
	SuggestCategory(ctx context.Context, description string) (core.Category, error)
}

const (
	DefaultModel     = "claude-3-5-sonnet-latest"
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultTimeout   = 60 * time.Second
	DefaultMaxBytes  = 10 << 20
	defaultMaxTokens = 1024
	apiVersion       = "2023-06-01"
	maxErrorBody     = 1 << 20
)

// Config configures the Anthropic-backed client.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxBytes   int64
	MaxTokens  int
	HTTPClient *http.Client
}

var (
	ErrMissingAPIKey        = errors.New("anthropic API key is required")
	ErrEmptyDocument        = errors.New("document is empty")
	ErrDocumentTooLarge     = errors.New("document too large")
	ErrUnsupportedMediaType = errors.New("unsupported document type")
	ErrEmptyDescription     = errors.New("description is empty")

	// ErrExtraction matches every *ExtractionError via errors.Is.
	ErrExtraction = errors.New("extraction failed")
)

// ErrorKind classifies an extraction failure.
type ErrorKind string

const (
	KindRequest ErrorKind = "request" // transport failure before a reply
	KindStatus  ErrorKind = "status"  // non-2xx reply from the service
	KindTimeout ErrorKind = "timeout"
	KindSchema  ErrorKind = "schema" // reply did not match the loan schema
)

// ExtractionError is returned when the model call fails or its reply does
// not conform. It unwraps to the underlying cause.
type ExtractionError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ExtractionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("extraction %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("extraction %s error: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

// Timeout reports whether the model call ran out of time.
func (e *ExtractionError) Timeout() bool { return e.Kind == KindTimeout }

func newError(kind ErrorKind, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Err: err}
}
