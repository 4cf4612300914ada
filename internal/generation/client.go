package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/zihin/internal/extractor"
)

// ErrGeneration marks an upstream failure: unreachable, timed out, or an
// error status after retries.
var ErrGeneration = errors.New("generation failed")

// Kind tags the outcome of a structured call.
type Kind int

const (
	KindOK      Kind = iota // Analysis is set
	KindRawText             // the backend answered but binding failed; Raw is set
	KindError               // no usable answer; Err is set
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindRawText:
		return "raw_text"
	default:
		return "error"
	}
}

// Result is the tagged outcome of Client.Structured.
type Result struct {
	Kind     Kind
	Analysis *extractor.AnalysisResult
	Raw      string
	Err      error
}

// BindError carries the raw model text that failed strict binding.
type BindError struct {
	Raw string
	Err error
}

func (e *BindError) Error() string { return fmt.Sprintf("bind structured output: %v", e.Err) }
func (e *BindError) Unwrap() error { return e.Err }

// Options tune the calls made by a Client.
type Options struct {
	MaxTokens             int
	StructuredTemperature float64
	FreeformTemperature   float64
}

// Client exposes structured and freeform generation over one provider. It
// holds no per-request state and is safe for concurrent use.
type Client struct {
	provider Provider
	opts     Options
	logger   *slog.Logger
}

func NewClient(provider Provider, opts Options, logger *slog.Logger) *Client {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	return &Client{provider: provider, opts: opts, logger: logger}
}

// Provider returns the backend name, for logs and health output.
func (c *Client) Provider() string { return c.provider.Name() }

// Structured requests JSON-only output and binds it onto AnalysisResult.
func (c *Client) Structured(ctx context.Context, system, prompt string) Result {
	raw, err := c.provider.Complete(ctx, Request{
		System:      system,
		Prompt:      prompt,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.StructuredTemperature,
		JSON:        true,
	})
	if err != nil {
		return Result{Kind: KindError, Err: fmt.Errorf("%w: %w", ErrGeneration, err)}
	}

	analysis, err := extractor.Bind(raw)
	if err != nil {
		c.logger.Debug("structured output did not bind", "error", err, "raw", raw)
		return Result{Kind: KindRawText, Raw: raw, Err: &BindError{Raw: raw, Err: err}}
	}
	return Result{Kind: KindOK, Analysis: analysis, Raw: raw}
}

// Freeform is a plain completion without JSON enforcement.
func (c *Client) Freeform(ctx context.Context, prompt string) (string, error) {
	text, err := c.provider.Complete(ctx, Request{
		Prompt:      prompt,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.FreeformTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	return text, nil
}
