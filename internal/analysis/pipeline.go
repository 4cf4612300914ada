// Package analysis runs diary text through the layered generation fallbacks
// and always produces a well-formed AnalysisResult.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/zihin/internal/extractor"
	"github.com/MikeSquared-Agency/zihin/internal/generation"
)

// ErrValidation rejects input before it reaches the pipeline.
var ErrValidation = errors.New("validation error")

// FallbackRecommendation is the only recommendation of the minimal envelope.
const FallbackRecommendation = "Analiz sırasında teknik bir hata oluştu, lütfen tekrar deneyin."

// State is a step of the fallback state machine.
type State int

const (
	StateTryStructured State = iota
	StateTryFreeformExtract
	StateMinimalFallback
	StateDone
)

func (s State) String() string {
	switch s {
	case StateTryStructured:
		return "try_structured"
	case StateTryFreeformExtract:
		return "try_freeform_extract"
	case StateMinimalFallback:
		return "minimal_fallback"
	default:
		return "done"
	}
}

// Generator is the slice of generation.Client the pipeline needs.
type Generator interface {
	Structured(ctx context.Context, system, prompt string) generation.Result
	Freeform(ctx context.Context, prompt string) (string, error)
}

// Sink receives successful analyses for indexing. AnalysisCompleted must
// return immediately; delivery is best effort.
type Sink interface {
	AnalysisCompleted(evt Completed)
}

// Completed describes one successful analysis. UserID is empty for
// anonymous callers; history sinks skip those.
type Completed struct {
	EntryID    string                   `json:"entry_id"`
	UserID     string                   `json:"user_id"`
	Text       string                   `json:"text"`
	MoodScore  int                      `json:"mood_score,omitempty"`
	Result     extractor.AnalysisResult `json:"result"`
	OccurredAt time.Time                `json:"occurred_at"`
}

// Request is one entry to analyse.
type Request struct {
	Text      string `json:"text"`
	UserID    string `json:"user_id,omitempty"`
	EntryID   string `json:"entry_id,omitempty"`
	MoodScore int    `json:"mood_score,omitempty"`
}

// Outcome is the result of a run together with the state that produced it.
type Outcome struct {
	Result     extractor.AnalysisResult
	ResolvedBy State
}

type Pipeline struct {
	gen        Generator
	sink       Sink
	logger     *slog.Logger
	now        func() time.Time
	riskScreen bool
}

type Option func(*Pipeline)

// WithSink hands successful analyses of identified users to s.
func WithSink(s Sink) Option { return func(p *Pipeline) { p.sink = s } }

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithRiskScreen enables keyword-based risk escalation after a successful analysis.
func WithRiskScreen(enabled bool) Option { return func(p *Pipeline) { p.riskScreen = enabled } }

func New(gen Generator, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{gen: gen, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validate checks a request before analysis.
func Validate(req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("%w: metin boş olamaz", ErrValidation)
	}
	return nil
}

// Analyze validates req and runs the pipeline. The only error it returns is
// ErrValidation; every other failure degrades into the result.
func (p *Pipeline) Analyze(ctx context.Context, req Request) (*extractor.AnalysisResult, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	out := p.Run(ctx, req)
	return &out.Result, nil
}

// Run drives the state machine to Done. It never panics past its boundary.
func (p *Pipeline) Run(ctx context.Context, req Request) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("analysis panicked, returning minimal envelope", "panic", r)
			out = Outcome{Result: p.minimal(req), ResolvedBy: StateMinimalFallback}
		}
	}()

	var (
		res      *extractor.AnalysisResult
		raw      string
		resolved State
	)

	p.logger.Info("analysing entry", "user_id", req.UserID, "text_len", len(req.Text))

	for state := StateTryStructured; state != StateDone; {
		switch state {
		case StateTryStructured:
			r := p.gen.Structured(ctx, extractor.SystemPrompt, extractor.AnalysisPrompt(req.Text))
			if r.Kind == generation.KindOK {
				res, resolved, state = r.Analysis, StateTryStructured, StateDone
				continue
			}
			raw = r.Raw
			p.logger.Warn("structured analysis failed", "kind", r.Kind.String(), "error", r.Err)
			state = StateTryFreeformExtract

		case StateTryFreeformExtract:
			a, err := p.freeformExtract(ctx, req.Text, raw)
			if err == nil {
				res, resolved, state = a, StateTryFreeformExtract, StateDone
				continue
			}
			p.logger.Warn("freeform extraction failed", "error", err)
			state = StateMinimalFallback

		case StateMinimalFallback:
			m := p.minimal(req)
			return Outcome{Result: m, ResolvedBy: StateMinimalFallback}
		}
	}

	p.postProcess(res, req)
	p.logger.Info("analysis complete",
		"user_id", req.UserID,
		"resolved_by", resolved.String(),
		"distortions", len(res.Distortions),
		"risk_level", res.RiskLevel,
	)
	p.notify(req, *res)
	return Outcome{Result: *res, ResolvedBy: resolved}
}

// freeformExtract salvages the structured attempt's raw text when there is
// some, then falls back to a fresh freeform completion.
func (p *Pipeline) freeformExtract(ctx context.Context, text, raw string) (*extractor.AnalysisResult, error) {
	if strings.TrimSpace(raw) != "" {
		if a, err := extractAndCoerce(raw); err == nil {
			p.logger.Info("recovered structured output by extraction")
			return a, nil
		}
	}

	out, err := p.gen.Freeform(ctx, extractor.FreeformPrompt(text))
	if err != nil {
		return nil, err
	}
	a, err := extractAndCoerce(out)
	if err != nil {
		p.logger.Debug("freeform output unusable", "error", err, "raw", out)
		return nil, err
	}
	return a, nil
}

func extractAndCoerce(text string) (*extractor.AnalysisResult, error) {
	js, err := extractor.ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	return extractor.Parse(js)
}

func (p *Pipeline) minimal(req Request) extractor.AnalysisResult {
	return extractor.AnalysisResult{
		Distortions:       []extractor.DistortionFinding{},
		RiskLevel:         extractor.RiskUnknown,
		Recommendations:   []string{FallbackRecommendation},
		AnalysisTimestamp: p.timestamp(),
		UserID:            req.UserID,
	}
}

func (p *Pipeline) postProcess(res *extractor.AnalysisResult, req Request) {
	if res.Distortions == nil {
		res.Distortions = []extractor.DistortionFinding{}
	}
	if res.RiskLevel == "" {
		res.RiskLevel = extractor.RiskUnknown
	}
	if len(res.Recommendations) == 0 {
		res.Recommendations = Suggestions(res.Distortions)
	}
	if p.riskScreen {
		if level := ScreenRisk(req.Text); escalates(res.RiskLevel, level) {
			p.logger.Warn("risk keywords raised risk level", "from", res.RiskLevel, "to", level, "user_id", req.UserID)
			res.RiskLevel = level
		}
	}
	if res.RiskLevel == extractor.RiskHigh {
		res.Recommendations = WithCrisisMessage(res.Recommendations)
	}
	res.AnalysisTimestamp = p.timestamp()
	res.UserID = req.UserID
}

func (p *Pipeline) notify(req Request, res extractor.AnalysisResult) {
	if p.sink == nil {
		return
	}
	entryID := req.EntryID
	if entryID == "" {
		entryID = uuid.NewString()
	}
	p.sink.AnalysisCompleted(Completed{
		EntryID:    entryID,
		UserID:     req.UserID,
		Text:       req.Text,
		MoodScore:  req.MoodScore,
		Result:     res,
		OccurredAt: p.now().UTC(),
	})
}

func (p *Pipeline) timestamp() string {
	return p.now().Format(time.RFC3339)
}
