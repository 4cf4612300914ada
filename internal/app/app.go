// Package app builds the process-wide singletons once at startup.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/zihin/internal/advisor"
	"github.com/MikeSquared-Agency/zihin/internal/analysis"
	"github.com/MikeSquared-Agency/zihin/internal/anthropic"
	"github.com/MikeSquared-Agency/zihin/internal/catalog"
	"github.com/MikeSquared-Agency/zihin/internal/config"
	"github.com/MikeSquared-Agency/zihin/internal/embed"
	"github.com/MikeSquared-Agency/zihin/internal/gemini"
	"github.com/MikeSquared-Agency/zihin/internal/generation"
	"github.com/MikeSquared-Agency/zihin/internal/hermes"
	"github.com/MikeSquared-Agency/zihin/internal/indexer"
	"github.com/MikeSquared-Agency/zihin/internal/litestore"
	"github.com/MikeSquared-Agency/zihin/internal/openai"
	"github.com/MikeSquared-Agency/zihin/internal/retrieval"
	"github.com/MikeSquared-Agency/zihin/internal/slack"
	"github.com/MikeSquared-Agency/zihin/internal/store"
	"github.com/MikeSquared-Agency/zihin/internal/vector"
)

// DefaultOpenAIEmbeddingModel is used when ZIHIN_EMBEDDING_MODEL is unset.
const DefaultOpenAIEmbeddingModel = "text-embedding-3-small"

// Retry policies for the two generation profiles.
var (
	AnalysisPolicy = generation.RetryPolicy{MaxRetries: 3, Timeout: 60 * time.Second, BaseDelay: time.Second}
	RAGPolicy      = generation.RetryPolicy{MaxRetries: 2, Timeout: 20 * time.Second, BaseDelay: time.Second}
)

// App holds the wired components.
type App struct {
	Config    config.Config
	Catalog   *catalog.Catalog
	Pipeline  *analysis.Pipeline
	Retriever *retrieval.Retriever
	Advisor   *advisor.Service
	Indexer   *indexer.Indexer // nil without a vector backend
	Hermes    *hermes.Client   // nil without NATS_URL
	Provider  string
	// Generator is the analysis generation client, for pipelines built
	// outside the request path.
	Generator *generation.Client

	backend vector.Backend
	closers []func()
	logger  *slog.Logger
}

// BuildRetrieval wires the catalog, the vector index and a catalog-only
// advisor. It needs no generation credentials.
func BuildRetrieval(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	cat, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	a.Catalog = cat

	backend, err := a.openBackend(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	var index retrieval.Index
	if backend != nil {
		embedder, err := buildEmbedder(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.backend = backend
		index = vector.NewIndex(embedder, backend, logger)
	}
	a.Retriever = retrieval.New(cat, index, logger, retrieval.WithEmbedding(EmbeddingSignature(cfg)))
	a.Advisor = advisor.NewService(a.Retriever, nil, logger)
	return a, nil
}

// Build wires every component from cfg. Close releases what Build opened.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	providers, err := buildProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}
	provider, err := providers.Get(cfg.Provider)
	if err != nil {
		return nil, err
	}

	a, err := BuildRetrieval(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Provider = provider.Name()

	analysisGen := generation.NewClient(
		generation.WithRetry(provider, AnalysisPolicy, logger),
		generation.Options{MaxTokens: cfg.MaxTokens, StructuredTemperature: 0, FreeformTemperature: 0.7},
		logger,
	)
	ragGen := generation.NewClient(
		generation.WithRetry(provider, RAGPolicy, logger),
		generation.Options{MaxTokens: cfg.MaxTokens, StructuredTemperature: 0.3, FreeformTemperature: 0.3},
		logger,
	)

	a.Generator = analysisGen

	var sink analysis.Sink
	if a.Retriever.Available() {
		a.Indexer = indexer.New(a.Retriever, logger, time.Duration(cfg.IndexTimeoutSecs)*time.Second)
		a.closers = append([]func(){a.Indexer.Wait}, a.closers...)
		sink = a.Indexer
	}

	if cfg.NatsURL != "" {
		hc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Hermes = hc
		// Drain the bus before waiting on the indexer so no new writes start.
		a.closers = append([]func(){hc.Close}, a.closers...)
		if a.Indexer != nil {
			if err := hc.Subscribe(hermes.SubjectAnalysisCompleted, hermes.IndexerQueue, a.Indexer.HandleAnalysisCompleted); err != nil {
				a.Close()
				return nil, err
			}
		}
		sink = hermes.NewAnalysisSink(hc, logger)
	}

	if cfg.SlackBotToken != "" && cfg.SlackAlertChannel != "" {
		alerter := slack.NewRiskAlerter(sink, slack.NewPoster(cfg.SlackBotToken, cfg.SlackAlertChannel, logger), logger)
		a.closers = append([]func(){alerter.Wait}, a.closers...)
		sink = alerter
	}

	opts := []analysis.Option{analysis.WithRiskScreen(cfg.RiskKeywordScreen)}
	if sink != nil {
		opts = append(opts, analysis.WithSink(sink))
	}
	a.Pipeline = analysis.New(analysisGen, logger, opts...)
	a.Advisor = advisor.NewService(a.Retriever, advisor.NewComposer(ragGen, logger), logger)

	logger.Info("components wired",
		"provider", a.Provider,
		"vector_backend", cfg.VectorBackend,
		"embedding", cfg.ResolvedEmbedding(),
		"nats", a.Hermes != nil,
		"slack_alerts", cfg.SlackBotToken != "" && cfg.SlackAlertChannel != "",
		"risk_keyword_screen", cfg.RiskKeywordScreen,
	)
	return a, nil
}

// VectorPing checks the vector backend. It reports ErrNoVectorBackend when
// none is configured.
func (a *App) VectorPing(ctx context.Context) error {
	if a.backend == nil {
		return ErrNoVectorBackend
	}
	return a.backend.Ping(ctx)
}

// ErrNoVectorBackend is returned by VectorPing when retrieval is catalog-only.
var ErrNoVectorBackend = errors.New("no vector backend configured")

// Close releases resources in reverse dependency order. It is safe to call
// on a partially built App.
func (a *App) Close() {
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
}

func (a *App) openBackend(ctx context.Context, cfg config.Config) (vector.Backend, error) {
	switch cfg.VectorBackend {
	case config.VectorNone:
		return nil, nil
	case config.VectorPostgres:
		s, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		if dir := filepath.Dir(cfg.VectorPath); cfg.VectorPath != litestore.MemoryPath && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create vector dir: %w", err)
			}
		}
		s, err := litestore.Open(ctx, cfg.VectorPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := s.Close(); err != nil {
				a.logger.Warn("closing vector store failed", "error", err)
			}
		})
		return s, nil
	}
}

func buildProviders(ctx context.Context, cfg config.Config) (generation.Providers, error) {
	providers := generation.Providers{}
	if cfg.OpenAIAPIKey != "" {
		providers["openai"] = openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	}
	if cfg.AnthropicAPIKey != "" {
		providers["anthropic"] = anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	}
	if cfg.GeminiAPIKey != "" {
		g, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, "")
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		providers["gemini"] = g
	}
	return providers, nil
}

// EmbeddingSignature names the embedder cfg selects. Vectors from different
// signatures are not comparable.
func EmbeddingSignature(cfg config.Config) string {
	switch mode := cfg.ResolvedEmbedding(); mode {
	case config.EmbeddingOpenAI:
		model := cfg.EmbeddingModel
		if model == "" {
			model = DefaultOpenAIEmbeddingModel
		}
		return mode + ":" + model
	case config.EmbeddingGemini:
		model := cfg.EmbeddingModel
		if model == "" {
			model = embed.DefaultGeminiModel
		}
		return mode + ":" + model
	default:
		return fmt.Sprintf("%s:%d", config.EmbeddingHashing, cfg.EmbeddingDimensions)
	}
}

func buildEmbedder(ctx context.Context, cfg config.Config) (embed.Embedder, error) {
	switch cfg.ResolvedEmbedding() {
	case config.EmbeddingOpenAI:
		model := cfg.EmbeddingModel
		if model == "" {
			model = DefaultOpenAIEmbeddingModel
		}
		return embed.NewClient(embed.Config{
			Endpoint:   strings.TrimRight(cfg.OpenAIBaseURL, "/") + "/embeddings",
			Model:      model,
			APIKey:     cfg.OpenAIAPIKey,
			MaxRetries: 3,
			Timeout:    30 * time.Second,
		})
	case config.EmbeddingGemini:
		return embed.NewGemini(ctx, cfg.GeminiAPIKey, cfg.EmbeddingModel, "")
	default:
		return embed.NewHashing(cfg.EmbeddingDimensions), nil
	}
}
