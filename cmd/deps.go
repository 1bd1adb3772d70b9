package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/marcus302/aanvraagapp/internal/ai"
	"github.com/marcus302/aanvraagapp/internal/ai/gemini"
	"github.com/marcus302/aanvraagapp/internal/ai/ollama"
	"github.com/marcus302/aanvraagapp/internal/chunk"
	"github.com/marcus302/aanvraagapp/internal/convert"
	"github.com/marcus302/aanvraagapp/internal/extract"
	"github.com/marcus302/aanvraagapp/internal/fetch"
	"github.com/marcus302/aanvraagapp/internal/logger"
	"github.com/marcus302/aanvraagapp/internal/matching"
	"github.com/marcus302/aanvraagapp/internal/pipeline"
	"github.com/marcus302/aanvraagapp/internal/secrets"
	"github.com/marcus302/aanvraagapp/internal/store"
)

// setup builds the logger and reads the config. Every command starts here.
func setup() (*zap.Logger, *Config) {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}

	l.Debug("starting", zap.String("app", app), zap.String("version", version))
	return l, config
}

func openStore(ctx context.Context, config *Config, logger *zap.Logger) (*store.Store, error) {
	if strings.TrimSpace(config.Database.URL) == "" {
		return nil, fmt.Errorf("database url is not configured (set database.url or AANVRAAGAPP_DATABASE_URL)")
	}
	return store.Connect(ctx, store.Config{
		URL:      config.Database.URL,
		MaxConns: config.Database.MaxConns,
	}, logger)
}

// newBackend builds the configured AI backend, normalized to the canonical
// embedding size and bounded to ai.concurrency calls in flight.
func newBackend(ctx context.Context, config *AIConfig, l *zap.Logger) (ai.Backend, error) {
	var backend ai.Backend

	switch provider := strings.TrimSpace(strings.ToLower(config.Provider)); provider {
	case "", gemini.ProviderName:
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			File:  config.Gemini.APIKeyFile,
			Env:   "GEMINI_API_KEY",
			Value: config.Gemini.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
		}

		client, err := gemini.New(ctx, gemini.Config{
			APIKey:         apiKey,
			Model:          config.Gemini.Model,
			EmbeddingModel: config.Gemini.EmbeddingModel,
			MaxRetries:     config.Gemini.MaxRetries,
			MaxLogLength:   config.Gemini.MaxLogLength,
		}, l)
		if err != nil {
			return nil, err
		}
		backend = client
	case ollama.ProviderName:
		client := ollama.New(ollama.Config{
			BaseURL:        config.Ollama.Host,
			Model:          config.Ollama.Model,
			EmbeddingModel: config.Ollama.EmbeddingModel,
			Timeout:        config.Ollama.Timeout,
		}, l)
		if err := client.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ollama is not reachable: %w", err)
		}
		backend = client
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", config.Provider)
	}

	logger.WithCommonFields(l, backend.Name(), backend.Model()).Info("ai backend ready",
		zap.Int("concurrency", config.Concurrency),
	)

	return ai.Limit(ai.Canonical(backend), config.Concurrency), nil
}

func newPipeline(config *Config, db *store.Store, backend ai.Backend, l *zap.Logger) *pipeline.Pipeline {
	maxLog := config.AI.Gemini.MaxLogLength
	fetcher := fetch.New(fetch.Config{
		UserAgent:  config.Fetch.UserAgent,
		Timeout:    config.Fetch.Timeout,
		CrawlDelay: config.Fetch.CrawlDelay,
	}, l)

	return pipeline.New(pipeline.Config{
		MatchConcurrency: config.AI.Concurrency,
		Workers:          config.Pipeline.Workers,
	}, pipeline.Deps{
		Store:     pipeline.FromStore(db),
		Converter: convert.New(fetcher, backend, l, maxLog),
		Extractor: extract.New(backend, l, maxLog),
		Chunker:   chunk.New(),
		Embedder:  backend,
		Scorer:    matching.NewScorer(backend, l, maxLog),
		Logger:    l,
	})
}

// bootstrap wires everything a pipeline command needs. The returned func
// releases the database pool.
func bootstrap(ctx context.Context) (*zap.Logger, *Config, *store.Store, *pipeline.Pipeline, func()) {
	l, config := setup()

	db, err := openStore(ctx, config, l)
	if err != nil {
		l.Fatal("opening the database", zap.Error(err))
	}

	backend, err := newBackend(ctx, config.AI, l)
	if err != nil {
		db.Close()
		l.Fatal("building the ai backend", zap.Error(err))
	}

	return l, config, db, newPipeline(config, db, backend, l), db.Close
}
