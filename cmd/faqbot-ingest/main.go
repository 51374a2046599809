// Command faqbot-ingest builds the vector index artifacts from a FAQ
// table (CSV or XLSX).
package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kaabil/faqbot/internal/cache"
	"github.com/kaabil/faqbot/internal/config"
	"github.com/kaabil/faqbot/internal/domain"
	"github.com/kaabil/faqbot/internal/ingest"
	logpkg "github.com/kaabil/faqbot/internal/logger"
	"github.com/kaabil/faqbot/internal/metrics"
	"github.com/kaabil/faqbot/internal/repository/embcache"
	openaiTransport "github.com/kaabil/faqbot/internal/transport/openai"
)

func main() {
	_ = godotenv.Load()

	source := flag.String("source", "", "path to the FAQ table (.csv or .xlsx)")
	outIndex := flag.String("out-index", "", "index destination (default from config)")
	outMeta := flag.String("out-meta", "", "metadata destination (default from config)")
	flag.Parse()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if *source == "" {
		logger.Fatal("-source is required")
	}
	indexPath := cfg.Index.Path
	if *outIndex != "" {
		indexPath = *outIndex
	}
	metaPath := cfg.Index.MetaPath
	if *outMeta != "" {
		metaPath = *outMeta
	}

	metrics.RegisterRemoteMetrics()

	faqs, err := ingest.ReadSource(*source)
	if err != nil {
		logger.Fatal("Failed to read FAQ source", zap.Error(err))
	}
	logger.Info("FAQ source parsed",
		zap.String("source", *source),
		zap.Int("rows", len(faqs)),
	)

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.EmbeddingModel,
		TimeoutSec: cfg.OpenAI.TimeoutSec,
		Logger:     logger,
	})

	// Reuse the serving cache when configured so re-ingesting an edited
	// sheet only embeds the changed rows.
	var embedder domain.Embedder = base
	if cfg.Cache.Enabled() {
		cacheStore, err := cache.NewStore(cache.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create embedding cache", zap.Error(err))
		}
		defer cacheStore.Close()

		if err := cacheStore.WaitForReady(context.Background(), 10*time.Second); err != nil {
			logger.Fatal("Embedding cache not ready", zap.Error(err))
		}
		embedder = embcache.New(base, cacheStore, cfg.OpenAI.EmbeddingModel, metrics.EmbeddingCacheTotal, logger)
	}

	builder := ingest.NewBuilder(embedder, cfg.OpenAI.EmbeddingModel, logger)
	if err := builder.Build(context.Background(), faqs, indexPath, metaPath); err != nil {
		logger.Fatal("Failed to build index", zap.Error(err))
	}

	logger.Info("Ingestion complete",
		zap.String("index_path", indexPath),
		zap.String("meta_path", metaPath),
	)
}
