// Command faqbot-eval scores the vector index against a JSON evaluation
// set and prints the aggregate report as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kaabil/faqbot/internal/cache"
	"github.com/kaabil/faqbot/internal/config"
	"github.com/kaabil/faqbot/internal/domain"
	"github.com/kaabil/faqbot/internal/eval"
	"github.com/kaabil/faqbot/internal/index"
	logpkg "github.com/kaabil/faqbot/internal/logger"
	"github.com/kaabil/faqbot/internal/metrics"
	"github.com/kaabil/faqbot/internal/repository/embcache"
	openaiTransport "github.com/kaabil/faqbot/internal/transport/openai"
)

func main() {
	_ = godotenv.Load()

	evalPath := flag.String("eval", "evaluation/eval_set.json", "path to the JSON evaluation set")
	inIndex := flag.String("index", "", "index path (default from config)")
	inMeta := flag.String("meta", "", "metadata path (default from config)")
	threshold := flag.Float64("threshold", math.NaN(), "score threshold (default from config)")
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

	indexPath := cfg.Index.Path
	if *inIndex != "" {
		indexPath = *inIndex
	}
	metaPath := cfg.Index.MetaPath
	if *inMeta != "" {
		metaPath = *inMeta
	}
	scoreThreshold := cfg.Retrieval.Threshold()
	if !math.IsNaN(*threshold) {
		scoreThreshold = *threshold
	}

	metrics.RegisterRemoteMetrics()

	cases, err := eval.LoadSet(*evalPath)
	if err != nil {
		logger.Fatal("Failed to load evaluation set", zap.Error(err))
	}

	store, err := index.Load(indexPath, metaPath)
	if err != nil {
		logger.Fatal("Index artifacts not found, run faqbot-ingest first", zap.Error(err))
	}

	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.OpenAI.EmbeddingModel,
		TimeoutSec: cfg.OpenAI.TimeoutSec,
		Logger:     logger,
	})
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

	logger.Info("Evaluating index",
		zap.String("eval_set", *evalPath),
		zap.Int("cases", len(cases)),
		zap.Int("index_rows", store.Len()),
		zap.Float64("threshold", scoreThreshold),
	)

	runner := eval.NewRunner(embedder, store, cfg.Retrieval.TopK, scoreThreshold)
	report, err := runner.Run(context.Background(), cases)
	if err != nil {
		logger.Fatal("Evaluation failed", zap.Error(err))
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Fatal("Failed to encode report", zap.Error(err))
	}
	fmt.Println(string(out))
}
