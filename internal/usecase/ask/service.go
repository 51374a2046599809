// Package ask orchestrates one question round-trip: retrieve, select
// evidence, compose the reply and record the turn.
package ask

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kaabil/faqbot/internal/domain"
	"github.com/kaabil/faqbot/internal/index"
	"github.com/kaabil/faqbot/internal/metrics"
	"github.com/kaabil/faqbot/internal/usecase/answer"
)

const provider = "openai"

// Request carries the query plus the caller metadata recorded with the turn.
type Request struct {
	Query     string
	SessionID string
	IP        string
	UserAgent string
}

// Service runs the ask pipeline.
type Service struct {
	index    *index.Lazy
	embed    Embedder
	selector Selector
	composer Composer
	turns    TurnLogger
	log      *zap.Logger

	topK    int
	model   string
	offline bool
}

// Config wires the ask pipeline dependencies.
type Config struct {
	Index    *index.Lazy
	Embedder Embedder
	Selector Selector
	Composer Composer
	Turns    TurnLogger
	Logger   *zap.Logger

	TopK    int
	Model   string
	Offline bool
}

// New creates an ask service.
func New(cfg Config) *Service {
	return &Service{
		index:    cfg.Index,
		embed:    cfg.Embedder,
		selector: cfg.Selector,
		composer: cfg.Composer,
		turns:    cfg.Turns,
		log:      cfg.Logger,
		topK:     cfg.TopK,
		model:    cfg.Model,
		offline:  cfg.Offline,
	}
}

// Ask answers one query. Errors map to the domain sentinels of the failing
// stage; a successful reply is always recorded in the turn log, including
// refusals. Turn log failures are logged and swallowed: losing analytics
// must never lose an answer.
func (s *Service) Ask(ctx context.Context, req Request) (answer.Result, error) {
	start := time.Now()

	store, err := s.index.Get()
	if err != nil {
		return answer.Result{}, err
	}

	emb, err := s.embed.Embed(ctx, req.Query)
	if err != nil {
		return answer.Result{}, err
	}

	candidates, err := store.Search(emb.Embedding, s.topK)
	if err != nil {
		return answer.Result{}, err
	}

	evidence := s.selector.Select(candidates, req.Query)

	res, err := s.composer.Compose(ctx, req.Query, evidence)
	if err != nil {
		return answer.Result{}, err
	}

	metrics.AsksTotal.WithLabelValues(s.outcome(res)).Inc()

	turn := domain.Turn{
		TS:           time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		SessionID:    req.SessionID,
		IP:           req.IP,
		UserAgent:    req.UserAgent,
		Query:        req.Query,
		Answer:       res.Answer,
		UsedEvidence: res.UsedEvidence,
		Citations:    res.Citations,
		LatencyMS:    int(time.Since(start).Milliseconds()),
		Provider:     provider,
		Model:        s.model,
		TopK:         s.topK,
		Threshold:    s.selector.Threshold(),
	}
	if err := s.turns.Insert(ctx, turn); err != nil {
		s.log.Warn("turn log insert failed", zap.Error(err))
	}

	return res, nil
}

func (s *Service) outcome(res answer.Result) string {
	switch {
	case !res.UsedEvidence:
		return "refused"
	case s.offline:
		return "offline"
	default:
		return "answered"
	}
}
