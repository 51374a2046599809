// Package eval scores the retrieval index against a JSON evaluation set:
// a list of queries, each with the tokens a grounded answer must contain.
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/kaabil/faqbot/internal/domain"
)

// Case is one evaluation entry.
type Case struct {
	Query       string   `json:"query"`
	MustContain []string `json:"must_contain"`
}

// Report aggregates one evaluation run.
type Report struct {
	Total      int     `json:"total"`
	Hits       int     `json:"hits"`
	NoEvidence int     `json:"no_evidence"`
	HitRate    float64 `json:"hit_rate"`
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher runs top-K retrieval over the index.
type Searcher interface {
	Search(query []float32, k int) ([]domain.Evidence, error)
}

// LoadSet reads evaluation cases from a JSON file holding a list.
func LoadSet(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read eval set: %w", err)
	}
	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("eval set must be a JSON list of cases: %w", err)
	}
	return cases, nil
}

// HasRequiredTokens reports whether every token occurs in the answer text,
// case-insensitively. An empty token list always passes.
func HasRequiredTokens(answer string, tokens []string) bool {
	text := strings.ToLower(answer)
	for _, token := range tokens {
		if !strings.Contains(text, strings.ToLower(token)) {
			return false
		}
	}
	return true
}

// Runner evaluates cases against the index.
type Runner struct {
	embed     Embedder
	store     Searcher
	topK      int
	threshold float64
}

// NewRunner creates an evaluation runner.
func NewRunner(embed Embedder, store Searcher, topK int, threshold float64) *Runner {
	return &Runner{embed: embed, store: store, topK: topK, threshold: threshold}
}

// Run scores every case. A case counts as a hit when the concatenated
// answers of all above-threshold candidates contain its required tokens;
// a case with no above-threshold candidate counts as no_evidence. Cases
// with an empty query stay in the total but are never hits.
func (r *Runner) Run(ctx context.Context, cases []Case) (Report, error) {
	rep := Report{Total: len(cases)}

	for _, c := range cases {
		if c.Query == "" {
			continue
		}

		emb, err := r.embed.Embed(ctx, c.Query)
		if err != nil {
			return Report{}, fmt.Errorf("embed query %q: %w", c.Query, err)
		}
		candidates, err := r.store.Search(emb.Embedding, r.topK)
		if err != nil {
			return Report{}, fmt.Errorf("search query %q: %w", c.Query, err)
		}

		var answers []string
		for _, cand := range candidates {
			if cand.Score >= r.threshold {
				answers = append(answers, cand.FAQ.Answer)
			}
		}
		if len(answers) == 0 {
			rep.NoEvidence++
			continue
		}
		if HasRequiredTokens(strings.Join(answers, "\n"), c.MustContain) {
			rep.Hits++
		}
	}

	if rep.Total > 0 {
		rep.HitRate = math.Round(float64(rep.Hits)/float64(rep.Total)*1000) / 1000
	}
	return rep, nil
}
