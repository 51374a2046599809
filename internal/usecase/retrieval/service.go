// Package retrieval implements evidence selection: deciding which retrieved
// FAQ entries, if any, are usable grounding for an answer.
package retrieval

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kaabil/faqbot/internal/domain"
)

// Service filters and re-ranks nearest-neighbor candidates. A pure vector
// threshold is too permissive for short, templated FAQ questions, so a
// lexical-agreement gate runs after it, before any completion call is spent
// on a wrong context.
type Service struct {
	threshold float64
	rerankK   int
	offline   bool
}

// New creates an evidence selector. threshold is the minimum similarity
// score, rerankK caps the re-ranked result, offline relaxes the threshold
// filter when the scoring signal is known to be unreliable.
func New(threshold float64, rerankK int, offline bool) *Service {
	return &Service{threshold: threshold, rerankK: rerankK, offline: offline}
}

// Threshold returns the configured similarity threshold.
func (s *Service) Threshold() float64 { return s.threshold }

// Select returns the candidates usable as evidence, in grounding order.
// Never fails: an empty result is the refusal signal. Deterministic for
// identical inputs.
func (s *Service) Select(candidates []domain.Evidence, query string) []domain.Evidence {
	kept := make([]domain.Evidence, 0, len(candidates))
	for _, ev := range candidates {
		if ev.Score >= s.threshold {
			kept = append(kept, ev)
		}
	}
	// Offline backends score uniformly low; keep the raw candidate set
	// rather than refusing everything.
	if s.offline && len(kept) == 0 {
		kept = append(kept, candidates...)
	}

	// A candidate question contained in the query (or vice versa) is a
	// certain match: return it alone.
	qn := strings.ToLower(strings.TrimSpace(query))
	if qn != "" {
		for _, ev := range kept {
			dn := strings.ToLower(strings.TrimSpace(ev.FAQ.Question))
			if strings.Contains(qn, dn) || strings.Contains(dn, qn) {
				return []domain.Evidence{ev}
			}
		}
	}

	type scoredDoc struct {
		ev      domain.Evidence
		overlap float64
	}
	var scored []scoredDoc
	for _, ev := range kept {
		if overlap := tokenOverlap(query, ev.FAQ.Question); overlap >= 0.5 {
			scored = append(scored, scoredDoc{ev: ev, overlap: overlap})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].overlap > scored[j].overlap
	})

	k := s.rerankK
	if k > len(scored) {
		k = len(scored)
	}
	if k > 0 {
		out := make([]domain.Evidence, 0, k)
		for _, sd := range scored[:k] {
			out = append(out, domain.Evidence{FAQ: sd.ev.FAQ, Score: 1.0})
		}
		return out
	}

	// Nothing passed the lexical gate: fall back to the single best
	// candidate rather than refusing a non-empty input.
	if len(kept) > 0 {
		return kept[:1]
	}
	return nil
}

// tokenOverlap is the asymmetric token-set overlap
// |query ∩ doc| / |query|. An empty query token set scores 0.
func tokenOverlap(query, doc string) float64 {
	qs := tokenSet(query)
	if len(qs) == 0 {
		return 0
	}
	ds := tokenSet(doc)

	matched := 0
	for tok := range qs {
		if ds[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(qs))
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		folded := foldDiacritics(tok)
		if isAlpha(tok) || isAlpha(folded) {
			set[folded] = true
		}
	}
	return set
}

// foldDiacritics maps the accented vowels of the service's language to
// their unaccented form. Input is already lowercased.
var diacriticFolder = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u")

func foldDiacritics(s string) string {
	return diacriticFolder.Replace(s)
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
