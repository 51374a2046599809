// Package index implements the read-only FAQ vector index: a flat
// inner-product index over unit-normalized embeddings with a positional
// metadata sidecar. Artifacts are built offline by the ingest command and
// loaded wholesale into memory.
package index

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/kaabil/faqbot/internal/domain"
)

// Store is an immutable in-memory vector index paired with FAQ metadata.
// Row i of the vector matrix corresponds to records[i].
type Store struct {
	dim     int
	vectors [][]float32
	records []domain.FAQ
	model   string
}

// Load reads the vector file and metadata sidecar. A missing artifact maps
// to domain.ErrIndexUnavailable naming the absent paths, so the caller can
// answer 503 until ingestion has run.
func Load(indexPath, metaPath string) (*Store, error) {
	var missing []string
	for _, p := range []string{indexPath, metaPath} {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf(
			"%w: run the ingest command to build the artifacts (%s)",
			domain.ErrIndexUnavailable, strings.Join(missing, ", "),
		)
	}

	dim, vectors, err := readVectors(indexPath)
	if err != nil {
		return nil, fmt.Errorf("read vector file: %w", err)
	}

	meta, err := readMeta(metaPath)
	if err != nil {
		return nil, fmt.Errorf("read metadata file: %w", err)
	}

	return &Store{
		dim:     dim,
		vectors: vectors,
		records: meta.Items,
		model:   meta.EmbeddingModel,
	}, nil
}

// Len returns the number of indexed vectors.
func (s *Store) Len() int { return len(s.vectors) }

// Dimensions returns the embedding dimension.
func (s *Store) Dimensions() int { return s.dim }

// EmbeddingModel returns the model the stored vectors were built with.
func (s *Store) EmbeddingModel() string { return s.model }

// Search normalizes the query vector and returns the top-k rows by inner
// product (cosine similarity over unit vectors), descending score with ties
// broken by ascending row id. Rows without a metadata record yield a
// zero-value placeholder instead of failing the search.
func (s *Store) Search(query []float32, k int) ([]domain.Evidence, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf(
			"%w: query has %d dimensions, index has %d",
			domain.ErrVectorDimMismatch, len(query), s.dim,
		)
	}

	var norm float64
	for _, v := range query {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil, domain.ErrDegenerateVector
	}

	unit := make([]float64, len(query))
	for i, v := range query {
		unit[i] = float64(v) / norm
	}

	type hit struct {
		row   int
		score float64
	}
	hits := make([]hit, len(s.vectors))
	for row, vec := range s.vectors {
		var dot float64
		for i, v := range vec {
			dot += unit[i] * float64(v)
		}
		hits[row] = hit{row: row, score: dot}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].row < hits[j].row
	})

	if k > len(hits) {
		k = len(hits)
	}
	if k < 0 {
		k = 0
	}

	out := make([]domain.Evidence, 0, k)
	for _, h := range hits[:k] {
		var rec domain.FAQ
		if h.row < len(s.records) {
			rec = s.records[h.row]
		}
		out = append(out, domain.Evidence{FAQ: rec, Score: h.score})
	}
	return out, nil
}
