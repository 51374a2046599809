package embcache

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kaabil/faqbot/internal/cache"
	"github.com/kaabil/faqbot/internal/domain"
)

type mapStore struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func newMapStore() *mapStore {
	return &mapStore{data: make(map[string][]byte)}
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrKeyNotFound
	}
	return v, nil
}

func (m *mapStore) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

type countingEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (e *countingEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	e.calls++
	if e.err != nil {
		return domain.EmbeddingResult{}, e.err
	}
	return domain.EmbeddingResult{Embedding: e.vec, TotalTokens: 7}, nil
}

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &countingEmbedder{vec: []float32{0.1, -0.5, 3}}
	c := New(inner, newMapStore(), "text-embedding-3-small", nil, zap.NewNop())

	first, err := c.Embed(context.Background(), "hola")
	if err != nil {
		t.Fatalf("first Embed: %v", err)
	}
	if first.TotalTokens != 7 {
		t.Errorf("miss TotalTokens = %d, want 7", first.TotalTokens)
	}

	second, err := c.Embed(context.Background(), "hola")
	if err != nil {
		t.Fatalf("second Embed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit TotalTokens = %d, want 0", second.TotalTokens)
	}
	if len(second.Embedding) != 3 || second.Embedding[2] != 3 {
		t.Errorf("cached vector mismatch: %v", second.Embedding)
	}
}

func TestEmbed_ModelScopesKey(t *testing.T) {
	s := newMapStore()
	inner := &countingEmbedder{vec: []float32{1}}

	a := New(inner, s, "model-a", nil, zap.NewNop())
	b := New(inner, s, "model-b", nil, zap.NewNop())

	if _, err := a.Embed(context.Background(), "hola"); err != nil {
		t.Fatalf("Embed a: %v", err)
	}
	if _, err := b.Embed(context.Background(), "hola"); err != nil {
		t.Fatalf("Embed b: %v", err)
	}
	if inner.calls != 2 {
		t.Errorf("inner called %d times, want 2 (distinct keys per model)", inner.calls)
	}
}

func TestEmbed_CacheFailuresIgnored(t *testing.T) {
	s := newMapStore()
	s.getErr = errors.New("redis down")
	s.setErr = errors.New("redis down")
	inner := &countingEmbedder{vec: []float32{1}}
	c := New(inner, s, "m", nil, zap.NewNop())

	res, err := c.Embed(context.Background(), "hola")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(res.Embedding) != 1 {
		t.Errorf("unexpected result %v", res)
	}
}

func TestEmbed_InnerErrorPropagates(t *testing.T) {
	inner := &countingEmbedder{err: domain.ErrEmbeddingProvider}
	c := New(inner, newMapStore(), "m", nil, zap.NewNop())

	_, err := c.Embed(context.Background(), "hola")
	if !errors.Is(err, domain.ErrEmbeddingProvider) {
		t.Fatalf("err = %v, want ErrEmbeddingProvider", err)
	}
}

func TestBytesToVector_RejectsOddLength(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for non-multiple-of-4 payload")
	}
}
