package eval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kaabil/faqbot/internal/domain"
)

type mockEmbedder struct {
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text)), 0}}, nil
}

type mockSearcher struct {
	byQueryLen map[int][]domain.Evidence
}

func (m *mockSearcher) Search(query []float32, _ int) ([]domain.Evidence, error) {
	return m.byQueryLen[int(query[0])], nil
}

func evidence(answer string, score float64) domain.Evidence {
	return domain.Evidence{FAQ: domain.FAQ{Answer: answer}, Score: score}
}

func TestRun_HitsNoEvidenceAndSkips(t *testing.T) {
	searcher := &mockSearcher{byQueryLen: map[int][]domain.Evidence{
		len("horario"): {evidence("Abrimos de 9 a 18.", 0.8)},
		len("envios"):  {evidence("Sin datos de plazos.", 0.7)},
		len("otro"):    {evidence("Irrelevante.", 0.1)},
	}}
	runner := NewRunner(&mockEmbedder{}, searcher, 4, 0.30)

	rep, err := runner.Run(context.Background(), []Case{
		{Query: "horario", MustContain: []string{"9", "18"}},
		{Query: "envios", MustContain: []string{"48 horas"}},
		{Query: "otro", MustContain: []string{"algo"}},
		{Query: ""},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rep.Total != 4 {
		t.Errorf("total = %d, want 4 (empty query still counts)", rep.Total)
	}
	if rep.Hits != 1 {
		t.Errorf("hits = %d, want 1", rep.Hits)
	}
	if rep.NoEvidence != 1 {
		t.Errorf("no_evidence = %d, want 1", rep.NoEvidence)
	}
	if rep.HitRate != 0.25 {
		t.Errorf("hit_rate = %g, want 0.25", rep.HitRate)
	}
}

func TestRun_TokensMatchAcrossConcatenatedAnswers(t *testing.T) {
	searcher := &mockSearcher{byQueryLen: map[int][]domain.Evidence{
		len("pedido"): {
			evidence("El plazo es de 48 horas.", 0.9),
			evidence("La devolución es gratuita.", 0.6),
			evidence("Descartado por score.", 0.1),
		},
	}}
	runner := NewRunner(&mockEmbedder{}, searcher, 4, 0.30)

	rep, err := runner.Run(context.Background(), []Case{
		{Query: "pedido", MustContain: []string{"48 horas", "gratuita"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Hits != 1 {
		t.Errorf("hits = %d, want 1 (tokens spread over passing answers)", rep.Hits)
	}
}

func TestRun_HitRateRounded(t *testing.T) {
	searcher := &mockSearcher{byQueryLen: map[int][]domain.Evidence{
		len("a"):   {evidence("sí", 0.9)},
		len("bb"):  {evidence("no evidencia", 0.1)},
		len("ccc"): {evidence("no evidencia", 0.1)},
	}}
	runner := NewRunner(&mockEmbedder{}, searcher, 4, 0.30)

	rep, err := runner.Run(context.Background(), []Case{
		{Query: "a", MustContain: []string{"sí"}},
		{Query: "bb"},
		{Query: "ccc"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.HitRate != 0.333 {
		t.Errorf("hit_rate = %g, want 0.333", rep.HitRate)
	}
}

func TestRun_EmptySet(t *testing.T) {
	runner := NewRunner(&mockEmbedder{}, &mockSearcher{}, 4, 0.30)
	rep, err := runner.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Total != 0 || rep.HitRate != 0 {
		t.Errorf("report = %+v, want zero values", rep)
	}
}

func TestRun_EmbedErrorPropagates(t *testing.T) {
	wantErr := errors.New("remote down")
	runner := NewRunner(&mockEmbedder{err: wantErr}, &mockSearcher{}, 4, 0.30)

	_, err := runner.Run(context.Background(), []Case{{Query: "hola"}})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped embed error", err)
	}
}

func TestHasRequiredTokens(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		tokens []string
		want   bool
	}{
		{"all present", "Abrimos de 9 a 18 horas.", []string{"9", "18"}, true},
		{"case insensitive", "Envío GRATUITO a partir de 50€.", []string{"gratuito"}, true},
		{"one missing", "Abrimos de 9 a 18.", []string{"9", "sábado"}, false},
		{"empty token list", "cualquier texto", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasRequiredTokens(tt.answer, tt.tokens); got != tt.want {
				t.Errorf("HasRequiredTokens() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eval_set.json")
	content := `[
		{"query": "¿Cuál es el horario?", "must_contain": ["9", "18"]},
		{"query": "¿Hacéis envíos?"}
	]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cases, err := LoadSet(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("cases = %d, want 2", len(cases))
	}
	if cases[0].Query != "¿Cuál es el horario?" || len(cases[0].MustContain) != 2 {
		t.Errorf("cases[0] = %+v", cases[0])
	}
}

func TestLoadSet_NotAList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "eval_set.json")
	if err := os.WriteFile(path, []byte(`{"query": "solo"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadSet(path)
	if err == nil || !strings.Contains(err.Error(), "JSON list") {
		t.Fatalf("err = %v, want list-shape error", err)
	}
}

func TestLoadSet_MissingFile(t *testing.T) {
	if _, err := LoadSet(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
