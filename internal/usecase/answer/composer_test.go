package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kaabil/faqbot/internal/domain"
)

type mockCompleter struct {
	reply  string
	err    error
	calls  int
	system string
	user   string
}

func (m *mockCompleter) Complete(_ context.Context, system, user string) (string, error) {
	m.calls++
	m.system = system
	m.user = user
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func evidence() []domain.Evidence {
	return []domain.Evidence{
		{
			FAQ: domain.FAQ{
				ID:        3,
				Category:  "Envíos",
				Question:  "¿Cuál es el plazo de entrega?",
				Answer:    "Entre 2 y 5 días laborables.",
				SourceURL: "https://example.com/envios",
			},
			Score: 1.0,
		},
	}
}

func TestCompose_RefusesWithoutEvidence(t *testing.T) {
	llm := &mockCompleter{reply: "no debería llamarse"}
	c := New(llm, "prompt", false)

	got, err := c.Compose(context.Background(), "¿algo?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Answer != Refusal {
		t.Errorf("answer = %q, want the refusal text", got.Answer)
	}
	if got.UsedEvidence {
		t.Error("refusal must report used_evidence = false")
	}
	if got.Citations == nil || len(got.Citations) != 0 {
		t.Errorf("refusal citations = %v, want empty non-nil slice", got.Citations)
	}
	if llm.calls != 0 {
		t.Errorf("completion backend called %d times on refusal, want 0", llm.calls)
	}
}

func TestCompose_GroundedAnswer(t *testing.T) {
	llm := &mockCompleter{reply: "  Entre 2 y 5 días laborables.  "}
	c := New(llm, "responde solo con el contexto", false)

	got, err := c.Compose(context.Background(), "¿cuánto tarda el envío?", evidence())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Answer != "Entre 2 y 5 días laborables." {
		t.Errorf("answer = %q", got.Answer)
	}
	if !got.UsedEvidence {
		t.Error("grounded answer must report used_evidence = true")
	}
	want := "Envíos – ¿Cuál es el plazo de entrega? (https://example.com/envios)"
	if len(got.Citations) != 1 || got.Citations[0] != want {
		t.Errorf("citations = %v, want [%q]", got.Citations, want)
	}

	if llm.system != "responde solo con el contexto" {
		t.Errorf("system prompt = %q", llm.system)
	}
	if !strings.HasPrefix(llm.user, "Contexto (evidencia):\n") {
		t.Errorf("user message missing context header: %q", llm.user)
	}
	for _, fragment := range []string{
		"Categoría: Envíos",
		"Pregunta relacionada: ¿Cuál es el plazo de entrega?",
		"Respuesta sugerida: Entre 2 y 5 días laborables.",
		"Pregunta del usuario: ¿cuánto tarda el envío?",
	} {
		if !strings.Contains(llm.user, fragment) {
			t.Errorf("user message missing %q:\n%s", fragment, llm.user)
		}
	}
}

func TestCompose_CompleterError(t *testing.T) {
	wantErr := errors.New("backend down")
	c := New(&mockCompleter{err: wantErr}, "prompt", false)

	_, err := c.Compose(context.Background(), "consulta", evidence())
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want wrapped %v", err, wantErr)
	}
}

func TestCompose_OfflineAnswersFromEvidence(t *testing.T) {
	llm := &mockCompleter{reply: "no debería llamarse"}
	c := New(llm, "prompt", true)

	evs := []domain.Evidence{
		{FAQ: domain.FAQ{Category: "Cuenta", Question: "¿Cómo cambio la contraseña?", Answer: "Desde ajustes."}},
		{FAQ: domain.FAQ{Category: "Envíos", Question: "¿Cuál es el plazo de entrega?", Answer: "Entre 2 y 5 días."}},
	}
	got, err := c.Compose(context.Background(), "plazo de entrega", evs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Answer != "Entre 2 y 5 días." {
		t.Errorf("answer = %q, want the matching item's stored answer", got.Answer)
	}
	if llm.calls != 0 {
		t.Errorf("completion backend called %d times in offline mode, want 0", llm.calls)
	}
}

func TestCompose_OfflineFallsBackToFirstItem(t *testing.T) {
	c := New(&mockCompleter{}, "prompt", true)

	evs := []domain.Evidence{
		{FAQ: domain.FAQ{Question: "¿Hay tienda física?", Answer: "Sí, en Madrid."}},
		{FAQ: domain.FAQ{Question: "¿Cómo devuelvo un pedido?", Answer: "Por mensajería."}},
	}
	got, err := c.Compose(context.Background(), "consulta sin relación", evs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Answer != "Sí, en Madrid." {
		t.Errorf("answer = %q, want the first item's stored answer", got.Answer)
	}
}

func TestCompose_DeduplicatesCitations(t *testing.T) {
	llm := &mockCompleter{reply: "respuesta"}
	c := New(llm, "prompt", false)

	f := domain.FAQ{Category: "Envíos", Question: "¿Cuál es el plazo?", Answer: "Dos días."}
	evs := []domain.Evidence{{FAQ: f, Score: 1}, {FAQ: f, Score: 1}}

	got, err := c.Compose(context.Background(), "consulta", evs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Citations) != 1 {
		t.Errorf("citations = %v, want a single deduplicated entry", got.Citations)
	}
}

func TestFormatCitation_Defaults(t *testing.T) {
	tests := []struct {
		name string
		faq  domain.FAQ
		want string
	}{
		{
			"full",
			domain.FAQ{Category: "Envíos", Question: "¿Plazo?", SourceURL: "https://x.test/a"},
			"Envíos – ¿Plazo? (https://x.test/a)",
		},
		{
			"no url",
			domain.FAQ{Category: "Envíos", Question: "¿Plazo?"},
			"Envíos – ¿Plazo?",
		},
		{
			"empty fields",
			domain.FAQ{},
			"Fuente – FAQ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatCitation(tt.faq); got != tt.want {
				t.Errorf("FormatCitation() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanAnswer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{
			"category tag stripped",
			"[CAT:Envíos] El plazo es de dos días.",
			"El plazo es de dos días.",
		},
		{
			"sources line removed",
			"El plazo es de dos días.\nFuentes: FAQ interna",
			"El plazo es de dos días.",
		},
		{
			"english sources line removed",
			"Two days.\nSources: internal FAQ",
			"Two days.",
		},
		{
			"qa prefixes removed",
			"Q: ¿plazo?\nA: Dos días.",
			"¿plazo?\nDos días.",
		},
		{
			"blank runs collapsed",
			"Primera línea.\n\n\n\nSegunda línea.\n\n",
			"Primera línea.\n\nSegunda línea.",
		},
		{
			"surrounding whitespace trimmed",
			"\n\n  hola  \n",
			"hola",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanAnswer(tt.in); got != tt.want {
				t.Errorf("CleanAnswer(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
