// Package answer turns selected evidence into a grounded, cited reply,
// or a refusal when there is nothing to ground the reply on.
package answer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaabil/faqbot/internal/domain"
)

// Refusal is returned verbatim when no usable evidence exists. The service
// never lets the model answer from its own knowledge.
const Refusal = "No encuentro información fiable para responder a esto. " +
	"¿Quieres que te ponga con una persona del equipo?"

// Composer builds the grounded prompt, calls the completion backend and
// normalizes the reply. In offline mode it answers deterministically from
// the evidence itself instead of calling the backend.
type Composer struct {
	llm          Completer
	systemPrompt string
	offline      bool
}

// New creates an answer composer.
func New(llm Completer, systemPrompt string, offline bool) *Composer {
	return &Composer{llm: llm, systemPrompt: systemPrompt, offline: offline}
}

// Result is a composed reply.
type Result struct {
	Answer       string
	Citations    []string
	UsedEvidence bool
}

// Compose produces the reply for query given the selected evidence. Empty
// evidence yields the refusal without touching the completion backend.
func (c *Composer) Compose(ctx context.Context, query string, evidence []domain.Evidence) (Result, error) {
	if len(evidence) == 0 {
		return Result{Answer: CleanAnswer(Refusal), Citations: []string{}}, nil
	}

	citations := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		citation := FormatCitation(ev.FAQ)
		if citation != "" && !contains(citations, citation) {
			citations = append(citations, citation)
		}
	}

	var raw string
	if c.offline {
		raw = offlineAnswer(query, evidence)
	} else {
		user := fmt.Sprintf(
			"Contexto (evidencia):\n%s\n\nPregunta del usuario: %s",
			buildContext(evidence), query,
		)
		var err error
		raw, err = c.llm.Complete(ctx, c.systemPrompt, user)
		if err != nil {
			return Result{}, fmt.Errorf("complete answer: %w", err)
		}
	}

	return Result{
		Answer:       CleanAnswer(raw),
		Citations:    citations,
		UsedEvidence: true,
	}, nil
}

// offlineAnswer returns the stored answer of the evidence item whose
// question matches the query by containment, or of the first item.
func offlineAnswer(query string, evidence []domain.Evidence) string {
	qn := strings.ToLower(strings.TrimSpace(query))
	if qn != "" {
		for _, ev := range evidence {
			dn := strings.ToLower(strings.TrimSpace(ev.FAQ.Question))
			if strings.Contains(dn, qn) || strings.Contains(qn, dn) {
				return ev.FAQ.Answer
			}
		}
	}
	return evidence[0].FAQ.Answer
}

// buildContext renders the evidence as labeled blocks the system prompt
// instructs the model to stay within.
func buildContext(evidence []domain.Evidence) string {
	sections := make([]string, 0, len(evidence))
	for _, ev := range evidence {
		category := strings.TrimSpace(ev.FAQ.Category)
		if category == "" {
			category = "Información"
		}
		question := strings.TrimSpace(ev.FAQ.Question)
		answer := strings.TrimSpace(ev.FAQ.Answer)

		lines := []string{"Categoría: " + category}
		if question != "" {
			lines = append(lines, "Pregunta relacionada: "+question)
		}
		if answer != "" {
			lines = append(lines, "Respuesta sugerida: "+answer)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	return strings.Join(sections, "\n\n")
}

// FormatCitation renders one evidence item as a human-readable source line.
func FormatCitation(f domain.FAQ) string {
	cat := f.Category
	if cat == "" {
		cat = "Fuente"
	}
	question := f.Question
	if question == "" {
		question = "FAQ"
	}
	citation := strings.TrimSpace(cat + " – " + question)
	if f.SourceURL != "" {
		citation = citation + " (" + f.SourceURL + ")"
	}
	return citation
}

var (
	catTagRe      = regexp.MustCompile(`\[CAT:[^\]]*\]`)
	sourcesLineRe = regexp.MustCompile(`(?im)^\s*(Fuentes?:|Sources?:).*$`)
	qaPrefixRe    = regexp.MustCompile(`(?im)^\s*(?:Q|A)\s*:\s*`)
)

// CleanAnswer strips model artifacts from a raw completion: category tags,
// self-appended source lines, Q:/A: prefixes and runs of blank lines.
func CleanAnswer(text string) string {
	if text == "" {
		return ""
	}

	cleaned := catTagRe.ReplaceAllString(text, "")
	cleaned = sourcesLineRe.ReplaceAllString(cleaned, "")
	cleaned = qaPrefixRe.ReplaceAllString(cleaned, "")

	var lines []string
	for _, raw := range strings.Split(cleaned, "\n") {
		stripped := strings.TrimSpace(raw)
		if stripped == "" {
			if len(lines) > 0 && lines[len(lines)-1] != "" {
				lines = append(lines, "")
			}
			continue
		}
		lines = append(lines, stripped)
	}
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
