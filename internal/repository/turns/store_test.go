package turns

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kaabil/faqbot/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "logs.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleTurn(session string, latency int, evidence bool) domain.Turn {
	var citations []string
	if evidence {
		citations = []string{"Atención – ¿Cuál es el horario de atención?"}
	}
	return domain.Turn{
		TS:           "2026-08-31T10:00:00Z",
		SessionID:    session,
		IP:           "127.0.0.1",
		UserAgent:    "test-agent",
		Query:        "¿Cuál es el horario de atención?",
		Answer:       "De 9 a 18.",
		UsedEvidence: evidence,
		Citations:    citations,
		LatencyMS:    latency,
		Provider:     "openai",
		Model:        "gpt-5-nano",
		TopK:         4,
		Threshold:    0.30,
	}
}

func TestInsertAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, sampleTurn("s1", 120, true)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	second := sampleTurn("s2", 80, false)
	second.Citations = nil
	if err := s.Insert(ctx, second); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].SessionID != "s2" || got[1].SessionID != "s1" {
		t.Errorf("order = [%s %s], want [s2 s1]", got[0].SessionID, got[1].SessionID)
	}
	if got[0].UsedEvidence {
		t.Error("second turn should carry used_evidence = false")
	}
	if len(got[0].Citations) != 0 {
		t.Errorf("nil citations should round-trip empty, got %v", got[0].Citations)
	}
	if len(got[1].Citations) != 1 {
		t.Errorf("citations lost: %v", got[1].Citations)
	}
	if got[1].Threshold != 0.30 || got[1].TopK != 4 {
		t.Errorf("parameters lost: %+v", got[1])
	}
}

func TestSummarize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, turn := range []domain.Turn{
		sampleTurn("s1", 100, true),
		sampleTurn("s1", 200, true),
		sampleTurn("s2", 300, false),
	} {
		if err := s.Insert(ctx, turn); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	sum, err := s.Summarize(ctx, "2026-08-31T00:00:00Z", "2026-08-31T23:59:59Z")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Total != 3 {
		t.Errorf("Total = %d, want 3", sum.Total)
	}
	if sum.WithEvidence != 2 {
		t.Errorf("WithEvidence = %d, want 2", sum.WithEvidence)
	}
	if sum.WithCitations != 2 {
		t.Errorf("WithCitations = %d, want 2", sum.WithCitations)
	}
	if sum.AvgLatencyMS != 200 {
		t.Errorf("AvgLatencyMS = %g, want 200", sum.AvgLatencyMS)
	}
	if sum.MaxLatencyMS != 300 {
		t.Errorf("MaxLatencyMS = %d, want 300", sum.MaxLatencyMS)
	}
	if sum.DistinctSessions != 2 {
		t.Errorf("DistinctSessions = %d, want 2", sum.DistinctSessions)
	}
}

func TestSummarize_EmptyRange(t *testing.T) {
	s := newTestStore(t)

	sum, err := s.Summarize(context.Background(), "2027-01-01T00:00:00Z", "2027-01-02T00:00:00Z")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Total != 0 || sum.AvgLatencyMS != 0 {
		t.Errorf("empty range summary = %+v", sum)
	}
}

func TestInsert_ConcurrentAppends(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Insert(ctx, sampleTurn("s", 10, true)); err != nil {
				t.Errorf("Insert: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Recent(ctx, writers*2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != writers {
		t.Errorf("len = %d, want %d", len(got), writers)
	}
}
