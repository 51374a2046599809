// Package chi exposes the question-answering service over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kaabil/faqbot/internal/domain"
	"github.com/kaabil/faqbot/internal/logger"
	"github.com/kaabil/faqbot/internal/repository/turns"
	"github.com/kaabil/faqbot/internal/usecase/answer"
	askuc "github.com/kaabil/faqbot/internal/usecase/ask"
	healthuc "github.com/kaabil/faqbot/internal/usecase/health"
)

const (
	defaultPanelHours = 24
	defaultTurnLimit  = 50
	maxTurnLimit      = 200
)

// Error response codes returned to clients.
const (
	codeBadRequest         = "bad_request"
	codeUnauthorized       = "unauthorized"
	codeIndexUnavailable   = "index_unavailable"
	codeMissingCredential  = "missing_credential"
	codeDegenerateQuery    = "degenerate_query"
	codeEmbeddingProvider  = "embedding_provider_error"
	codeCompletionProvider = "completion_provider_error"
	codeProviderProtocol   = "provider_protocol_error"
	codeVectorDimMismatch  = "vector_dim_mismatch"
	codeInternalError      = "internal_error"
	codeTurnLogUnavailable = "turn_log_unavailable"
)

// Asker answers one query end to end.
type Asker interface {
	Ask(ctx context.Context, req askuc.Request) (answer.Result, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// TurnReader reads the turn log for the operator panel.
type TurnReader interface {
	Summarize(ctx context.Context, from, to string) (turns.Summary, error)
	Recent(ctx context.Context, limit int) ([]domain.Turn, error)
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	ask           Asker
	health        HealthChecker
	turns         TurnReader
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(ask Asker, health HealthChecker, turns TurnReader, logger *zap.Logger) *Server {
	s := &Server{
		ask:    ask,
		health: health,
		turns:  turns,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusServiceUnavailable, codeIndexUnavailable),
		sentinelHandler(domain.ErrMissingAPIKey, http.StatusInternalServerError, codeMissingCredential),
		sentinelHandler(domain.ErrDegenerateVector, http.StatusUnprocessableEntity, codeDegenerateQuery),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusInternalServerError, codeVectorDimMismatch),
		sentinelHandler(domain.ErrEmbeddingProvider, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrCompletionProvider, http.StatusBadGateway, codeCompletionProvider),
		sentinelHandler(domain.ErrProtocol, http.StatusBadGateway, codeProviderProtocol),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Post("/ask", s.Ask)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/panel/summary", s.PanelSummary)
	r.Get("/panel/turns", s.PanelTurns)
}

type askRequest struct {
	Query       string `json:"query"`
	ShowSources bool   `json:"show_sources"`
}

type askResponse struct {
	Respuesta string    `json:"respuesta"`
	Fuentes   *[]string `json:"fuentes,omitempty"`
	Evidencia *bool     `json:"evidencia,omitempty"`
}

// Ask handles POST /ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "query is required")
		return
	}

	sessionID := r.Header.Get("X-Session-Id")
	if sessionID == "" {
		sessionID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	result, err := s.ask.Ask(r.Context(), askuc.Request{
		Query:     req.Query,
		SessionID: sessionID,
		IP:        clientIP(r),
		UserAgent: r.Header.Get("User-Agent"),
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := askResponse{Respuesta: result.Answer}
	if req.ShowSources {
		fuentes := result.Citations
		if fuentes == nil {
			fuentes = []string{}
		}
		evidencia := result.UsedEvidence
		resp.Fuentes = &fuentes
		resp.Evidencia = &evidencia
	}
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type panelSummaryResponse struct {
	From    string        `json:"from"`
	To      string        `json:"to"`
	Hours   int           `json:"hours"`
	Summary turns.Summary `json:"summary"`
}

// PanelSummary handles GET /panel/summary.
func (s *Server) PanelSummary(w http.ResponseWriter, r *http.Request) {
	hours := defaultPanelHours
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "hours must be a positive integer")
			return
		}
		hours = parsed
	}

	now := time.Now().UTC().Truncate(time.Second)
	from := now.Add(-time.Duration(hours) * time.Hour).Format(time.RFC3339)
	to := now.Format(time.RFC3339)

	summary, err := s.turns.Summarize(r.Context(), from, to)
	if err != nil {
		s.logger.Error("panel summary failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeTurnLogUnavailable, "turn log unavailable")
		return
	}

	writeJSON(w, http.StatusOK, panelSummaryResponse{
		From:    from,
		To:      to,
		Hours:   hours,
		Summary: summary,
	})
}

type panelTurnsResponse struct {
	Turns []domain.Turn `json:"turns"`
}

// PanelTurns handles GET /panel/turns.
func (s *Server) PanelTurns(w http.ResponseWriter, r *http.Request) {
	limit := defaultTurnLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, codeBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > maxTurnLimit {
		limit = maxTurnLimit
	}

	recent, err := s.turns.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("panel turns failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, codeTurnLogUnavailable, "turn log unavailable")
		return
	}
	if recent == nil {
		recent = []domain.Turn{}
	}

	writeJSON(w, http.StatusOK, panelTurnsResponse{Turns: recent})
}

// handleDomainError logs through the request-scoped logger so the entry
// carries the request id from the wide-event middleware.
func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

// clientIP strips the port from RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrIndexUnavailable,
		domain.ErrMissingAPIKey,
		domain.ErrDegenerateVector,
		domain.ErrVectorDimMismatch,
		domain.ErrEmbeddingProvider,
		domain.ErrCompletionProvider,
		domain.ErrProtocol,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}
