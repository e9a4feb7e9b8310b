package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/kb-router/internal/core/domain"
	"github.com/kirillkom/kb-router/internal/core/ports"
	"github.com/kirillkom/kb-router/internal/core/usecase"
	"github.com/kirillkom/kb-router/internal/observability/metrics"
)

const (
	defaultSessionListLimit = 50
	defaultMessageListLimit = 200
	maxMultipartMemory      = 32 << 20
)

// TrafficLimits configures the request shedding gates in front of the mux.
// Zero values disable the corresponding gate.
type TrafficLimits struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	QueueWait      time.Duration
}

type Router struct {
	askUC    *usecase.AskUseCase
	ingestUC *usecase.IngestUseCase
	sessions ports.SessionStore
	engine   ports.RetrievalEngine
	metrics  *metrics.HTTPServerMetrics
	service  string
	limits   TrafficLimits
	logger   *slog.Logger
}

func NewRouter(
	askUC *usecase.AskUseCase,
	ingestUC *usecase.IngestUseCase,
	sessions ports.SessionStore,
	engine ports.RetrievalEngine,
	m *metrics.HTTPServerMetrics,
	service string,
	limits TrafficLimits,
	logger *slog.Logger,
) *Router {
	return &Router{
		askUC:    askUC,
		ingestUC: ingestUC,
		sessions: sessions,
		engine:   engine,
		metrics:  m,
		service:  service,
		limits:   limits,
		logger:   logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/sessions", rt.sessionCollection)
	mux.HandleFunc("/v1/sessions/", rt.sessionSubtree)
	mux.HandleFunc("/v1/kb/reindex", rt.reindexNow)
	mux.HandleFunc("/v1/kb/documents", rt.uploadDocuments)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var limiter *rate.Limiter
	if rt.limits.RateLimitRPS > 0 {
		burst := rt.limits.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rt.limits.RateLimitRPS), burst)
	}
	queueWait := rt.limits.QueueWait
	if queueWait <= 0 {
		queueWait = time.Second
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.limits.MaxInFlight, queueWait)
	handler = rateLimitMiddleware(limiter, handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) sessionCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.createSession(w, r)
	case http.MethodGet:
		rt.listSessions(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
	}

	session, err := rt.sessions.CreateSession(r.Context(), strings.TrimSpace(req.Title))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (rt *Router) listSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultSessionListLimit)
	sessions, err := rt.sessions.ListSessions(r.Context(), limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// sessionSubtree dispatches /v1/sessions/{id}, /v1/sessions/{id}/messages and
// /v1/sessions/{id}/ask.
func (rt *Router) sessionSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session id is required"})
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		rt.getSession(w, r, sessionID)
	case action == "" && r.Method == http.MethodDelete:
		rt.deleteSession(w, r, sessionID)
	case action == "messages" && r.Method == http.MethodGet:
		rt.listMessages(w, r, sessionID)
	case action == "ask" && r.Method == http.MethodPost:
		rt.ask(w, r, sessionID)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := rt.sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (rt *Router) deleteSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := rt.sessions.DeleteSession(r.Context(), sessionID); err != nil {
		rt.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listMessages(w http.ResponseWriter, r *http.Request, sessionID string) {
	if _, err := rt.sessions.GetSession(r.Context(), sessionID); err != nil {
		rt.writeError(w, r, err)
		return
	}
	limit := queryInt(r, "limit", defaultMessageListLimit)
	messages, err := rt.sessions.ListMessages(r.Context(), sessionID, limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	result, err := rt.askUC.Ask(r.Context(), sessionID, req.Question)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordRouteDecision(rt.service, string(result.Route), time.Since(start))
		if result.Fallback != "" {
			rt.metrics.RecordRouteFallback(rt.service, string(result.Route), string(result.Fallback))
		}
		if result.Route == domain.RouteKnowledgeBase {
			rt.metrics.RecordKBSources(rt.service, len(result.Sources))
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) reindexNow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	stats, err := rt.engine.Reindex(r.Context())
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"docs":   stats.Documents,
		"chunks": stats.Chunks,
	})
}

func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form is required"})
		return
	}

	var uploads []usecase.Upload
	for _, headers := range r.MultipartForm.File {
		for _, header := range headers {
			file, err := header.Open()
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable multipart file"})
				return
			}
			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable multipart file"})
				return
			}
			uploads = append(uploads, usecase.Upload{Filename: header.Filename, Data: data})
		}
	}

	saved, err := rt.ingestUC.UploadDocuments(r.Context(), uploads)
	if rt.metrics != nil {
		rt.metrics.RecordUpload(rt.service, err)
	}
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"files":             saved,
		"reindex_requested": true,
	})
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
