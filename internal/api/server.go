package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pbaille/diary/internal/diary"
	"github.com/pbaille/diary/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Diary is the subset of diary.Service the API needs
type Diary interface {
	NewDraft() domain.Entry
	Search(ctx context.Context, q string) ([]domain.Entry, error)
	Get(ctx context.Context, ts time.Time) (domain.Entry, error)
	Save(ctx context.Context, req diary.SaveRequest) (domain.Entry, error)
	Delete(ctx context.Context, ts time.Time) error
}

// Server handles HTTP requests for the diary API
type Server struct {
	diary    Diary
	gatherer prometheus.Gatherer
	log      *slog.Logger
}

// New creates a new API server. gatherer may be nil to disable /metrics.
func New(d Diary, gatherer prometheus.Gatherer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{diary: d, gatherer: gatherer, log: log.With("component", "api")}
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Entries
	mux.HandleFunc("GET /entries", s.searchEntries)
	mux.HandleFunc("POST /entries", s.saveEntry)
	mux.HandleFunc("GET /entries/{timestamp}", s.getEntry)
	mux.HandleFunc("DELETE /entries/{timestamp}", s.deleteEntry)
	mux.HandleFunc("GET /drafts/new", s.newDraft)

	// Vocabulary
	mux.HandleFunc("GET /emotions", s.listEmotions)

	// Health check
	mux.HandleFunc("GET /health", s.health)

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return withCORS(mux)
}

// withCORS adds CORS headers for frontend development
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listEmotions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"emotions": domain.Emotions()})
}

func (s *Server) newDraft(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.diary.NewDraft())
}

// SaveEntryRequest is the request body for saving an entry
type SaveEntryRequest struct {
	Text      string     `json:"text"`
	Emotion   string     `json:"emotion,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func (s *Server) saveEntry(w http.ResponseWriter, r *http.Request) {
	var req SaveEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	saveReq := diary.SaveRequest{Text: req.Text, Emotion: req.Emotion}
	if req.Timestamp != nil {
		saveReq.Timestamp = *req.Timestamp
	}

	entry, err := s.diary.Save(r.Context(), saveReq)
	if err != nil {
		s.writeServiceError(w, "save entry", err)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// statusFor maps service errors to HTTP status codes for every route
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidEntry):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrClassification), errors.Is(err, domain.ErrEmptyClassification):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	body := map[string]string{"error": err.Error()}
	var se *diary.SaveError
	if errors.As(err, &se) {
		body["state"] = string(se.State)
	}
	if status >= http.StatusInternalServerError {
		s.log.Error(op, "error", err)
	}
	writeJSON(w, status, body)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	ts, ok := pathTimestamp(w, r)
	if !ok {
		return
	}

	entry, err := s.diary.Get(r.Context(), ts)
	if err != nil {
		s.writeServiceError(w, "get entry", err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	ts, ok := pathTimestamp(w, r)
	if !ok {
		return
	}

	if err := s.diary.Delete(r.Context(), ts); err != nil {
		s.writeServiceError(w, "delete entry", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) searchEntries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	entries, err := s.diary.Search(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, "search entries", err)
		return
	}
	if entries == nil {
		entries = []domain.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"query":   query,
	})
}

func pathTimestamp(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	ts, err := time.Parse(time.RFC3339Nano, r.PathValue("timestamp"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "timestamp must be RFC3339")
		return time.Time{}, false
	}
	return ts, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
