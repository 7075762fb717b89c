package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/teamexport/slacksnap/internal/config"
	"github.com/teamexport/slacksnap/pkg/export"
	"github.com/teamexport/slacksnap/pkg/models"
	"github.com/teamexport/slacksnap/pkg/slack"
)

// adminSecretHeader carries the admin secret on export requests.
const adminSecretHeader = "X-Admin-Secret"

// Exporter runs one full workspace export.
type Exporter interface {
	Run(ctx context.Context) (*models.ExportSnapshot, error)
}

// SnapshotSink receives a finished snapshot after a successful export.
// Sink failures are logged, not surfaced: the export itself succeeded.
type SnapshotSink interface {
	Consume(ctx context.Context, snap *models.ExportSnapshot) error
}

// Server is the HTTP trigger surface in front of the export pipeline.
// Single-flight across all trigger paths is the exporter's concern:
// callers wrap the aggregator in export.NewSingleFlight so scheduled
// and HTTP-triggered runs share one guard.
type Server struct {
	cfg      *config.Config
	exporter Exporter
	hub      *ProgressHub
	sinks    []SnapshotSink
}

// NewServer creates the API server. hub may be nil when progress
// streaming is not wanted.
func NewServer(cfg *config.Config, exporter Exporter, hub *ProgressHub, sinks ...SnapshotSink) *Server {
	return &Server{
		cfg:      cfg,
		exporter: exporter,
		hub:      hub,
		sinks:    sinks,
	}
}

// Router returns the HTTP handler for the server
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/export", s.handleExport).Methods(http.MethodPost)
	if s.hub != nil {
		r.HandleFunc("/api/v1/export/progress", s.hub.HandleWS).Methods(http.MethodGet)
	}

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST for /api/v1/export")
	})

	return s.withMiddleware(r)
}

// withMiddleware wraps the handler with common middleware
func (s *Server) withMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+adminSecretHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

// handleHealth returns the health status of the server
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "slacksnap",
	})
}

// handleExport authorizes the caller and runs a full export, responding
// with the snapshot plus summary counters, or a structured error whose
// status class reflects the remote error kind.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid admin secret")
		return
	}

	snapshot, err := s.exporter.Run(r.Context())
	if err != nil {
		status, kind := classifyFailure(err)
		writeError(w, status, kind, err.Error())
		return
	}

	for _, sink := range s.sinks {
		if err := sink.Consume(r.Context(), snapshot); err != nil {
			log.Printf("[api] snapshot sink failed: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       true,
		"summary":  snapshot.Summary(),
		"snapshot": snapshot,
	})
}

// authorize compares the SHA-256 digest of the presented secret against
// the configured hash in constant time. An unset hash denies everything.
func (s *Server) authorize(r *http.Request) bool {
	stored := s.cfg.Slack.AdminSecretHash
	if stored == "" {
		return false
	}

	secret := r.Header.Get(adminSecretHeader)
	if secret == "" {
		return false
	}

	sum := sha256.Sum256([]byte(secret))
	presented := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}

// classifyFailure maps a fatal export error onto an HTTP status class.
func classifyFailure(err error) (int, string) {
	if errors.Is(err, export.ErrRunInProgress) {
		return http.StatusTooManyRequests, "export_in_progress"
	}

	var apiErr *slack.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case slack.KindNotAuthed, slack.KindInvalidAuth:
			return http.StatusUnauthorized, string(apiErr.Kind)
		case slack.KindMissingScope:
			return http.StatusForbidden, string(apiErr.Kind)
		case slack.KindRateLimited:
			return http.StatusTooManyRequests, string(apiErr.Kind)
		}
	}
	return http.StatusInternalServerError, "export_failed"
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[api] failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"ok":    false,
		"kind":  kind,
		"error": msg,
	})
}
