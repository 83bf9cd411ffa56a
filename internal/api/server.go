package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/tg-chatstat-go/internal/config"
	"github.com/tg-chatstat-go/internal/middleware"
	"github.com/tg-chatstat-go/internal/services/ai"
	"github.com/tg-chatstat-go/internal/services/storage"
)

const requestTimeout = 2 * time.Minute

// UserLookup resolves a username to its id. *storage.UserRepo satisfies it.
type UserLookup interface {
	IDByUsername(ctx context.Context, username string) (int64, error)
}

// MessageSource returns a user's latest texts. *storage.MessageRepo
// satisfies it.
type MessageSource interface {
	LastUserTexts(ctx context.Context, userID int64, limit int) ([]string, error)
}

// Server exposes the analysis features over HTTP.
type Server struct {
	cfg      *config.APIConfig
	users    UserLookup
	messages MessageSource
	analyzer ai.Service
	limit    int
	metrics  *middleware.Metrics
	logger   *logrus.Logger
}

// NewServer creates the API server. analyzer may be nil when the
// analysis feature is disabled; the endpoints then answer 503.
func NewServer(
	cfg *config.APIConfig,
	users UserLookup,
	messages MessageSource,
	analyzer ai.Service,
	analyzeLimit int,
	metrics *middleware.Metrics,
	logger *logrus.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		users:    users,
		messages: messages,
		analyzer: analyzer,
		limit:    analyzeLimit,
		metrics:  metrics,
		logger:   logger,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/analyze", s.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc("/portrait", s.handlePortrait).Methods(http.MethodPost)
	return r
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: requestTimeout + 10*time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Warn("API server shutdown failed")
		}
	}()

	s.logger.WithField("port", s.cfg.Port).Info("API server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type analyzeRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordAPIRequest("/api", "ok")
	s.writeJSON(w, http.StatusOK, map[string]string{
		"service": "chat statistics bot",
		"status":  "running",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	s.serveAnalysis(w, r, "/analyze", func(ctx context.Context, username string) (string, error) {
		id, err := s.users.IDByUsername(ctx, username)
		if err != nil {
			return "", err
		}
		texts, err := s.messages.LastUserTexts(ctx, id, s.limit)
		if err != nil {
			return "", err
		}
		if len(texts) == 0 {
			return "", storage.ErrNotFound
		}
		return s.analyzer.AnalyzeStyle(ctx, strings.Join(texts, "\n"))
	}, "analysis")
}

func (s *Server) handlePortrait(w http.ResponseWriter, r *http.Request) {
	s.serveAnalysis(w, r, "/portrait", func(ctx context.Context, username string) (string, error) {
		// the portrait prompt works from the username alone but the
		// user must exist
		if _, err := s.users.IDByUsername(ctx, username); err != nil {
			return "", err
		}
		return s.analyzer.Portrait(ctx, username)
	}, "portrait")
}

func (s *Server) serveAnalysis(
	w http.ResponseWriter,
	r *http.Request,
	endpoint string,
	run func(ctx context.Context, username string) (string, error),
	field string,
) {
	if s.analyzer == nil {
		s.metrics.RecordAPIRequest(endpoint, "disabled")
		s.writeError(w, http.StatusServiceUnavailable, "analysis is disabled")
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		s.metrics.RecordAPIRequest(endpoint, "bad_request")
		s.writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	username := strings.TrimPrefix(strings.TrimSpace(req.Username), "@")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := run(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.metrics.RecordAPIRequest(endpoint, "not_found")
			s.writeError(w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.WithError(err).WithField("endpoint", endpoint).Error("Analysis request failed")
		s.metrics.RecordAPIRequest(endpoint, "error")
		s.writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	s.metrics.RecordAPIRequest(endpoint, "ok")
	s.writeJSON(w, http.StatusOK, map[string]string{field: result})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Warn("Failed to encode API response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
