package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spacesedan/sentiscope/internal/accounts"
	"github.com/spacesedan/sentiscope/internal/models"
	"github.com/spacesedan/sentiscope/internal/processing"
	"github.com/spacesedan/sentiscope/internal/report"
)

const noDocumentsMessage = "no documents found"

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type accountResponse struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type documentsResponse struct {
	Handle    string                   `json:"handle"`
	Documents []models.RawDocument     `json:"documents"`
	Skipped   []models.SkippedDocument `json:"skipped"`
	Message   string                   `json:"message,omitempty"`
}

type analysisResponse struct {
	models.Report
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		s.respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		return
	}

	if s.health.Healthy() {
		s.respondJSON(w, http.StatusOK, map[string]any{
			"status":       "ok",
			"dependencies": s.health.Snapshot(),
		})
		return
	}
	s.respondJSON(w, http.StatusServiceUnavailable, map[string]any{
		"status":       "degraded",
		"dependencies": s.health.Snapshot(),
		"unhealthy":    s.health.Unhealthy(),
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.accounts.Register(r.Context(), creds.Username, creds.Password)
	switch {
	case errors.Is(err, accounts.ErrInvalidAccount):
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, accounts.ErrAccountExists):
		s.respondError(w, http.StatusConflict, "username is already taken")
		return
	case err != nil:
		s.respondError(w, http.StatusInternalServerError, "could not create account")
		return
	}

	s.respondJSON(w, http.StatusCreated, accountResponse{Username: account.Username, CreatedAt: account.CreatedAt})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := s.accounts.Authenticate(r.Context(), creds.Username, creds.Password)
	switch {
	case errors.Is(err, accounts.ErrInvalidCredentials):
		s.respondError(w, http.StatusUnauthorized, "invalid username or password")
		return
	case err != nil:
		s.respondError(w, http.StatusInternalServerError, "could not log in")
		return
	}

	s.respondJSON(w, http.StatusOK, accountResponse{Username: account.Username, CreatedAt: account.CreatedAt})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	result, ok := s.run(w, r, processing.ModeRecent)
	if !ok {
		return
	}

	resp := documentsResponse{Handle: result.Handle, Documents: result.Documents, Skipped: result.Skipped}
	if len(result.Documents) == 0 {
		resp.Message = noDocumentsMessage
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	result, ok := s.run(w, r, processing.ModeAnalyze)
	if !ok {
		return
	}

	rep := processing.NewReport(result)
	s.export(rep)

	resp := analysisResponse{Report: rep}
	if len(rep.Records) == 0 {
		resp.Message = noDocumentsMessage
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	result, ok := s.run(w, r, processing.ModeAnalyze)
	if !ok {
		return
	}

	rep := processing.NewReport(result)
	s.export(rep)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.HTML(rep))
}

// run parses the handle and limit and runs the pipeline. It writes the error
// response itself and reports false when the handler should stop.
func (s *Server) run(w http.ResponseWriter, r *http.Request, mode processing.Mode) (processing.Result, bool) {
	handle := chi.URLParam(r, "handle")

	limit, err := s.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return processing.Result{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.FetchTimeout)
	defer cancel()

	result, err := s.analyzer.Run(ctx, handle, limit, mode)
	s.opts.Metrics.ObserveRun(mode, result, err)
	if err != nil {
		s.respondRunError(w, handle, err)
		return processing.Result{}, false
	}
	return result, true
}

func (s *Server) parseLimit(raw string) (int, error) {
	if raw == "" {
		return s.opts.DefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > s.opts.MaxLimit {
		return 0, fmt.Errorf("%w: limit must be between 1 and %d", models.ErrInvalidLimit, s.opts.MaxLimit)
	}
	return limit, nil
}

func (s *Server) export(rep models.Report) {
	if len(s.sinks) == 0 {
		return
	}
	s.exports.Add(1)
	go func() {
		defer s.exports.Done()
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_ = processing.ExportAll(ctx, rep, s.sinks...)
	}()
}

func (s *Server) respondRunError(w http.ResponseWriter, handle string, err error) {
	var fe *models.FetchError
	if errors.As(err, &fe) {
		resp := errorResponse{Error: fe.Error(), Kind: string(fe.Kind), Retryable: fe.Retryable()}
		status := http.StatusServiceUnavailable
		switch fe.Kind {
		case models.FetchUnknownHandle:
			status, resp.Error = http.StatusNotFound, noDocumentsMessage
		case models.FetchRateLimited:
			status, resp.Error = http.StatusTooManyRequests, "document source rate limit reached, try again later"
		case models.FetchUnauthorized:
			status, resp.Error = http.StatusBadGateway, "document source rejected our credentials"
		case models.FetchNetwork:
			status, resp.Error = http.StatusServiceUnavailable, "document source unavailable"
		}
		slog.Warn("[Server] Fetch failed",
			slog.String("handle", handle),
			slog.String("kind", string(fe.Kind)),
			slog.String("error", err.Error()))
		s.respondJSON(w, status, resp)
		return
	}

	switch {
	case errors.Is(err, models.ErrInvalidLimit):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.respondJSON(w, http.StatusGatewayTimeout, errorResponse{Error: "analysis timed out", Retryable: true})
	default:
		slog.Error("[Server] Analysis failed", slog.String("handle", handle), slog.String("error", err.Error()))
		s.respondError(w, http.StatusInternalServerError, "analysis failed")
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, errorResponse{Error: message})
}
