package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/user/animerank-crawler/internal/crawler"
	"github.com/user/animerank-crawler/internal/domain"
)

func (s *Server) handleCrawlRequest(w http.ResponseWriter, r *http.Request) {
	var req crawler.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := s.runs.Submit(req)
	switch {
	case err == nil:
		s.respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "crawl run started"})
	case errors.Is(err, domain.ErrInvalidArgument):
		s.respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRunInProgress):
		s.respondWithError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("failed to start crawl run", zap.Error(err))
		s.respondWithError(w, http.StatusServiceUnavailable, "Could not start crawl run")
	}
}

func (s *Server) handleStatusRequest(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, s.runs.Status())
}

func (s *Server) handleFailuresRequest(w http.ResponseWriter, r *http.Request) {
	if s.failures == nil {
		s.respondWithError(w, http.StatusNotImplemented, "Failure log is not configured")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			s.respondWithError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	failures, err := s.failures.ListFailures(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list failures", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not list failures")
		return
	}
	if failures == nil {
		failures = []domain.FailedLink{}
	}
	s.respondWithJSON(w, http.StatusOK, failures)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := map[string]string{"crawler": "idle"}
	if s.runs.Status().Running {
		healthStatus["crawler"] = "running"
	}

	isHealthy := true
	for name, dep := range s.checks {
		if err := dep.Ping(ctx); err != nil {
			healthStatus[name] = "unhealthy"
			isHealthy = false
			s.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			continue
		}
		healthStatus[name] = "healthy"
	}

	if !isHealthy {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		code = http.StatusInternalServerError
		response = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
