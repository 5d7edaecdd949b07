package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/rank-lookup/pkg/lookup"
	"github.com/Sternrassler/rank-lookup/pkg/logging"
	"github.com/Sternrassler/rank-lookup/pkg/ratelimit"
	"github.com/rs/zerolog"
)

// handleLookup serves POST /api/leaderboard-lookup.
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	client := clientKey(r, s.config.TrustProxyHeaders)

	if s.limiter != nil {
		decision := s.limiter.Admit(r.Context(), client)
		setRateLimitHeaders(w, decision, time.Now())
		if !decision.Allowed {
			logger.Warn().
				Str(logging.FieldClient, client).
				Bool("blocked", decision.Blocked).
				Msg("Request rejected by rate limiter")
			writeError(w, http.StatusTooManyRequests, CodeRateLimited, "Too Many Requests")
			return
		}
	}

	req, err := decodeRequest(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeBodyTooLarge, "Request body too large")
			return
		}
		logger.Debug().Err(err).Str(logging.FieldClient, client).Msg("Malformed request body")
		writeError(w, http.StatusBadRequest, lookup.CodeInvalidBody, "Invalid request body")
		return
	}

	resp, err := s.service.Lookup(r.Context(), req)
	if err != nil {
		s.writeLookupError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// errTrailingData rejects bodies carrying anything after the JSON object.
var errTrailingData = errors.New("unexpected data after request body")

// decodeRequest reads exactly one JSON value from body.
func decodeRequest(body io.Reader) (lookup.Request, error) {
	var req lookup.Request
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return lookup.Request{}, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return lookup.Request{}, err
		}
		return lookup.Request{}, errTrailingData
	}
	return req, nil
}

func (s *Server) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	logger := zerolog.Ctx(r.Context())

	var validation *lookup.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Code, validation.Message)
	case errors.Is(err, lookup.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, CodeTimeout, "Request timed out")
	case errors.Is(err, context.Canceled):
		// client went away; nobody reads the response
		logger.Debug().Msg("Client cancelled lookup")
	default:
		logger.Error().Err(err).Msg("Lookup failed")
		writeError(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
	}
}

func handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// handleHealth serves GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady serves GET /ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, check := range s.checks {
		if err := check(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Readiness check failed")
			writeError(w, http.StatusServiceUnavailable, CodeNotReady, "Service not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision, now time.Time) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
	h.Set("X-RateLimit-Window", strconv.Itoa(int(d.Window.Seconds())))
	if !d.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
	if !d.Allowed {
		if wait := d.RetryAfter(now); wait > 0 {
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
	}
}
