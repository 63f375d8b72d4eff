package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Baoanh2610/callvideo/internal/metrics"
	"github.com/Baoanh2610/callvideo/internal/token"
)

const maxBodyBytes = 4 << 10

// Handlers holds dependencies for the token service HTTP handlers.
type Handlers struct {
	tokens *token.Service
	logger *zap.Logger
}

// NewHandlers creates handlers backed by the given token service.
func NewHandlers(tokens *token.Service, logger *zap.Logger) *Handlers {
	return &Handlers{tokens: tokens, logger: logger}
}

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// IssueToken handles POST /api/token. The raw signing secrets never appear
// in any response or log line.
func (h *Handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req token.JoinRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		metrics.TokensRejectedTotal.WithLabelValues("bad_body").Inc()
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	cred, err := h.tokens.Issue(req)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrInvalidRequest):
			metrics.TokensRejectedTotal.WithLabelValues("invalid_request").Inc()
			writeError(w, http.StatusBadRequest, "missing required parameters", err.Error())
		case errors.Is(err, token.ErrServerMisconfigured):
			metrics.TokensRejectedTotal.WithLabelValues("misconfigured").Inc()
			h.logger.Error("token request rejected", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "server configuration error", "")
		default:
			metrics.TokensRejectedTotal.WithLabelValues("signing").Inc()
			h.logger.Error("token generation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to generate token", err.Error())
		}
		return
	}

	metrics.TokensIssuedTotal.Inc()
	metrics.TokenIssueLatency.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	writeJSON(w, http.StatusOK, tokenResponse{Token: cred.Token})
}

// MethodNotAllowed replaces chi's plain-text default so every error
// response carries a JSON body.
func (h *Handlers) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
}

// Health handles GET /healthz.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}
