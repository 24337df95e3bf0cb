package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	errx "github.com/mathlingo-core/server/internal/core/error"
	logx "github.com/mathlingo-core/server/pkg/logger"
)

// maxBodyBytes caps the size of a query request body
const maxBodyBytes = 64 << 10

// QueryHandler answers one message with a display-ready reply.
type QueryHandler interface {
	HandleQuery(ctx context.Context, text string) string
}

// Handlers serves the query API.
type Handlers struct {
	Pipeline QueryHandler
}

type queryRequest struct {
	Text string `json:"text"`
}

type queryResponse struct {
	ID    string `json:"id"`
	Reply string `json:"reply"`
}

// Query handles POST /v1/query. Pipeline failures are already folded into
// the reply, so only malformed requests produce an error status.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		respondAppError(w, errx.BadRequest(err))
		return
	}

	id := uuid.New().String()
	reply := h.Pipeline.HandleQuery(r.Context(), req.Text)

	logx.Debug().Str("id", id).Int("reply_len", len(reply)).Msg("Query answered")
	respondJSON(w, http.StatusOK, queryResponse{ID: id, Reply: reply})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logx.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondAppError(w http.ResponseWriter, err error) {
	var ae *errx.AppError
	if !errors.As(err, &ae) {
		ae = errx.New(err, http.StatusInternalServerError, errx.SystemErrorMessage)
	}
	logx.Warn().Err(ae.Err).Int("status", ae.Status).Msg("Request rejected")
	respondError(w, ae.Status, ae.Message)
}
