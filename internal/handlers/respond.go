package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/streamr/backend/internal/authz"
	"github.com/streamr/backend/internal/logging"
	"github.com/streamr/backend/internal/repositories"
	"github.com/streamr/backend/internal/streams"
)

const maxBodyBytes = 1 << 20

type messageResponse struct {
	Msg    string            `json:"msg"`
	Errors map[string]string `json:"errors,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondMessage(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	respondJSON(ctx, w, status, messageResponse{Msg: msg})
}

// writeError maps domain errors onto status codes. Unrecognised errors become a
// generic 500 and are logged with their detail.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var validation *streams.ValidationError
	switch {
	case errors.As(err, &validation):
		respondJSON(ctx, w, http.StatusBadRequest, messageResponse{Msg: "Data did not validate.", Errors: validation.Fields})
	case errors.Is(err, authz.ErrUnauthenticated):
		respondMessage(ctx, w, http.StatusUnauthorized, "Authentication required.")
	case errors.Is(err, authz.ErrForbidden):
		respondMessage(ctx, w, http.StatusForbidden, "You are not allowed to do that.")
	case errors.Is(err, streams.ErrAlreadyPublic):
		respondMessage(ctx, w, http.StatusBadRequest, "Stream is already public.")
	case errors.Is(err, streams.ErrNotPublic):
		respondMessage(ctx, w, http.StatusBadRequest, "Stream is not public.")
	case errors.Is(err, streams.ErrNotFound), errors.Is(err, repositories.ErrNotFound):
		respondMessage(ctx, w, http.StatusNotFound, "Not found.")
	case errors.Is(err, repositories.ErrConflict):
		respondMessage(ctx, w, http.StatusConflict, "Resource already exists.")
	default:
		logging.FromContext(ctx).Error("unhandled error", "error", err)
		respondMessage(ctx, w, http.StatusInternalServerError, "Internal server error.")
	}
}

// decodeJSON reads a JSON body into dst. Fields dst does not declare are ignored.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("empty request body")
	}
	return json.Unmarshal(body, dst)
}

func invalidBody(ctx context.Context, w http.ResponseWriter, err error) {
	logging.FromContext(ctx).Warn("invalid request payload", "error", err)
	respondMessage(ctx, w, http.StatusBadRequest, "Invalid request body.")
}
