package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/passm/internal/common"
)

var httpStatuses = []struct {
	err  error
	code int
}{
	{common.ErrValidation, http.StatusBadRequest},
	{common.ErrInvalidCredentials, http.StatusBadRequest},
	{common.ErrWrongCurrentPassword, http.StatusBadRequest},
	{common.ErrNoPendingChallenge, http.StatusBadRequest},
	{common.ErrChallengeExpired, http.StatusBadRequest},
	{common.ErrCodeMismatch, http.StatusBadRequest},
	{common.ErrInvalidToken, http.StatusUnauthorized},
	{common.ErrTokenExpired, http.StatusUnauthorized},
	{common.ErrElevationRequired, http.StatusUnauthorized},
	{common.ErrDuplicateAccount, http.StatusConflict},
	{common.ErrorNotFound, http.StatusNotFound},
	{common.ErrDeliveryFailed, http.StatusBadGateway},
	{common.ErrStoreUnavailable, http.StatusServiceUnavailable},
}

type errorBody struct {
	Error         string `json:"error"`
	TwofaRequired bool   `json:"twofaRequired,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

// fail writes the HTTP rendition of a service error. Unknown errors are
// logged and reported without detail.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	var rl *common.RateLimitError
	if errors.As(err, &rl) {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		writeError(w, http.StatusTooManyRequests, rl.Error())
		return
	}
	if errors.Is(err, common.ErrElevationRequired) {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: err.Error(), TwofaRequired: true})
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	for _, s := range httpStatuses {
		if errors.Is(err, s.err) {
			writeError(w, s.code, err.Error())
			return
		}
	}
	h.logger.Error(ctx, "unexpected error", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
