// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/tarpit/internal/trap"
)

// respondEngineError maps engine sentinel errors onto HTTP statuses.
func respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, trap.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Resource not found", err)
	case errors.Is(err, trap.ErrInvalidObservation):
		respondError(w, r, http.StatusBadRequest, ErrCodeInvalidObservation, err.Error(), err)
	case errors.Is(err, trap.ErrInvalidConfiguration):
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, err.Error(), err)
	case errors.As(err, &maxBytes):
		respondError(w, r, http.StatusRequestEntityTooLarge, ErrCodeRequestTooLarge, "Request body too large", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Request canceled", err)
	default:
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "Internal server error", err)
	}
}
