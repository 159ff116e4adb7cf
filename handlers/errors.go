// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/seatdraw/allocation"
	"github.com/danielhkuo/seatdraw/middleware"
)

// writeAllocationError maps the engine's error taxonomy to HTTP statuses.
func writeAllocationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, allocation.ErrInvalidArgument),
		errors.Is(err, allocation.ErrDuplicatePriorityListElement):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, allocation.ErrRuleRejected):
		middleware.ErrorResponse(w, http.StatusForbidden, err.Error())
	case errors.Is(err, allocation.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, err.Error())
	case errors.Is(err, allocation.ErrProcedureNotActive),
		errors.Is(err, allocation.ErrNoSpaceAvailable),
		errors.Is(err, allocation.ErrAlreadyRegistered):
		middleware.ErrorResponse(w, http.StatusConflict, err.Error())
	default:
		slog.Error("allocation failed", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Allocation failed")
	}
}
