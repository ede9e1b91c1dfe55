// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"codeberg.org/oliverandrich/token-checkin/internal/services/checkin"
	"codeberg.org/oliverandrich/token-checkin/internal/templates"
	"codeberg.org/oliverandrich/token-checkin/internal/tokens"
	"github.com/labstack/echo/v4"
)

// failure renders the message page for a failed check-in step.
func failure(c echo.Context, err error) error {
	var rle *checkin.RateLimitError

	switch {
	case errors.Is(err, checkin.ErrInvalidTokenFormat):
		return Render(c, http.StatusBadRequest, templates.Message("invalid_token_format", nil, templates.NavHome))
	case errors.Is(err, checkin.ErrInvalidStudentIDFormat):
		return Render(c, http.StatusBadRequest, templates.Message("invalid_student_id_format", nil, templates.NavBack))
	case errors.As(err, &rle):
		seconds := retrySeconds(rle)
		c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
		return Render(c, http.StatusTooManyRequests,
			templates.Message("rate_limited", map[string]any{"Seconds": seconds}, templates.NavBack))
	case errors.Is(err, tokens.ErrAlreadyUsed):
		return Render(c, http.StatusConflict, templates.Message("token_already_used", nil, templates.NavHome))
	case errors.Is(err, tokens.ErrNotFound):
		return Render(c, http.StatusNotFound, templates.Message("invalid_token", nil, templates.NavHome))
	default:
		slog.ErrorContext(c.Request().Context(), "checkin_failed", "error", err, "path", c.Path())
		return Render(c, http.StatusInternalServerError, templates.Message("internal_error", nil, templates.NavHome))
	}
}

// retrySeconds rounds the wait up so the client never retries too early.
func retrySeconds(rle *checkin.RateLimitError) int {
	s := int(math.Ceil(rle.RetryAfter.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// ErrorHandler renders unmatched routes and other echo errors as pages.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
	}

	messageID := "internal_error"
	switch code {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		messageID = "not_found"
	case http.StatusBadRequest, http.StatusForbidden, http.StatusRequestEntityTooLarge:
		messageID = "bad_request"
	}
	if code >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request_failed", "error", err)
	}

	if renderErr := Render(c, code, templates.Message(messageID, nil, templates.NavHome)); renderErr != nil {
		slog.ErrorContext(c.Request().Context(), "error_page_failed", "error", renderErr)
	}
}
