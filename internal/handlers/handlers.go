// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"time"

	"codeberg.org/oliverandrich/token-checkin/internal/services/checkin"
	"codeberg.org/oliverandrich/token-checkin/internal/templates"
	"codeberg.org/oliverandrich/token-checkin/internal/tokens"
	"github.com/labstack/echo/v4"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	svc          *checkin.Service
	store        *tokens.Store
	confirmDelay time.Duration
}

// New creates a new Handlers instance.
func New(svc *checkin.Service, store *tokens.Store, confirmDelay time.Duration) *Handlers {
	return &Handlers{svc: svc, store: store, confirmDelay: confirmDelay}
}

// Health returns the health status with the pool counts.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"remaining": h.store.Remaining(),
		"redeemed":  h.store.Redeemed(),
	})
}

// Index renders the token form.
func (h *Handlers) Index(c echo.Context) error {
	return Render(c, http.StatusOK, templates.TokenForm())
}

// CheckToken validates the submitted token and asks for the student ID.
func (h *Handlers) CheckToken(c echo.Context) error {
	token := c.FormValue("token")

	if err := h.svc.ValidateToken(c.Request().Context(), c.RealIP(), token); err != nil {
		return failure(c, err)
	}

	return Render(c, http.StatusOK, templates.StudentIDForm(token))
}

// EnterID checks the student ID and shows the confirmation page.
func (h *Handlers) EnterID(c echo.Context) error {
	studentID := c.FormValue("student_id")
	token := c.FormValue("token")

	if err := h.svc.CollectStudentID(studentID); err != nil {
		return failure(c, err)
	}

	return Render(c, http.StatusOK, templates.ConfirmForm(studentID, token, h.confirmDelay))
}

// Confirm redeems the token for the student ID.
func (h *Handlers) Confirm(c echo.Context) error {
	studentID := c.FormValue("student_id")
	token := c.FormValue("token")

	if err := h.svc.Confirm(c.Request().Context(), token, studentID); err != nil {
		return failure(c, err)
	}

	return Render(c, http.StatusOK, templates.Success())
}
