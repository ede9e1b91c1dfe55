// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"codeberg.org/oliverandrich/token-checkin/internal/database"
	"codeberg.org/oliverandrich/token-checkin/internal/models"
	"codeberg.org/oliverandrich/token-checkin/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// MemoryRecorder collects redemptions in memory.
type MemoryRecorder struct {
	mu      sync.Mutex
	Records []models.Redemption
	Err     error
}

// Record implements tokens.Recorder.
func (m *MemoryRecorder) Record(_ context.Context, r models.Redemption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Records = append(m.Records, r)
	return nil
}

// Snapshot returns a copy of the collected redemptions.
func (m *MemoryRecorder) Snapshot() []models.Redemption {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Redemption(nil), m.Records...)
}

// NewFormRequest creates a form-encoded POST request from remoteAddr.
func NewFormRequest(path string, form url.Values, remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	return req
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, req *http.Request) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}
