// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package templates_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"codeberg.org/oliverandrich/token-checkin/internal/ctxkeys"
	"codeberg.org/oliverandrich/token-checkin/internal/i18n"
	"codeberg.org/oliverandrich/token-checkin/internal/templates"
	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func render(t *testing.T, ctx context.Context, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(ctx, &buf))
	return buf.String()
}

func testContext(t *testing.T, lang language.Tag) context.Context {
	t.Helper()
	require.NoError(t, i18n.Init())
	ctx := i18n.WithLocale(context.Background(), lang)
	return context.WithValue(ctx, ctxkeys.CSRFToken{}, "csrf-abc")
}

func TestTokenForm(t *testing.T) {
	html := render(t, testContext(t, language.English), templates.TokenForm())

	assert.Contains(t, html, "<!doctype html>")
	assert.Contains(t, html, `<html lang="en">`)
	assert.Contains(t, html, "Enter Token")
	assert.Contains(t, html, `name="token"`)
	assert.Contains(t, html, `name="csrf_token" value="csrf-abc"`)
	assert.NotContains(t, html, "Go Back")
}

func TestStudentIDForm_CarriesTokenEscaped(t *testing.T) {
	html := render(t, testContext(t, language.English), templates.StudentIDForm(`1"><script>`))

	assert.Contains(t, html, `action="/id"`)
	assert.Contains(t, html, `name="token" value="1&#34;&gt;&lt;script&gt;"`)
	assert.NotContains(t, html, `1"><script>`)
	assert.Contains(t, html, "Go Back")
}

func TestConfirmForm(t *testing.T) {
	html := render(t, testContext(t, language.English), templates.ConfirmForm("999", "12345678", 3*time.Second))

	assert.Contains(t, html, `action="/confirm"`)
	assert.Contains(t, html, `name="student_id" value="999"`)
	assert.Contains(t, html, `name="token" value="12345678"`)
	assert.Contains(t, html, "<b>999</b>")
	assert.Contains(t, html, "}, 3000);")
}

func TestConfirmForm_NoDelay(t *testing.T) {
	html := render(t, testContext(t, language.English), templates.ConfirmForm("999", "12345678", 0))

	assert.NotContains(t, html, "<script>")
}

func TestMessage_German(t *testing.T) {
	html := render(t, testContext(t, language.German),
		templates.Message("rate_limited", map[string]any{"Seconds": 7}, templates.NavBack))

	assert.Contains(t, html, `<html lang="de">`)
	assert.Contains(t, html, "bitte 7 Sekunden warten")
	assert.Contains(t, html, "Zurück")
}

func TestSuccess(t *testing.T) {
	html := render(t, testContext(t, language.English), templates.Success())

	assert.Contains(t, html, "Sign-in successful!")
	assert.Contains(t, html, "Go Home")
}

func TestCSRFToken_Missing(t *testing.T) {
	assert.Empty(t, templates.CSRFToken(context.Background()))
}
