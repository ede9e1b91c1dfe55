// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package templates renders the check-in pages as templ components.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"
)

// Nav selects the navigation button shown under a page.
type Nav int

const (
	NavNone Nav = iota
	NavBack
	NavHome
)

const styles = `body { font-family: sans-serif; margin: 2em; text-align: center; }
.msg { margin: 2em 0; font-size: 1.3em; }
input, button.form-btn { font-size: 1.2em; padding: 0.5em; margin: 0.5em 0; width: 100%; box-sizing: border-box; }
form { max-width: 400px; margin: auto; }
button.nav { width: auto; display: inline-block; margin: 1em auto 0 auto; font-size: 1em; padding: 0.5em 1.2em; }`

// page is a tiny HTML writer that escapes every dynamic value.
type page struct {
	ctx context.Context
	b   strings.Builder
}

func (p *page) raw(s string) {
	p.b.WriteString(s)
}

func (p *page) text(s string) {
	p.b.WriteString(templ.EscapeString(s))
}

func (p *page) t(id string) {
	p.text(T(p.ctx, id))
}

func (p *page) hidden(name, value string) {
	p.raw(`<input type="hidden" name="`)
	p.text(name)
	p.raw(`" value="`)
	p.text(value)
	p.raw(`">`)
}

func (p *page) csrf() {
	p.hidden("csrf_token", CSRFToken(p.ctx))
}

// layout wraps content in the page shell with the navigation button.
func layout(nav Nav, content func(p *page)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{ctx: ctx}
		p.raw(`<!doctype html><html lang="`)
		p.text(Locale(ctx))
		p.raw(`"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		p.t("app_name")
		p.raw(`</title><style>`)
		p.raw(styles)
		p.raw(`</style></head><body><div class="msg">`)
		content(p)
		p.raw(`</div>`)

		switch nav {
		case NavBack:
			p.raw(`<button onclick="window.history.back()" class="nav">`)
			p.t("go_back")
			p.raw(`</button>`)
		case NavHome:
			p.raw(`<button onclick="window.location.href='/'" class="nav">`)
			p.t("go_home")
			p.raw(`</button>`)
		}

		p.raw(`</body></html>`)
		_, err := io.WriteString(w, p.b.String())
		return err
	})
}

// TokenForm is step one: the token entry form.
func TokenForm() templ.Component {
	return layout(NavNone, func(p *page) {
		p.raw(`<h1>`)
		p.t("token_title")
		p.raw(`</h1><form method="post" action="/">`)
		p.csrf()
		p.raw(`<input name="token" type="tel" inputmode="numeric" pattern="\d{1,8}" maxlength="8" required autofocus placeholder="`)
		p.t("token_placeholder")
		p.raw(`"><button type="submit" class="form-btn">`)
		p.t("continue")
		p.raw(`</button></form>`)
	})
}

// StudentIDForm is step two: the student ID form carrying the token.
func StudentIDForm(token string) templ.Component {
	return layout(NavBack, func(p *page) {
		p.raw(`<h1>`)
		p.t("student_id_title")
		p.raw(`</h1><form method="post" action="/id">`)
		p.csrf()
		p.raw(`<input name="student_id" type="tel" inputmode="numeric" pattern="\d{1,20}" maxlength="20" required autofocus placeholder="`)
		p.t("student_id_placeholder")
		p.raw(`">`)
		p.hidden("token", token)
		p.raw(`<button type="submit" class="form-btn">`)
		p.t("continue")
		p.raw(`</button></form>`)
	})
}

// ConfirmForm is step three. The confirm button is disabled for delay so a
// double tap on the previous step cannot submit it. Without JavaScript the
// button is enabled immediately.
func ConfirmForm(studentID, token string, delay time.Duration) templ.Component {
	return layout(NavBack, func(p *page) {
		p.raw(`<h1>`)
		p.t("confirm_title")
		p.raw(`</h1><form method="post" action="/confirm">`)
		p.csrf()
		p.hidden("student_id", studentID)
		p.hidden("token", token)
		p.raw(`<p>`)
		p.t("confirm_student_id")
		p.raw(` <b>`)
		p.text(studentID)
		p.raw(`</b></p><button type="submit" id="confirm-btn" class="form-btn">`)
		p.t("confirm")
		p.raw(`</button></form>`)
		if delay > 0 {
			p.raw(fmt.Sprintf(`<script>(function() { var b = document.getElementById('confirm-btn'); b.disabled = true; setTimeout(function() { b.disabled = false; }, %d); })();</script>`, delay.Milliseconds()))
		}
	})
}

// Message renders a single translated message with navigation.
func Message(messageID string, data map[string]any, nav Nav) templ.Component {
	return layout(nav, func(p *page) {
		p.raw(`<h2>`)
		p.text(TData(p.ctx, messageID, data))
		p.raw(`</h2>`)
	})
}

// Success is shown after a token has been redeemed.
func Success() templ.Component {
	return Message("success", nil, NavHome)
}
