// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package checkin implements the three-step token redemption flow.
//
// Flow state is carried by the client in form fields, so every step checks
// its own inputs. Only Confirm changes token state.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/token-checkin/internal/metrics"
	"codeberg.org/oliverandrich/token-checkin/internal/ratelimit"
	"codeberg.org/oliverandrich/token-checkin/internal/tokens"
)

// DefaultWindow is the minimum time between validation attempts from one client.
const DefaultWindow = 10 * time.Second

var (
	// ErrFormatInvalid is the parent of all input format errors.
	ErrFormatInvalid = errors.New("invalid format")
	// ErrInvalidTokenFormat is returned for tokens that are not 1-8 digits.
	ErrInvalidTokenFormat = fmt.Errorf("token: %w", ErrFormatInvalid)
	// ErrInvalidStudentIDFormat is returned for student IDs that are not 1-20 digits.
	ErrInvalidStudentIDFormat = fmt.Errorf("student id: %w", ErrFormatInvalid)
	// ErrRateLimited is returned when a client validates too often.
	ErrRateLimited = errors.New("rate limited")
)

// RateLimitError carries the time until the client may try again.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter.Round(time.Second))
}

// Is makes errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Service runs the check-in steps against a token store and a rate limiter.
type Service struct {
	store   *tokens.Store
	limiter ratelimit.Limiter
	window  time.Duration
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithWindow sets the rate limit window for token validation.
func WithWindow(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithMetrics records step outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a check-in service.
func NewService(store *tokens.Store, limiter ratelimit.Limiter, opts ...Option) *Service {
	s := &Service{
		store:   store,
		limiter: limiter,
		window:  DefaultWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Window returns the configured rate limit window.
func (s *Service) Window() time.Duration {
	return s.window
}

// ValidateToken is step one. It checks the format, applies the rate limit for
// clientID and looks the token up without reserving it.
func (s *Service) ValidateToken(ctx context.Context, clientID, token string) error {
	if !tokens.ValidToken(token) {
		s.metrics.Validation(metrics.OutcomeInvalid)
		return ErrInvalidTokenFormat
	}

	dec, err := s.limiter.Allow(ctx, clientID, s.window)
	if err != nil {
		s.metrics.Validation(metrics.OutcomeError)
		return fmt.Errorf("rate limiter: %w", err)
	}
	if !dec.Allow {
		s.metrics.Validation(metrics.OutcomeRateLimited)
		slog.DebugContext(ctx, "rate_limited", "client", clientID, "retry_after", dec.RetryAfter)
		return &RateLimitError{RetryAfter: dec.RetryAfter}
	}

	if err := s.store.Check(token); err != nil {
		s.metrics.Validation(outcomeFor(err))
		return err
	}

	s.metrics.Validation(metrics.OutcomeOK)
	return nil
}

// CollectStudentID is step two. It only checks the student ID format.
func (s *Service) CollectStudentID(studentID string) error {
	if !tokens.ValidStudentID(studentID) {
		return ErrInvalidStudentIDFormat
	}
	return nil
}

// Confirm is step three. Both fields come from the client again and are
// re-checked before the token is redeemed.
func (s *Service) Confirm(ctx context.Context, token, studentID string) error {
	if !tokens.ValidStudentID(studentID) {
		s.metrics.Redemption(metrics.OutcomeInvalid)
		return ErrInvalidStudentIDFormat
	}
	if !tokens.ValidToken(token) {
		s.metrics.Redemption(metrics.OutcomeInvalid)
		return ErrInvalidTokenFormat
	}

	if err := s.store.Redeem(ctx, token, studentID); err != nil {
		s.metrics.Redemption(outcomeFor(err))
		return err
	}

	s.metrics.Redemption(metrics.OutcomeOK)
	slog.InfoContext(ctx, "token_redeemed", "token", token, "student_id", studentID)
	return nil
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, tokens.ErrAlreadyUsed):
		return metrics.OutcomeUsed
	case errors.Is(err, tokens.ErrNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
