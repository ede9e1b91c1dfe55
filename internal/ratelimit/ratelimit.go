// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package ratelimit throttles how often a client may attempt token validation.
//
// A client is allowed one attempt per window: an attempt is allowed when the
// client has no previous attempt or its last allowed attempt is at least one
// window old. Denied attempts do not move the window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision is the result of an Allow call.
type Decision struct {
	Allow      bool
	RetryAfter time.Duration
}

// Limiter decides whether a client may make another attempt.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration) (Decision, error)
}

var (
	_ Limiter = (*Memory)(nil)
	_ Limiter = (*Redis)(nil)
)

// Memory is an in-process Limiter backed by a map of last-attempt times.
// Entries are never evicted; the map grows with the number of distinct clients.
type Memory struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewMemory creates an in-memory limiter.
func NewMemory() *Memory {
	return &Memory{
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Allow implements Limiter.
func (m *Memory) Allow(_ context.Context, key string, window time.Duration) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if last, ok := m.last[key]; ok {
		if elapsed := now.Sub(last); elapsed < window {
			return Decision{Allow: false, RetryAfter: window - elapsed}, nil
		}
	}

	m.last[key] = now
	return Decision{Allow: true}, nil
}

// Len returns the number of tracked clients.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.last)
}
