// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package tokens holds the issued token pool and the ledger of redeemed tokens.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"codeberg.org/oliverandrich/token-checkin/internal/models"
)

var (
	// ErrAlreadyUsed is returned when a token has already been redeemed.
	ErrAlreadyUsed = errors.New("token already used")
	// ErrNotFound is returned when a token was never issued.
	ErrNotFound = errors.New("token not found")
	// ErrRecordFailed is returned when a redemption could not be written to the durable record.
	ErrRecordFailed = errors.New("failed to record redemption")
)

// State is the lifecycle state of a token.
type State int

const (
	// Unknown means the token was never issued.
	Unknown State = iota
	// Unused means the token is in the pool and can be redeemed.
	Unused
	// Used means the token is in the ledger.
	Used
)

func (s State) String() string {
	switch s {
	case Unused:
		return "unused"
	case Used:
		return "used"
	default:
		return "unknown"
	}
}

// Recorder appends completed redemptions to durable storage.
type Recorder interface {
	Record(ctx context.Context, r models.Redemption) error
}

// Store owns the pool of unused tokens and the ledger of used ones.
// Both sets are guarded by a single lock so a token is always in exactly one of them.
type Store struct {
	mu       sync.RWMutex
	pool     map[string]struct{}
	ledger   map[string]struct{}
	recorder Recorder
	now      func() time.Time
}

// NewStore creates a store whose pool contains the issued tokens.
func NewStore(issued []string, recorder Recorder) *Store {
	pool := make(map[string]struct{}, len(issued))
	for _, t := range issued {
		pool[t] = struct{}{}
	}
	return &Store{
		pool:     pool,
		ledger:   make(map[string]struct{}),
		recorder: recorder,
		now:      time.Now,
	}
}

// Status returns the current state of a token without modifying anything.
func (s *Store) Status(token string) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status(token)
}

func (s *Store) status(token string) State {
	if _, used := s.ledger[token]; used {
		return Used
	}
	if _, ok := s.pool[token]; ok {
		return Unused
	}
	return Unknown
}

// Check reports why a token cannot be redeemed, or nil if it can.
// It never mutates the store.
func (s *Store) Check(token string) error {
	switch s.Status(token) {
	case Used:
		return ErrAlreadyUsed
	case Unknown:
		return ErrNotFound
	default:
		return nil
	}
}

// IsRedeemable reports whether token is well-formed, unused and was issued.
func (s *Store) IsRedeemable(token string) bool {
	return ValidToken(token) && s.Status(token) == Unused
}

// Redeem consumes token for studentID.
//
// The ledger check, the durable append and the pool-to-ledger move happen
// under one exclusive lock, so concurrent calls for the same token see exactly
// one success. If the append fails the token stays unused.
func (s *Store) Redeem(ctx context.Context, token, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status(token) {
	case Used:
		return ErrAlreadyUsed
	case Unknown:
		return ErrNotFound
	}

	if s.recorder != nil {
		rec := models.Redemption{Token: token, StudentID: studentID, RedeemedAt: s.now()}
		if err := s.recorder.Record(ctx, rec); err != nil {
			slog.Error("redemption_record_failed", "token", token, "student_id", studentID, "error", err)
			return fmt.Errorf("%w: %w", ErrRecordFailed, err)
		}
	}

	delete(s.pool, token)
	s.ledger[token] = struct{}{}
	return nil
}

// Remaining returns the number of unused tokens.
func (s *Store) Remaining() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pool)
}

// Redeemed returns the number of used tokens.
func (s *Store) Redeemed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ledger)
}
