// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/oliverandrich/token-checkin/internal/config"
	"codeberg.org/oliverandrich/token-checkin/internal/database"
	"codeberg.org/oliverandrich/token-checkin/internal/handlers"
	"codeberg.org/oliverandrich/token-checkin/internal/metrics"
	"codeberg.org/oliverandrich/token-checkin/internal/ratelimit"
	"codeberg.org/oliverandrich/token-checkin/internal/records"
	"codeberg.org/oliverandrich/token-checkin/internal/repository"
	"codeberg.org/oliverandrich/token-checkin/internal/services/checkin"
	"codeberg.org/oliverandrich/token-checkin/internal/tokens"
)

// app holds everything a running check-in instance needs.
type app struct {
	store    *tokens.Store
	service  *checkin.Service
	handlers *handlers.Handlers
	metrics  *metrics.Metrics

	tokensFile  string
	recordsFile string
	closers     []func() error
}

// newApp opens the record sinks, issues the token pool, writes it out and
// wires the request path.
// Nothing is served until this returns without error.
func newApp(ctx context.Context, cfg *config.Config, started time.Time) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	stamp := started.Format(tokens.StampFormat)

	file := records.NewFile(cfg.Tokens.DataDir, stamp)
	a.recordsFile = file.Path()
	a.closers = append(a.closers, file.Close)

	var recorder tokens.Recorder = file
	var earlier map[string]struct{}
	if cfg.Database.DSN != "" {
		db, dbErr := database.Open(cfg.Database.DSN)
		if dbErr != nil {
			return nil, fmt.Errorf("failed to open database: %w", dbErr)
		}
		a.closers = append(a.closers, db.Close)
		repo := repository.New(db)
		earlier, err = redeemedEarlier(ctx, repo)
		if err != nil {
			return nil, err
		}
		recorder = records.NewTee(file, repo)
		slog.Info("redemption mirror enabled", "dsn", cfg.Database.DSN, "earlier_redemptions", len(earlier))
	}

	// Tokens redeemed in an earlier run are never issued again.
	issued, err := tokens.Issue(cfg.Tokens.Count, earlier)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	a.tokensFile, err = tokens.WriteIssued(cfg.Tokens.DataDir, stamp, issued)
	if err != nil {
		return nil, fmt.Errorf("failed to write tokens file: %w", err)
	}

	limiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if r, ok := limiter.(*ratelimit.Redis); ok {
		a.closers = append(a.closers, r.Close)
	}

	a.store = tokens.NewStore(issued, recorder)

	opts := []checkin.Option{checkin.WithWindow(cfg.RateLimit.Window)}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(a.store)
		opts = append(opts, checkin.WithMetrics(a.metrics))
	}

	a.service = checkin.NewService(a.store, limiter, opts...)
	a.handlers = handlers.New(a.service, a.store, cfg.Tokens.ConfirmDelay)

	slog.Info("tokens issued",
		"started", started.Format(time.RFC3339),
		"count", len(issued),
		"tokens_file", a.tokensFile,
		"records_file", a.recordsFile,
	)

	return a, nil
}

// Close releases files and connections in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func redeemedEarlier(ctx context.Context, repo *repository.Repository) (map[string]struct{}, error) {
	list, err := repo.ListRedemptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read earlier redemptions: %w", err)
	}
	used := make(map[string]struct{}, len(list))
	for _, red := range list {
		used[red.Token] = struct{}{}
	}
	return used, nil
}

func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, error) {
	if cfg.RateLimit.RedisURL == "" {
		return ratelimit.NewMemory(), nil
	}
	r, err := ratelimit.NewRedis(ctx, cfg.RateLimit.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("rate limiter backed by redis")
	return r, nil
}
