// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/oliverandrich/token-checkin/internal/models"
)

// CreateRedemption inserts a redemption. The token column is unique, so a
// second insert for the same token fails.
func (r *Repository) CreateRedemption(ctx context.Context, red *models.Redemption) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO redemptions (token, student_id, redeemed_at) VALUES (?, ?, ?)`,
		red.Token, red.StudentID, red.RedeemedAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	red.ID = id
	return nil
}

// Record implements tokens.Recorder.
func (r *Repository) Record(ctx context.Context, red models.Redemption) error {
	return r.CreateRedemption(ctx, &red)
}

// ListRedemptions returns all redemptions in the order they were recorded.
func (r *Repository) ListRedemptions(ctx context.Context) ([]models.Redemption, error) {
	var out []models.Redemption
	if err := r.db.SelectContext(ctx, &out, `SELECT * FROM redemptions ORDER BY id`); err != nil {
		return nil, err
	}
	return out, nil
}
