// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// Redemption is a token consumed together with the student ID it was redeemed for.
type Redemption struct { //nolint:govet // fieldalignment: readability over optimization
	ID         int64     `db:"id" json:"id"`
	Token      string    `db:"token" json:"token"`
	StudentID  string    `db:"student_id" json:"student_id"`
	RedeemedAt time.Time `db:"redeemed_at" json:"redeemed_at"`
}

// RecordLine returns the redemption as a line of the durable record file.
func (r Redemption) RecordLine() string {
	return r.Token + "," + r.StudentID + "\n"
}
