// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package metrics_test

import (
	"strings"
	"testing"

	"codeberg.org/oliverandrich/token-checkin/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedStats struct{ remaining, redeemed int }

func (f fixedStats) Remaining() int { return f.remaining }
func (f fixedStats) Redeemed() int  { return f.redeemed }

func TestNew_PoolGauges(t *testing.T) {
	m := metrics.New(fixedStats{remaining: 48, redeemed: 2})

	expected := `
# HELP checkin_tokens_remaining Issued tokens not yet redeemed.
# TYPE checkin_tokens_remaining gauge
checkin_tokens_remaining 48
# HELP checkin_tokens_redeemed Tokens redeemed since start.
# TYPE checkin_tokens_redeemed gauge
checkin_tokens_redeemed 2
`
	err := testutil.GatherAndCompare(m.Registry, strings.NewReader(expected),
		"checkin_tokens_remaining", "checkin_tokens_redeemed")
	require.NoError(t, err)
}

func TestCounters(t *testing.T) {
	m := metrics.New(nil)

	m.Validation(metrics.OutcomeOK)
	m.Validation(metrics.OutcomeRateLimited)
	m.Validation(metrics.OutcomeRateLimited)
	m.Redemption(metrics.OutcomeNotFound)

	assert.InDelta(t, 1, testutil.ToFloat64(m.Validations.WithLabelValues(metrics.OutcomeOK)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Validations.WithLabelValues(metrics.OutcomeRateLimited)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Redemptions.WithLabelValues(metrics.OutcomeNotFound)), 0)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *metrics.Metrics

	assert.NotPanics(t, func() {
		m.Validation(metrics.OutcomeOK)
		m.Redemption(metrics.OutcomeOK)
	})
}
