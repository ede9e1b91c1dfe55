// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package tokens_test

import (
	"testing"

	"codeberg.org/oliverandrich/token-checkin/internal/tokens"
	"github.com/stretchr/testify/assert"
)

func TestValidToken(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"12345678", true},
		{"1", true},
		{"00000000", true},
		{"", false},
		{"123456789", false}, // too long
		{"1234a678", false},
		{" 1234567", false},
		{"１２３", false}, // fullwidth digits are not ASCII
		{"-1234567", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, tokens.ValidToken(tt.input))
		})
	}
}

func TestValidStudentID(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"999", true},
		{"12345678901234567890", true},
		{"123456789012345678901", false}, // 21 digits
		{"", false},
		{"12 34", false},
		{"abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, tokens.ValidStudentID(tt.input))
		})
	}
}
