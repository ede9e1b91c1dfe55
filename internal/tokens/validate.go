// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package tokens

const (
	// MaxTokenLength is the maximum number of digits in a token.
	MaxTokenLength = 8
	// MaxStudentIDLength is the maximum number of digits in a student ID.
	MaxStudentIDLength = 20
)

// ValidToken reports whether s is 1 to 8 ASCII digits.
func ValidToken(s string) bool {
	return isDigits(s, MaxTokenLength)
}

// ValidStudentID reports whether s is 1 to 20 ASCII digits.
func ValidStudentID(s string) bool {
	return isDigits(s, MaxStudentIDLength)
}

func isDigits(s string, maxLen int) bool {
	if len(s) == 0 || len(s) > maxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
