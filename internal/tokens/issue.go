// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package tokens

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"slices"
	"strconv"
)

const (
	minToken = 10000000
	maxToken = 99999999

	// MaxIssue is the size of the 8-digit token space.
	MaxIssue = maxToken - minToken + 1

	// MaxCount bounds one issuance. It keeps duplicate redraws rare and the
	// pool small enough to build at startup.
	MaxCount = 1000000

	// StampFormat is the timestamp layout used in artifact file names.
	StampFormat = "2006-01-02T15-04-05"
)

// Issue generates exactly count distinct 8-digit tokens.
// Duplicate samples and tokens in exclude are rejected and redrawn.
func Issue(count int, exclude map[string]struct{}) ([]string, error) {
	span := big.NewInt(MaxIssue)
	return issueFrom(count, exclude, func() (int64, error) {
		n, err := rand.Int(rand.Reader, span)
		if err != nil {
			return 0, err
		}
		return n.Int64(), nil
	})
}

// issueFrom draws offsets in [0, MaxIssue) from next until count distinct tokens exist.
func issueFrom(count int, exclude map[string]struct{}, next func() (int64, error)) ([]string, error) {
	if count < 1 || count > MaxCount {
		return nil, fmt.Errorf("token count must be between 1 and %d, got %d", MaxCount, count)
	}

	seen := make(map[string]struct{}, count)
	out := make([]string, 0, count)

	for len(out) < count {
		n, err := next()
		if err != nil {
			return nil, fmt.Errorf("failed to generate token: %w", err)
		}
		t := strconv.FormatInt(n+minToken, 10)
		if _, dup := seen[t]; dup {
			continue
		}
		if _, used := exclude[t]; used {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}

	return out, nil
}

// WriteIssued writes the issued tokens, sorted and one per line, to
// dir/tokens-<stamp>.txt and returns the file path.
func WriteIssued(dir, stamp string, issued []string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	path := filepath.Join(dir, "tokens-"+stamp+".txt")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("failed to create token file: %w", err)
	}

	sorted := slices.Clone(issued)
	slices.Sort(sorted)

	w := bufio.NewWriter(f)
	for _, t := range sorted {
		if _, err := w.WriteString(t + "\n"); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("failed to write token file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write token file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to sync token file: %w", err)
	}

	return path, f.Close()
}
