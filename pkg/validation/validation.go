// Package validation checks untrusted input arriving at the control API
// before it reaches the game.
package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Script and request limits
const (
	MaxScriptSize  = 16 * 1024
	MaxScriptLines = 512
	MaxRequestBody = 32 * 1024
)

var (
	// ErrScriptTooLarge is returned for scripts over MaxScriptSize bytes or
	// MaxScriptLines lines.
	ErrScriptTooLarge = errors.New("script too large")
	// ErrInvalidScript is returned for scripts that are not clean text.
	ErrInvalidScript = errors.New("invalid script")
	// ErrInvalidValue is returned for non-finite or out-of-range control values.
	ErrInvalidValue = errors.New("invalid value")
)

// ValidateScript checks an autopilot script and returns it with Windows line
// endings normalised. Grammar errors are left to the autopilot parser.
func ValidateScript(script string) (string, error) {
	if len(script) > MaxScriptSize {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrScriptTooLarge, len(script), MaxScriptSize)
	}
	if !utf8.ValidString(script) {
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidScript)
	}

	normalized := strings.ReplaceAll(script, "\r\n", "\n")
	if lines := strings.Count(normalized, "\n") + 1; lines > MaxScriptLines {
		return "", fmt.Errorf("%w: %d lines (max %d)", ErrScriptTooLarge, lines, MaxScriptLines)
	}

	for i, r := range normalized {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return "", fmt.Errorf("%w: control character %U at byte %d", ErrInvalidScript, r, i)
		}
	}
	if strings.TrimSpace(normalized) == "" {
		return "", fmt.Errorf("%w: script is empty", ErrInvalidScript)
	}
	return normalized, nil
}

// ValidateThrottle accepts a finite throttle in [0, 1].
func ValidateThrottle(value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 || value > 1 {
		return fmt.Errorf("%w: throttle %v outside [0, 1]", ErrInvalidValue, value)
	}
	return nil
}

// ValidateTimeWarp accepts a finite warp factor of at least 1. The upper
// bound is applied by the game.
func ValidateTimeWarp(factor float64) error {
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor < 1 {
		return fmt.Errorf("%w: time warp %v must be at least 1", ErrInvalidValue, factor)
	}
	return nil
}

// ValidateFlightID accepts the canonical 36 character UUID text form.
func ValidateFlightID(id string) error {
	if len(id) != 36 {
		return fmt.Errorf("%w: flight id %q", ErrInvalidValue, id)
	}
	for i, r := range id {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return fmt.Errorf("%w: flight id %q", ErrInvalidValue, id)
			}
		default:
			if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
				return fmt.Errorf("%w: flight id %q", ErrInvalidValue, id)
			}
		}
	}
	return nil
}
