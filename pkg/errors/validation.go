package errors

import (
	"math"
	"strings"
	"unicode"
)

// ValidateYear checks that year lies inside the inclusive range [lo, hi].
func ValidateYear(year, lo, hi int) error {
	if year < lo || year > hi {
		return New(ErrCodeInvalidYear, "year %d outside supported range %d-%d", year, lo, hi)
	}
	return nil
}

// ValidateStepIndex checks that index addresses one of n steps.
func ValidateStepIndex(index, n int) error {
	if n == 0 {
		return New(ErrCodeInvalidStep, "story has no steps")
	}
	if index < 0 || index >= n {
		return New(ErrCodeInvalidStep, "step %d out of range (0-%d)", index, n-1)
	}
	return nil
}

// ValidateCanvas checks that a canvas size is positive and finite.
func ValidateCanvas(width, height float64) error {
	if math.IsNaN(width) || math.IsNaN(height) || math.IsInf(width, 0) || math.IsInf(height, 0) {
		return New(ErrCodeInvalidCanvas, "canvas size must be finite")
	}
	if width <= 0 || height <= 0 {
		return New(ErrCodeInvalidCanvas, "canvas size must be positive (got %.0fx%.0f)", width, height)
	}
	return nil
}

// ValidateSourcePath validates a local dataset or geometry path.
//
// The rules are intentionally conservative:
//   - No empty paths
//   - No control characters or null bytes
//   - Maximum length of 1024 characters
func ValidateSourcePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 1024
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// IsURL reports whether s looks like an http(s) URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
