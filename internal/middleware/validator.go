package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var (
	ownerIDPattern    = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	analysisIDPattern = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)
	branchPattern     = regexp.MustCompile(`^[a-zA-Z0-9._/-]{1,255}$`)
)

// ValidateOwnerID validates owner ID format
func ValidateOwnerID(owner string) error {
	if owner == "" {
		return fmt.Errorf("owner ID cannot be empty")
	}
	if !ownerIDPattern.MatchString(owner) {
		return fmt.Errorf("invalid owner ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateAnalysisID validates analysis ID format (UUID)
func ValidateAnalysisID(id string) error {
	if id == "" {
		return fmt.Errorf("analysis ID cannot be empty")
	}
	if !analysisIDPattern.MatchString(strings.ToLower(id)) {
		return fmt.Errorf("invalid analysis ID format")
	}
	return nil
}

// ValidateBranch rejects branch names that could smuggle flags or shell
// metacharacters into the clone invocation
func ValidateBranch(branch string) error {
	if branch == "" {
		return nil // optional, defaults to main
	}
	if strings.HasPrefix(branch, "-") || strings.Contains(branch, "..") {
		return fmt.Errorf("invalid branch name")
	}
	if !branchPattern.MatchString(branch) {
		return fmt.Errorf("invalid characters in branch name")
	}
	return nil
}

// ValidateLimit validates pagination page size
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidatePage validates page number
func ValidatePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
