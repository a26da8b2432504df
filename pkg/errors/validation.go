package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// maxRankIDLength bounds rank ids, which become part of trace file names.
const maxRankIDLength = 64

// rankIDRegex matches rank ids produced by users and by the tensor
// transforms: letters, digits and underscores, with "." joining split
// levels and "+" joining flattened ranks.
var rankIDRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*([.+][A-Za-z0-9_]+)*$`)

// ValidateRankID validates a single rank id.
//
// Rank ids name trace files (<rank>-<type>.csv) and CSV header columns, so
// the rules are conservative:
//   - No empty ids
//   - No control characters
//   - No path separators or traversal sequences
//   - Maximum length of 64 characters
func ValidateRankID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidRankID, "rank id cannot be empty")
	}

	if len(id) > maxRankIDLength {
		return New(ErrCodeInvalidRankID, "rank id too long (max %d characters)", maxRankIDLength)
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidRankID, "rank id contains invalid control characters")
		}
	}

	for _, pattern := range []string{"..", "/", "\\"} {
		if strings.Contains(id, pattern) {
			return New(ErrCodeInvalidRankID, "rank id contains invalid characters: %q", pattern)
		}
	}

	if !rankIDRegex.MatchString(id) {
		return New(ErrCodeInvalidRankID, "invalid rank id: %q", id)
	}

	return nil
}

// ValidateRankIDs validates every id and rejects duplicates.
func ValidateRankIDs(ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if err := ValidateRankID(id); err != nil {
			return err
		}
		if seen[id] {
			return New(ErrCodeInvalidRankID, "duplicate rank id: %q", id)
		}
		seen[id] = true
	}
	return nil
}

// ValidateTensorName validates a tensor name. Names are optional; when set
// they follow the rank id rules without the "." and "+" joiners.
func ValidateTensorName(name string) error {
	if name == "" {
		return nil
	}
	if err := ValidateRankID(name); err != nil {
		return Wrap(ErrCodeInvalidInput, err, "invalid tensor name")
	}
	if strings.ContainsAny(name, ".+") {
		return New(ErrCodeInvalidInput, "tensor name cannot contain '.' or '+': %q", name)
	}
	return nil
}

// ValidateTracePath validates a trace directory received from a remote
// caller. It must be a relative path without traversal.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidateTracePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidInput, "trace path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidInput, "trace path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "trace path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidInput, "trace path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidInput, "trace path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidInput, "trace path cannot contain backslashes")
	}

	return nil
}
