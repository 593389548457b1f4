package session

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/handoff/pkg/domain"
)

var (
	// DefaultMaxInputSize bounds user text in bytes. Longer input is rejected, not truncated.
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize overrides DefaultMaxInputSize.
	EnvMaxInputSize = "HANDOFF_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// textFields are the user_message payload keys carrying free text.
var textFields = []string{"message", "text"}

// SanitizeInput cleans user input by enforcing size limits,
// validating UTF-8, and stripping control characters other than newline, tab and carriage return.
func SanitizeInput(input string) (string, error) {
	limit := getMaxInputSize()
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}

	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// sanitizeEvent cleans the free-text fields of user messages.
// The caller's payload is never modified.
func sanitizeEvent(e domain.Event) (domain.Event, error) {
	if e.Type != domain.EventUserMessage || e.Data == nil {
		return e, nil
	}
	data := maps.Clone(e.Data)
	for _, key := range textFields {
		s, ok := data[key].(string)
		if !ok {
			continue
		}
		clean, err := SanitizeInput(s)
		if err != nil {
			return e, fmt.Errorf("%w: %w", domain.ErrInvalidEvent, err)
		}
		data[key] = clean
	}
	e.Data = data
	return e, nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func getMaxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
