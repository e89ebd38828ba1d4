package prompt

import (
	"errors"
	"strings"

	"transcript-stack/internal/models"
)

// ErrConflictingLength is returned when Shorter and Longer are both selected
var ErrConflictingLength = errors.New("please select either Shorter or Longer, not both")

// ValidationError is a rejected request. Message is safe to show to end users.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks a rewrite configuration before any model call is made
func Validate(rc models.RewriteConfig) error {
	if rc.Has(models.TagShorter) && rc.Has(models.TagLonger) {
		return &ValidationError{Err: ErrConflictingLength}
	}
	return nil
}

// BannedPhrases are words the rewrite model must never use
var BannedPhrases = []string{
	"delve",
	"tapestry",
	"testament",
	"realm",
	"embark",
	"journey",
	"unlock",
	"unleash",
	"harness",
	"leverage",
	"elevate",
	"seamless",
	"robust",
	"cutting-edge",
	"game-changer",
	"revolutionize",
	"navigate the complexities",
	"in today's fast-paced world",
	"it's important to note",
	"in conclusion",
	"dive deep",
	"at the end of the day",
}

// ApplyBlacklist returns lines with the banned phrase instruction prepended
func ApplyBlacklist(lines []string) []string {
	out := make([]string, 0, len(lines)+2)
	out = append(out,
		"Never use any of the following words or phrases: "+strings.Join(BannedPhrases, ", ")+".",
		"If one of them would fit, find a natural alternative instead.",
	)
	return append(out, lines...)
}
