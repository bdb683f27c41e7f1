package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hyperengineering/wortschatz/internal/types"
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{
			Field:   field,
			Message: "must not contain null bytes",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateLessonSlug returns an error unless value is a canonical lesson slug.
func ValidateLessonSlug(field, value string) *ValidationError {
	if !types.IsLessonSlug(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be a lesson slug like lesson01",
		}
	}
	return nil
}

// ValidateText runs the checks every source or target text must pass.
func ValidateText(field, value string) []ValidationError {
	c := &Collector{}
	c.Add(ValidateRequired(field, value))
	c.Add(ValidateUTF8(field, value))
	c.Add(ValidateNoNullBytes(field, value))
	c.Add(ValidateMaxLength(field, value, types.MaxTextLength))
	return c.Errors()
}

// ValidatePair validates both texts of a pair. A negative index omits the
// array prefix from field names.
func ValidatePair(index int, pair types.Pair) []ValidationError {
	prefix := ""
	if index >= 0 {
		prefix = fmt.Sprintf("pairs[%d].", index)
	}

	var errs []ValidationError
	errs = append(errs, ValidateText(prefix+"source_text", pair.SourceText)...)
	errs = append(errs, ValidateText(prefix+"target_text", pair.TargetText)...)
	return errs
}

// NormalizePair trims surrounding whitespace from both texts.
func NormalizePair(pair types.Pair) types.Pair {
	return types.Pair{
		SourceText: strings.TrimSpace(pair.SourceText),
		TargetText: strings.TrimSpace(pair.TargetText),
	}
}

// CleanPairs normalizes pairs and drops the invalid ones, returning the
// survivors and the validation errors of the rejected pairs.
func CleanPairs(pairs []types.Pair) ([]types.Pair, []ValidationError) {
	valid := make([]types.Pair, 0, len(pairs))
	var rejected []ValidationError

	for i, p := range pairs {
		p = NormalizePair(p)
		if errs := ValidatePair(i, p); len(errs) > 0 {
			rejected = append(rejected, errs...)
			continue
		}
		valid = append(valid, p)
	}

	return valid, rejected
}
