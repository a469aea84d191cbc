package provider

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrorType classifies known completion-provider failure causes.
type ErrorType string

const (
	// ErrorTypeRefusal covers content-policy and off-topic refusals. These
	// are expected provider behavior and are translated to RefusalMessage
	// instead of being surfaced as errors.
	ErrorTypeRefusal   ErrorType = "refusal"
	ErrorTypeAuth      ErrorType = "auth_error"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeAPIError  ErrorType = "api_error"
)

// RefusalMessage is the fixed user-facing message written to the chat surface
// when the provider refuses a request.
const RefusalMessage = "Sorry, I can't help with that request. I can only assist with questions about the code in your editor."

// ClassifiedError wraps a provider error with its known cause. Errors outside
// the known taxonomy are never wrapped; Classify returns nil for them and the
// caller re-raises so the host's default error surface is used.
type ClassifiedError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Original   error
}

func (e *ClassifiedError) Error() string { return e.Message }

func (e *ClassifiedError) Unwrap() error { return e.Original }

// UserMessage returns the text shown to the user for this cause.
func (e *ClassifiedError) UserMessage() string {
	if e.Type == ErrorTypeRefusal {
		return RefusalMessage
	}
	return e.Message
}

// Refusal phrasings observed across Copilot and OpenAI responses.
var refusalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)off[_\s-]?topic`),
	regexp.MustCompile(`(?i)content[_\s]?filter`),
	regexp.MustCompile(`(?i)content management policy`),
	regexp.MustCompile(`(?i)responsible ai service`),
	regexp.MustCompile(`(?i)filtered by the .* policy`),
	regexp.MustCompile(`(?i)sorry, (?:but )?i can(?:not|'t) assist`),
}

// IsRefusal reports whether an error message indicates a provider refusal.
func IsRefusal(msg string) bool {
	for _, pat := range refusalPatterns {
		if pat.MatchString(msg) {
			return true
		}
	}
	return false
}

// Classify maps an error onto the known failure taxonomy. It returns nil for
// anything it does not recognize: unknown errors must propagate to the host's
// top-level handler rather than being swallowed.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*ClassifiedError); ok {
		return ce
	}

	msg := err.Error()
	if IsRefusal(msg) {
		return &ClassifiedError{
			Type:     ErrorTypeRefusal,
			Message:  msg,
			Original: err,
		}
	}
	return nil
}

// classifyHTTP classifies a non-200 response from a provider endpoint.
func classifyHTTP(statusCode int, body string) error {
	lower := strings.ToLower(body)

	if IsRefusal(body) {
		return &ClassifiedError{
			Type:       ErrorTypeRefusal,
			Message:    body,
			StatusCode: statusCode,
		}
	}
	if statusCode == 401 || statusCode == 403 {
		return &ClassifiedError{
			Type:       ErrorTypeAuth,
			Message:    fmt.Sprintf("authentication error (%d): %s", statusCode, body),
			StatusCode: statusCode,
		}
	}
	if statusCode == 429 || strings.Contains(lower, "rate_limit") || strings.Contains(lower, "too_many_requests") {
		return &ClassifiedError{
			Type:       ErrorTypeRateLimit,
			Message:    fmt.Sprintf("rate limited by provider (%d)", statusCode),
			StatusCode: statusCode,
		}
	}
	// Everything else stays an ordinary error so the caller re-raises it.
	return fmt.Errorf("provider API error (%d): %s", statusCode, body)
}
