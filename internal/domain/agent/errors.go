package agent

import (
	"errors"
	"fmt"

	appErrors "github.com/hirosato/finance-assistant/internal/domain/errors"
)

// ErrorClass groups model transport failures by how they are handled
type ErrorClass string

const (
	ClassAuthentication ErrorClass = "authentication"
	ClassRateLimit      ErrorClass = "rate_limit"
	ClassOverload       ErrorClass = "overload"
	ClassGeneric        ErrorClass = "generic"
)

// ErrTookTooLong is returned when the model keeps requesting tools past the iteration ceiling
var ErrTookTooLong = errors.New("agent: tool loop exceeded iteration limit")

// ModelError is a classified failure of a model call
type ModelError struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

func (e *ModelError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("model %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("model %s error: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("model %s error: %s", e.Class, e.Message)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the call may succeed if repeated
func (e *ModelError) Retryable() bool {
	return e.Class == ClassRateLimit || e.Class == ClassOverload
}

// ClassOf returns the class of a model error, or generic for anything else
func ClassOf(err error) ErrorClass {
	var modelErr *ModelError
	if errors.As(err, &modelErr) {
		return modelErr.Class
	}
	return ClassGeneric
}

// User-facing replies, one per failure class
const (
	MessageAuthentication  = "I couldn't authenticate with the AI service. Please ask an administrator to check the API key."
	MessageRateLimit       = "I'm getting too many requests right now. Please wait a minute and try again."
	MessageOverload        = "The AI service is overloaded at the moment. Please try again in a few minutes."
	MessageGeneric         = "Something went wrong while I was working on that. Please try again."
	MessageTookTooLong     = "That question took too many steps to answer. Try asking something more specific."
	MessageConfiguration   = "The assistant isn't fully configured yet. Please contact an administrator."
	MessageDataUnavailable = "I couldn't reach the accounting system. Please try again shortly."
)

// UserMessage maps an error from Loop.Run to the reply shown to the user
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTookTooLong):
		return MessageTookTooLong
	case appErrors.HasCode(err, appErrors.CodeConfiguration):
		return MessageConfiguration
	case appErrors.HasCode(err, appErrors.CodeDataUnavailable):
		return MessageDataUnavailable
	}

	var modelErr *ModelError
	if errors.As(err, &modelErr) {
		switch modelErr.Class {
		case ClassAuthentication:
			return MessageAuthentication
		case ClassRateLimit:
			return MessageRateLimit
		case ClassOverload:
			return MessageOverload
		}
	}
	return MessageGeneric
}
