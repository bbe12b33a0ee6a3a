package app

import "net/http"

// Error is a client-facing failure. Code and Status are stable; Message is
// safe to show to end users.
type Error struct {
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Is matches any Error of the same kind regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Status == e.Status
}

// WithMessage returns a copy of e carrying msg.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Status: e.Status}
}

var (
	ErrInvalidInput = &Error{Code: "invalid_input", Message: "Invalid input.", Status: http.StatusBadRequest}
	ErrUserExists   = &Error{Code: "user_exists", Message: "Username already taken.", Status: http.StatusBadRequest}
	ErrEmailExists  = &Error{Code: "email_exists", Message: "Email already registered.", Status: http.StatusBadRequest}

	// ErrInvalidCredentials covers both unknown user and wrong password.
	ErrInvalidCredentials = &Error{Code: "invalid_credentials", Message: "Invalid username/email or password.", Status: http.StatusUnauthorized}

	ErrUnauthorized    = &Error{Code: "unauthorized", Message: "Login required", Status: http.StatusUnauthorized}
	ErrForbidden       = &Error{Code: "forbidden", Message: "Forbidden", Status: http.StatusForbidden}
	ErrNotFound        = &Error{Code: "not_found", Message: "Quote not found", Status: http.StatusNotFound}
	ErrInvalidReaction = &Error{Code: "invalid_reaction", Message: "Reaction must be like or collect", Status: http.StatusBadRequest}

	ErrMissingCredential = &Error{Code: "invalid_api_key", Message: "OpenAI API key is missing or invalid.", Status: http.StatusUnauthorized}
	ErrUpstream          = &Error{Code: "ai_error", Message: "OpenAI service returned an error. Please try again.", Status: http.StatusBadGateway}
	ErrExplanationFailed = &Error{Code: "ai_error", Message: "Failed to generate explanation. Please try again later.", Status: http.StatusInternalServerError}

	ErrInternal = &Error{Code: "internal_error", Message: "Internal server error.", Status: http.StatusInternalServerError}
)
