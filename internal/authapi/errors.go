package authapi

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrUnavailable indicates the authentication service could not be
	// reached or answered with a server error. Never treated as a logout.
	ErrUnavailable = errors.New("authentication service unavailable")
	// ErrInvalidCredentials is the fixed fallback for rejected logins when
	// the server does not provide its own message.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

const blockedCode = "account_blocked"

// Error carries the upstream failure with enough structure for callers to
// decide presentation. Login errors are returned unmodified by the session
// manager, so the HTTP layer sees this type directly.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status >= 500 || e.Status == 0 {
		return ErrUnavailable.Error()
	}
	return ErrInvalidCredentials.Error()
}

// Unwrap maps the upstream status onto the package sentinels so callers can
// use errors.Is without inspecting status codes.
func (e *Error) Unwrap() error {
	if e.Status >= 500 || e.Status == 0 {
		return ErrUnavailable
	}
	return ErrInvalidCredentials
}

// IsAccountBlocked reports whether the failure denotes a blocked or disabled
// account. A structured code is preferred; the legacy substring heuristic is
// kept as a fallback and pinned by tests.
func IsAccountBlocked(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == blockedCode {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "blocked") || strings.Contains(msg, "disabled")
}

// errorEnvelope tolerates the error body shapes the upstream is known to
// produce: flat {"message"}, nested {"error":{"message","code"}}, and the
// HTTP envelope {"detail"}.
type errorEnvelope struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Detail  string `json:"detail"`
	Err     *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func decodeError(status int, body []byte) *Error {
	apiErr := &Error{Status: status}
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return apiErr
	}
	switch {
	case envelope.Err != nil && envelope.Err.Message != "":
		apiErr.Message = envelope.Err.Message
		apiErr.Code = envelope.Err.Code
	case envelope.Message != "":
		apiErr.Message = envelope.Message
		apiErr.Code = envelope.Code
	case envelope.Detail != "":
		apiErr.Message = envelope.Detail
	}
	return apiErr
}
