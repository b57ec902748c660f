package notify

import (
	"encoding/json"
	"errors"
)

// ErrNoSession is returned when an engine operation runs without an
// authenticated session.
var ErrNoSession = errors.New("notify: no authenticated session")

// genericFailure is shown when no server message could be extracted.
const genericFailure = "something went wrong, please try again"

// Error carries an upstream notification API failure.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return genericFailure
}

// UserMessage extracts a human-readable message for display. The upstream
// produces several error body shapes; decodeError already normalised them,
// so any remaining error collapses to the generic text.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return genericFailure
}

type errorEnvelope struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Err     *struct {
		Message string `json:"message"`
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
	case envelope.Message != "":
		apiErr.Message = envelope.Message
	case envelope.Detail != "":
		apiErr.Message = envelope.Detail
	}
	return apiErr
}
