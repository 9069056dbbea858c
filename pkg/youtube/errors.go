package youtube

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrQuotaExceeded signals that the API reported quota or authorization
// exhaustion. Callers must treat it as fatal for the whole run: continuing
// would silently under-report staleness.
var ErrQuotaExceeded = errors.New("youtube: quota or authorization exhausted")

// APIError is the decoded Data API error envelope.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
	Reasons    []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("youtube: api error %d: %s", e.Code, e.Message)
}

// Is reports quota/auth exhaustion as ErrQuotaExceeded so callers can
// branch with errors.Is without inspecting reasons themselves.
func (e *APIError) Is(target error) bool {
	return target == ErrQuotaExceeded && e.fatal()
}

// fatal reports whether the error denotes quota or authorization
// exhaustion rather than a retryable or request-level problem.
func (e *APIError) fatal() bool {
	if e.Code == 403 {
		return true
	}
	for _, r := range e.Reasons {
		switch r {
		case "quotaExceeded", "dailyLimitExceeded", "keyInvalid", "forbidden":
			return true
		}
	}
	return false
}

// errorEnvelope is the wire shape of a Data API error response.
type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// decodeAPIError parses an error envelope from a non-2xx response body.
// Returns nil when the body does not carry the envelope.
func decodeAPIError(statusCode int, body []byte) *APIError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Code == 0 {
		return nil
	}
	apiErr := &APIError{
		StatusCode: statusCode,
		Code:       env.Error.Code,
		Message:    env.Error.Message,
	}
	for _, e := range env.Error.Errors {
		if e.Reason != "" {
			apiErr.Reasons = append(apiErr.Reasons, e.Reason)
		}
	}
	return apiErr
}
