// Package types holds the JSON envelopes shared by every HTTP response.
package types

// SuccessEnvelope wraps every successful response body. Message carries an
// optional note for no-op outcomes.
type SuccessEnvelope struct {
	Data    any    `json:"data"`
	Message string `json:"message,omitempty"`
}

// APIError is the client-facing error. RequestID echoes the X-Request-Id
// header so support can find the matching log line.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
