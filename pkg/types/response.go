package types

// SuccessEnvelope wraps every successful API payload. Meta is only set on
// search results.
type SuccessEnvelope struct {
	Data any         `json:"data"`
	Meta *ResultMeta `json:"meta,omitempty"`
}

// ResultMeta describes a filtered list returned by the autocomplete endpoints.
// Limit is omitted when the server default applied.
type ResultMeta struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	Count int    `json:"count"`
}

// APIError is the public shape of a failed request. Retryable tells the POS
// screen whether resending the same request can succeed.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
