package storeapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx answer from the store backend.
type APIError struct {
	Status int
	// Detail is the backend's "detail" field, rendered as JSON when it is not a string.
	Detail string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("store api status %d: %s", e.Status, e.Detail)
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{Status: status, Detail: parseDetail(status, body)}
}

func parseDetail(status int, body []byte) string {
	fallback := fmt.Sprintf("store backend responded %d %s", status, http.StatusText(status))

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return fallback
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil || len(envelope.Detail) == 0 || bytes.Equal(envelope.Detail, []byte("null")) {
		return fallback
	}

	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return fallback
		}
		return text
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, envelope.Detail); err != nil {
		return string(envelope.Detail)
	}
	return compact.String()
}
