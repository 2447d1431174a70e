package upstream

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrSessionExpired is returned when a 401 could not be recovered by a token
// refresh. Callers must treat it as fatal to the current session.
var ErrSessionExpired = errors.New("session expired")

// ErrUnreachable wraps transport-level failures (the call never completed).
var ErrUnreachable = errors.New("could not reach the server, please check your connection")

// APIError is a non-2xx upstream outcome normalized into one human-readable
// message. Fields carries structured validation errors when the upstream
// returned them.
type APIError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *APIError) Error() string {
	return e.Message
}

// newAPIError normalizes an upstream error payload. A flat object of
// field -> violations (no top-level detail or message key) is flattened to
// "field: v1, v2. other: ..."; otherwise the detail or message value is used;
// anything else falls back to a generic message.
func newAPIError(status int, payload []byte) *APIError {
	apiErr := &APIError{Status: status, Message: "Request failed"}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil || len(raw) == 0 {
		return apiErr
	}

	if detail, ok := raw["detail"]; ok {
		apiErr.Message = scalarString(detail)
		return apiErr
	}
	if message, ok := raw["message"]; ok {
		apiErr.Message = scalarString(message)
		return apiErr
	}

	fields := make(map[string][]string, len(raw))
	keys := make([]string, 0, len(raw))
	for key, value := range raw {
		fields[key] = violationStrings(value)
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+strings.Join(fields[key], ", "))
	}

	apiErr.Message = strings.Join(parts, ". ")
	apiErr.Fields = fields
	return apiErr
}

func violationStrings(raw json.RawMessage) []string {
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, scalarString(item))
		}
		return out
	}
	return []string{scalarString(raw)}
}

func scalarString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
