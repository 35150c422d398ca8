package transport

import (
	"encoding/json"
	"strconv"
	"time"
)

// Envelope is the standard API response wrapper used for both success and error payloads.
type Envelope struct {
	Status string      `json:"status"`
	Code   string      `json:"code,omitempty"`
	Data   interface{} `json:"data,omitempty"`
	Error  interface{} `json:"error,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// NewSuccess returns a success envelope.
func NewSuccess(data interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "success",
		Data:   data,
		Meta:   meta,
	}
}

// NewError returns an error envelope with optional metadata.
func NewError(code string, err interface{}, meta interface{}) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  err,
		Meta:   meta,
	}
}

// String returns the JSON representation (best-effort) for logging purposes.
func (e Envelope) String() string {
	out, err := json.Marshal(e)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// PageMeta carries the opaque cursor for the next page; empty on the last.
type PageMeta struct {
	NextCursor string `json:"next_cursor,omitempty"`
}

// EncodeCursor renders a creation stamp as unix microseconds.
func EncodeCursor(t *time.Time) string {
	if t == nil {
		return ""
	}
	return strconv.FormatInt(t.UnixMicro(), 10)
}

// DecodeCursor parses a cursor produced by EncodeCursor. Empty input yields
// nil.
func DecodeCursor(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	micros, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || micros <= 0 {
		return nil, false
	}
	t := time.UnixMicro(micros).UTC()
	return &t, true
}
