package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// payload is a decoded request body. Values stay raw until a handler asks
// for them as a string or a number.
type payload map[string]json.RawMessage

// readPayload decodes the request body as a JSON object. A missing, malformed
// or non-object body yields an empty payload.
func readPayload(r *http.Request) payload {
	if r.Body == nil {
		return payload{}
	}
	data, err := io.ReadAll(r.Body)
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return payload{}
	}
	var out payload
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return payload{}
	}
	return out
}

// String returns the value of key as text. JSON numbers are returned as
// their literal text; any other non-string value reads as empty.
func (p payload) String(key string) string {
	raw, ok := p[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// Number returns the value of key as a float. Absent and null values yield
// nil. Numeric strings are accepted; an empty string reads as zero.
func (p payload) Number(key string) (*float64, error) {
	raw, ok := p[key]
	if !ok || string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		f = 0
		return &f, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%s must be a number", key)
	}
	return &f, nil
}
