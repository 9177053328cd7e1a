package iamport

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Result is a parsed gateway response.
type Result struct {
	raw        []byte
	statusCode int
}

// ParseResult parses a response body. It fails with [ErrMalformedResponse]
// when body is not a JSON document.
func ParseResult(body []byte, statusCode int) (*Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("parse result: %w", ErrMalformedResponse)
	}

	return &Result{raw: body, statusCode: statusCode}, nil
}

// Search looks up a dot separated path, e.g. "response.access_token".
func (r *Result) Search(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// Code returns the gateway code, or [CodeUnknown] when the response has none.
func (r *Result) Code() int {
	code, ok := r.code()
	if !ok || code != math.Trunc(code) {
		return CodeUnknown
	}

	return int(code)
}

// OK reports whether the gateway accepted the request.
// Codes are compared loosely: 0, 0.0 and "0" all mean success.
func (r *Result) OK() bool {
	code, ok := r.code()
	return ok && code == 0
}

func (r *Result) code() (float64, bool) {
	v := r.Search("code")
	switch v.Type {
	case gjson.Number:
		return v.Num, true
	case gjson.String:
		code, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return code, err == nil
	default:
		return 0, false
	}
}

// Message returns the gateway message. It is empty for null messages.
func (r *Result) Message() string {
	return r.Search("message").String()
}

// StatusCode returns the HTTP status of the response.
func (r *Result) StatusCode() int {
	return r.statusCode
}

// Raw returns the response body.
func (r *Result) Raw() []byte {
	return r.raw
}

// Map returns the whole response as generic JSON values.
func (r *Result) Map() (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(r.raw, &m); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}

	return m, nil
}

// Decode unmarshals the response member of the envelope into v.
func (r *Result) Decode(v any) error {
	member := r.Search("response")
	if !member.Exists() || member.Type == gjson.Null {
		return fmt.Errorf("decode result: empty response: %w", ErrMalformedResponse)
	}

	if err := json.Unmarshal([]byte(member.Raw), v); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}

	return nil
}
