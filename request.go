package iamport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Params holds request fields supplied by the caller.
type Params map[string]any

// withDefaults returns p merged over defaults. Keys present in p win.
func (p Params) withDefaults(defaults Params) Params {
	merged := make(Params, len(p)+len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range p {
		merged[k] = v
	}

	return merged
}

// has reports whether key holds a non-empty value.
func (p Params) has(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}

	return fmt.Sprint(v) != ""
}

// Request sends a request to the gateway and returns the parsed response.
//
// A non-empty form is sent as the query string for GET requests and as a
// JSON body otherwise. form may be nil, [Params], a map[string]any or a
// struct with url and json tags. When auth is set an access token is
// obtained with [Client.CreateToken] and sent as the Authorization header.
//
// Every response the gateway did not accept is returned as a [*RequestError].
func (c *Client) Request(ctx context.Context, method, path string, form any, auth bool) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "iamport "+strings.ToUpper(method)+" "+path,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", strings.ToUpper(method)),
			attribute.String("http.target", path),
		),
	)
	defer span.End()

	result, err := c.request(ctx, method, path, form, auth)
	if result != nil {
		span.SetAttributes(
			attribute.Int("http.status_code", result.StatusCode()),
			attribute.Int("iamport.code", result.Code()),
		)
	}
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) {
			span.SetAttributes(
				attribute.Int("http.status_code", reqErr.StatusCode),
				attribute.Int("iamport.code", reqErr.Code),
			)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return result, nil
}

func (c *Client) request(ctx context.Context, method, path string, form any, auth bool) (*Result, error) {
	req, err := c.newRequest(ctx, method, path, form)
	if err != nil {
		return nil, err
	}

	if auth {
		token, err := c.CreateToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", token)
	}

	status, body, err := c.do(req)
	if err != nil {
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			return nil, err
		}

		result, perr := ParseResult(statusErr.Body, statusErr.StatusCode)
		if perr != nil {
			return nil, &RequestError{
				Code:       CodeUnknown,
				Message:    http.StatusText(statusErr.StatusCode),
				StatusCode: statusErr.StatusCode,
				Err:        statusErr,
			}
		}

		return nil, newRequestError(result, statusErr)
	}

	result, err := ParseResult(body, status)
	if err != nil {
		return nil, &RequestError{
			Code:       CodeUnknown,
			Message:    "malformed response",
			StatusCode: status,
			Err:        err,
		}
	}

	if !result.OK() {
		return nil, newRequestError(result, nil)
	}

	return result, nil
}

// newRequest creates a new HTTP request.
func (c *Client) newRequest(ctx context.Context, method, path string, form any) (*http.Request, error) {
	method = strings.ToUpper(method)
	u := c.host + path

	var reqBody io.Reader
	if !isEmptyForm(form) {
		if method == http.MethodGet {
			params, err := encodeQuery(form)
			if err != nil {
				return nil, fmt.Errorf("encode query: %w", err)
			}
			if encoded := params.Encode(); encoded != "" {
				u += "?" + encoded
			}
		} else {
			jsonData, err := json.Marshal(form)
			if err != nil {
				return nil, fmt.Errorf("marshal request: %w", err)
			}
			reqBody = bytes.NewReader(jsonData)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	return req, nil
}

// do executes the request and reads the whole body.
// Non-2xx responses are returned as a [*StatusError].
func (c *Client) do(req *http.Request) (int, []byte, error) {
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("iamport request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, body, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	return resp.StatusCode, body, nil
}

func isEmptyForm(form any) bool {
	if form == nil {
		return true
	}

	v := reflect.ValueOf(form)
	switch v.Kind() {
	case reflect.Map, reflect.Slice:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// encodeQuery encodes maps the way the gateway's PHP clients do and
// structs through their url tags.
func encodeQuery(form any) (url.Values, error) {
	switch f := form.(type) {
	case Params:
		return mapValues(f), nil
	case map[string]any:
		return mapValues(f), nil
	case map[string]string:
		values := url.Values{}
		for k, v := range f {
			values.Set(k, v)
		}
		return values, nil
	default:
		return query.Values(form)
	}
}

func mapValues(m map[string]any) url.Values {
	values := url.Values{}
	for k, v := range m {
		addValue(values, k, v)
	}

	return values
}

func addValue(values url.Values, key string, v any) {
	switch val := v.(type) {
	case nil:
	case string:
		values.Add(key, val)
	case bool:
		if val {
			values.Add(key, "1")
		} else {
			values.Add(key, "0")
		}
	case fmt.Stringer:
		values.Add(key, val.String())
	case []string:
		for i, item := range val {
			values.Add(key+"["+strconv.Itoa(i)+"]", item)
		}
	case []any:
		for i, item := range val {
			addValue(values, key+"["+strconv.Itoa(i)+"]", item)
		}
	case map[string]any:
		for k, item := range val {
			addValue(values, key+"["+k+"]", item)
		}
	default:
		values.Add(key, fmt.Sprint(val))
	}
}
