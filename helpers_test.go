package iamport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/apikr/siot-iamport/cache"
)

const testToken = "test-token"

// newTestClient starts a server for handler and returns a client whose cache
// already holds testToken.
func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tokens := cache.NewMemory()
	require.NoError(t, tokens.Set(context.Background(), DefaultTokenCacheKey, testToken, time.Hour))

	return New(Config{
		Host:      server.URL,
		ImpKey:    "imp-key",
		ImpSecret: "imp-secret",
		Cache:     tokens,
	}, append([]ClientOption{
		WithHTTPClient(server.Client()),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)...)
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

// decodeBody decodes a JSON request body into a generic map.
func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Errorf("failed to decode request: %v", err)
	}
	return body
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Has(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}
