package iamport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/apikr/siot-iamport/cache"
)

// newTokenClient returns a client for handler that uses tokens as its cache.
func newTokenClient(t *testing.T, handler http.HandlerFunc, tokens Cache, opts ...ClientOption) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(Config{
		Host:          server.URL,
		ImpKey:        "imp-key",
		ImpSecret:     "imp-secret",
		TokenCacheKey: "token",
		Cache:         tokens,
	}, append([]ClientOption{
		WithHTTPClient(server.Client()),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)...)
}

// createTestJWT signs an HS256 token expiring at expiresAt.
func createTestJWT(t *testing.T, expiresAt time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)
	return signed
}

func TestClient_CreateToken_CacheHit(t *testing.T) {
	tokens := cache.NewMemory()
	require.NoError(t, tokens.Set(context.Background(), "token", "cached-token", time.Hour))

	client := newTokenClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called when the cache holds a token")
	}, tokens)

	token, err := client.CreateToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached-token", token)
}

func TestClient_CreateToken_CacheMiss(t *testing.T) {
	var calls int
	tokens := &mockCache{}
	tokens.On("Has", mock.Anything, "token").Return(false, nil)
	tokens.On("Set", mock.Anything, "token", "tok123", 600*time.Second).Return(nil).Once()

	client := newTokenClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/users/getToken", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		body := decodeBody(t, r)
		assert.Equal(t, "imp-key", body["imp_key"])
		assert.Equal(t, "imp-secret", body["imp_secret"])

		writeJSON(t, w, http.StatusOK, map[string]any{
			"code":    0,
			"message": nil,
			"response": map[string]any{
				"access_token": "tok123",
				"expired_at":   1700000600,
			},
		})
	}, tokens, WithClock(func() time.Time { return time.Unix(1700000000, 0) }))

	token, err := client.CreateToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok123", token)
	assert.Equal(t, 1, calls)
	tokens.AssertExpectations(t)
}

func TestClient_CreateToken_StoresInCache(t *testing.T) {
	tokens := cache.NewMemory()

	var calls atomic.Int32
	client := newTokenClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"code": 0,
			"response": map[string]any{
				"access_token": "tok123",
				"expired_at":   time.Now().Add(10 * time.Minute).Unix(),
			},
		})
	}, tokens)

	for range 3 {
		token, err := client.CreateToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok123", token)
	}

	assert.Equal(t, int32(1), calls.Load())

	cached, err := tokens.Get(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "tok123", cached)
}

func TestClient_CreateToken_UsesGatewayClock(t *testing.T) {
	tokens := &mockCache{}
	tokens.On("Has", mock.Anything, "token").Return(false, nil)
	tokens.On("Set", mock.Anything, "token", "tok123", 1800*time.Second).Return(nil).Once()

	client := newTokenClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"code": 0,
			"response": map[string]any{
				"access_token": "tok123",
				"expired_at":   1700001800,
				"now":          1700000000,
			},
		})
	}, tokens, WithClock(func() time.Time { return time.Unix(1800000000, 0) }))

	_, err := client.CreateToken(context.Background())
	require.NoError(t, err)
	tokens.AssertExpectations(t)
}

func TestClient_CreateToken_JWTExpiry(t *testing.T) {
	now := time.Unix(1700000000, 0)
	jwtToken := createTestJWT(t, now.Add(5*time.Minute))

	tokens := &mockCache{}
	tokens.On("Has", mock.Anything, "token").Return(false, nil)
	tokens.On("Set", mock.Anything, "token", jwtToken, 5*time.Minute).Return(nil).Once()

	client := newTokenClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"code":     0,
			"response": map[string]any{"access_token": jwtToken},
		})
	}, tokens, WithClock(func() time.Time { return now }))

	token, err := client.CreateToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, jwtToken, token)
	tokens.AssertExpectations(t)
}

func TestClient_CreateToken_NoExpiryIsNotCached(t *testing.T) {
	tokens := &mockCache{}
	tokens.On("Has", mock.Anything, "token").Return(false, nil)

	client := newTokenClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"code":     0,
			"response": map[string]any{"access_token": "opaque"},
		})
	}, tokens)

	token, err := client.CreateToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "opaque", token)
	tokens.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClient_CreateToken_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		response   map[string]any
		wantCode   int
		wantErr    error
		wantRegErr bool
	}{
		{
			name:   "invalid credentials",
			status: http.StatusUnauthorized,
			response: map[string]any{
				"code":    -1,
				"message": "imp_key, imp_secret 파라메터가 누락되었습니다.",
			},
			wantCode:   -1,
			wantRegErr: true,
		},
		{
			name:       "gateway code",
			status:     http.StatusOK,
			response:   map[string]any{"code": 1, "message": "denied"},
			wantCode:   1,
			wantRegErr: true,
		},
		{
			name:     "empty token",
			status:   http.StatusOK,
			response: map[string]any{"code": 0, "response": map[string]any{"access_token": ""}},
			wantErr:  ErrNoAccessToken,
		},
		{
			name:     "null response",
			status:   http.StatusOK,
			response: map[string]any{"code": 0, "response": nil},
			wantErr:  ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &mockCache{}
			tokens.On("Has", mock.Anything, "token").Return(false, nil)

			var calls int
			client := newTokenClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				writeJSON(t, w, tt.status, tt.response)
			}, tokens)

			_, err := client.CreateToken(context.Background())
			require.Error(t, err)
			assert.Equal(t, 1, calls, "token fetch must not be retried")

			if tt.wantRegErr {
				var reqErr *RequestError
				require.ErrorAs(t, err, &reqErr)
				assert.Equal(t, tt.wantCode, reqErr.Code)
				assert.Equal(t, tt.response["message"], reqErr.Message)
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			tokens.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestClient_CreateToken_CacheFailure(t *testing.T) {
	tokens := &mockCache{}
	tokens.On("Has", mock.Anything, "token").Return(false, errors.New("connection refused"))
	tokens.On("Set", mock.Anything, "token", "tok123", mock.Anything).Return(errors.New("connection refused"))

	client := newTokenClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"code": 0,
			"response": map[string]any{
				"access_token": "tok123",
				"expired_at":   time.Now().Add(time.Hour).Unix(),
			},
		})
	}, tokens)

	token, err := client.CreateToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok123", token)
}

func TestClient_CreateToken_CacheReadAfterExpiry(t *testing.T) {
	tokens := &mockCache{}
	tokens.On("Has", mock.Anything, "token").Return(true, nil)
	tokens.On("Get", mock.Anything, "token").Return("", cache.ErrMiss)
	tokens.On("Set", mock.Anything, "token", "tok123", mock.Anything).Return(nil)

	client := newTokenClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"code": 0,
			"response": map[string]any{
				"access_token": "tok123",
				"expired_at":   time.Now().Add(time.Hour).Unix(),
			},
		})
	}, tokens)

	token, err := client.CreateToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok123", token)
}

func TestClient_CreateToken_ConcurrentCalls(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})

	client := newTokenClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		writeJSON(t, w, http.StatusOK, map[string]any{
			"code": 0,
			"response": map[string]any{
				"access_token": "tok123",
				"expired_at":   time.Now().Add(time.Hour).Unix(),
			},
		})
	}, cache.NewMemory())

	var wg sync.WaitGroup
	tokens := make(chan string, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := client.CreateToken(context.Background())
			if err != nil {
				t.Errorf("CreateToken() error = %v", err)
			}
			tokens <- token
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(tokens)

	for token := range tokens {
		assert.Equal(t, "tok123", token)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_tokenTTL(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name string
		resp CreateTokenResponse
		want time.Duration
	}{
		{
			name: "expired_at against local clock",
			resp: CreateTokenResponse{AccessToken: "t", ExpiredAt: UnixTime{time.Unix(1700000600, 0)}},
			want: 600 * time.Second,
		},
		{
			name: "expired_at against gateway clock",
			resp: CreateTokenResponse{
				AccessToken: "t",
				ExpiredAt:   UnixTime{time.Unix(1700000600, 0)},
				Now:         UnixTime{time.Unix(1700000500, 0)},
			},
			want: 100 * time.Second,
		},
		{
			name: "already expired",
			resp: CreateTokenResponse{AccessToken: "t", ExpiredAt: UnixTime{time.Unix(1699999000, 0)}},
			want: -1000 * time.Second,
		},
		{
			name: "opaque token without expiry",
			resp: CreateTokenResponse{AccessToken: "not-a-jwt"},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(Config{}, WithClock(func() time.Time { return now }))
			assert.Equal(t, tt.want, client.tokenTTL(tt.resp))
		})
	}
}

func TestClient_tokenExpiry_NoExpClaim(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "merchant"})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = New(Config{}).tokenExpiry(signed)
	assert.ErrorContains(t, err, "exp claim")
}
