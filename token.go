package iamport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const tokenPath = "/users/getToken"

type CreateTokenRequest struct {
	ImpKey    string `json:"imp_key"`
	ImpSecret string `json:"imp_secret"`
}

type CreateTokenResponse struct {
	AccessToken string   `json:"access_token"`
	ExpiredAt   UnixTime `json:"expired_at"`
	Now         UnixTime `json:"now"`
}

// CreateToken returns the access token held by the cache, or fetches a new
// one with the configured key and secret and caches it until it expires.
//
// Concurrent callers that miss the cache share a single fetch.
func (c *Client) CreateToken(ctx context.Context) (string, error) {
	if token, ok := c.cachedToken(ctx); ok {
		return token, nil
	}

	v, err, _ := c.tokenGroup.Do(c.tokenCacheKey, func() (any, error) {
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// cachedToken reads the token from the cache. Cache failures count as a miss.
func (c *Client) cachedToken(ctx context.Context) (string, bool) {
	ok, err := c.cache.Has(ctx, c.tokenCacheKey)
	if err != nil {
		c.logger.Warn("token cache lookup failed", zap.String("key", c.tokenCacheKey), zap.Error(err))
		return "", false
	}
	if !ok {
		c.logger.Debug("token cache miss", zap.String("key", c.tokenCacheKey))
		return "", false
	}

	token, err := c.cache.Get(ctx, c.tokenCacheKey)
	if err != nil {
		c.logger.Warn("token cache read failed", zap.String("key", c.tokenCacheKey), zap.Error(err))
		return "", false
	}

	c.logger.Debug("token cache hit", zap.String("key", c.tokenCacheKey))
	return token, true
}

// fetchToken requests a new token and stores it in the cache.
func (c *Client) fetchToken(ctx context.Context) (string, error) {
	result, err := c.Request(ctx, http.MethodPost, tokenPath, CreateTokenRequest{
		ImpKey:    c.impKey,
		ImpSecret: c.impSecret,
	}, false)
	if err != nil {
		return "", err
	}

	var resp CreateTokenResponse
	if err := result.Decode(&resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", ErrNoAccessToken
	}

	ttl := c.tokenTTL(resp)
	c.logger.Info("access token issued", zap.Duration("ttl", ttl))

	if ttl <= 0 {
		c.logger.Warn("access token has no usable expiry, not caching it")
		return resp.AccessToken, nil
	}

	if err := c.cache.Set(ctx, c.tokenCacheKey, resp.AccessToken, ttl); err != nil {
		c.logger.Warn("token cache write failed", zap.String("key", c.tokenCacheKey), zap.Error(err))
	}

	return resp.AccessToken, nil
}

// tokenTTL returns how long the token stays valid. The gateway clock is
// preferred over the local one when the response carries it.
func (c *Client) tokenTTL(resp CreateTokenResponse) time.Duration {
	expiresAt := resp.ExpiredAt.Time
	if expiresAt.IsZero() {
		exp, err := c.tokenExpiry(resp.AccessToken)
		if err != nil {
			c.logger.Debug("access token expiry unavailable", zap.Error(err))
			return 0
		}
		expiresAt = exp
	}

	now := resp.Now.Time
	if now.IsZero() {
		now = c.now()
	}

	return expiresAt.Sub(now)
}

// tokenExpiry reads the exp claim of a JWT access token. The signature is
// not verified; the gateway remains the authority on the token.
func (c *Client) tokenExpiry(token string) (time.Time, error) {
	var claims jwt.RegisteredClaims
	if _, _, err := c.parser.ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("unable to parse token: %w", err)
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("token doesn't contain an exp claim")
	}

	return claims.ExpiresAt.Time, nil
}
