package iamport

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/apikr/siot-iamport/cache"
)

const (
	// ProductionURL is the official iamport REST endpoint.
	ProductionURL = "https://api.iamport.kr"

	modulePath = "github.com/apikr/siot-iamport"
)

var (
	// ErrStatus is returned when the API returns an unexpected status code.
	ErrStatus = errors.New("unexpected status code")
	// ErrMalformedResponse is returned when a response body is not a gateway envelope.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNoAccessToken is returned when the token endpoint answers without a token.
	ErrNoAccessToken = errors.New("no access token in response")
	// ErrNotImplemented is returned by operations the client does not support.
	ErrNotImplemented = errors.New("not implemented")
	// ErrInvalidArgument is returned when a required argument is missing.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Client holds the configuration needed to call the iamport REST API.
// Use [New] to create a new client. A Client is safe for concurrent use.
type Client struct {
	host          string
	impKey        string
	impSecret     string
	tokenCacheKey string

	cache      Cache
	httpClient *http.Client
	userAgent  string
	logger     *zap.Logger
	tracer     trace.Tracer
	parser     *jwt.Parser
	now        func() time.Time

	tokenGroup singleflight.Group
}

// ClientOption configures a Client before use.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger used for token and request diagnostics.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTracerProvider sets the provider used to create request spans.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *Client) {
		c.tracer = tp.Tracer(modulePath)
	}
}

// WithUserAgent sets a custom User-Agent header for API requests.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithClock replaces the clock used to turn token expiry instants into cache TTLs.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// WithJWTParser configures the parser used to read the exp claim of access
// tokens when the gateway omits expired_at.
func WithJWTParser(parser *jwt.Parser) ClientOption {
	return func(c *Client) {
		c.parser = parser
	}
}

// New creates an iamport API client from cfg.
// An empty Host defaults to [ProductionURL], an empty TokenCacheKey to
// [DefaultTokenCacheKey] and a nil Cache to a private in-memory cache.
func New(cfg Config, opts ...ClientOption) *Client {
	c := &Client{
		host:          strings.TrimRight(cfg.Host, "/"),
		impKey:        cfg.ImpKey,
		impSecret:     cfg.ImpSecret,
		tokenCacheKey: cfg.TokenCacheKey,
		cache:         cfg.Cache,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: zap.NewNop(),
		tracer: otel.GetTracerProvider().Tracer(modulePath),
		parser: jwt.NewParser(),
		now:    time.Now,
	}

	if c.host == "" {
		c.host = ProductionURL
	}
	if c.tokenCacheKey == "" {
		c.tokenCacheKey = DefaultTokenCacheKey
	}
	if c.cache == nil {
		c.cache = cache.NewMemory()
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.userAgent == "" {
		c.userAgent = userAgent()
	}

	return c
}

// version returns the module version of the iamport package.
// It returns "devel" if built without module version information.
func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "devel"
	}

	for _, dep := range info.Deps {
		if dep.Path == modulePath {
			if dep.Version == "(devel)" {
				return "devel"
			}

			return dep.Version
		}
	}

	if info.Main.Path == modulePath && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	return "devel"
}

// userAgent returns the default User-Agent string for this package.
func userAgent() string {
	return fmt.Sprintf("go-iamport/%s (%s; %s/%s)", version(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
