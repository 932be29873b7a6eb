package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/jrsteele09/tourney-finder/internal/metrics"
)

const (
	maxResponseBytes = 1 << 20

	// maxBackoffInterval caps a single wait between attempts.
	maxBackoffInterval = time.Hour
)

// Client is the identity provider client used by the login flow.
type Client struct {
	oauth      *oauth2.Config
	apiURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	onRetry    func(op string, err error, delay time.Duration)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for server-to-server calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithRetryNotify registers a callback run before each retry with the delay about to be waited.
func WithRetryNotify(fn func(op string, err error, delay time.Duration)) Option {
	return func(c *Client) {
		c.onRetry = fn
	}
}

// New creates a provider client. Zero policy values get defaults:
// 10s request timeout, 500ms base delay, no pacing.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("[identity New] invalid config: %w", err)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}

	limit := rate.Inf
	if cfg.MinRequestInterval > 0 {
		limit = rate.Every(cfg.MinRequestInterval)
	}

	c := &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
		},
		apiURL:     strings.TrimSuffix(cfg.APIURL, "/"),
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(limit, 1),
		timeout:    cfg.RequestTimeout,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BuildAuthorizationURL returns the provider URL the browser is sent to.
// It performs no I/O.
func (c *Client) BuildAuthorizationURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// ExchangeCodeForToken swaps the callback code for an access token.
// The redirect URI sent is the one used in BuildAuthorizationURL.
func (c *Client) ExchangeCodeForToken(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, &ProviderError{Op: OpTokenExchange, Err: errors.New("empty authorization code")}
	}
	return withRetry(ctx, c, OpTokenExchange, func(ctx context.Context) (*oauth2.Token, error) {
		token, err := c.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), code)
		if err != nil {
			return nil, classifyExchangeError(ctx, err)
		}
		return token, nil
	})
}

// FetchProfile reads the authenticated user from the provider API.
func (c *Client) FetchProfile(ctx context.Context, token *oauth2.Token) (ProviderIdentity, error) {
	if token == nil || token.AccessToken == "" {
		return ProviderIdentity{}, &ProviderError{Op: OpFetchProfile, Err: errors.New("missing access token")}
	}
	return withRetry(ctx, c, OpFetchProfile, func(ctx context.Context) (ProviderIdentity, error) {
		return c.fetchProfileOnce(ctx, token)
	})
}

func (c *Client) fetchProfileOnce(ctx context.Context, token *oauth2.Token) (ProviderIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/user", nil)
	if err != nil {
		return ProviderIdentity{}, &ProviderError{Op: OpFetchProfile, Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	token.SetAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ProviderIdentity{}, &ProviderError{Op: OpFetchProfile, transient: isTransientNetworkError(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ProviderIdentity{}, &ProviderError{Op: OpFetchProfile, StatusCode: resp.StatusCode, transient: isTransientNetworkError(ctx, err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ProviderIdentity{}, &ProviderError{
			Op:         OpFetchProfile,
			StatusCode: resp.StatusCode,
			Detail:     gjson.GetBytes(body, "message").String(),
			transient:  isTransientStatus(resp),
		}
	}

	id := gjson.GetBytes(body, "id")
	if id.Type != gjson.Number || id.Int() <= 0 || float64(id.Int()) != id.Float() {
		return ProviderIdentity{}, &ProviderError{Op: OpFetchProfile, StatusCode: resp.StatusCode, Err: errors.New("profile has no valid numeric id")}
	}
	return ProviderIdentity{
		ProviderUserID: id.Int(),
		Username:       gjson.GetBytes(body, "login").String(),
	}, nil
}

// withRetry runs attempt with pacing, a per-attempt timeout and exponential
// backoff. Only transient ProviderErrors are retried.
func withRetry[T any](ctx context.Context, c *Client, op string, attempt func(context.Context) (T, error)) (T, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = min(c.baseDelay, maxBackoffInterval)
	expBackoff.Multiplier = 2
	expBackoff.RandomizationFactor = 0
	expBackoff.MaxInterval = backoffCeiling(c.baseDelay, c.maxRetries)
	expBackoff.Reset()

	attemptCount := 0
	operation := func() (T, error) {
		attemptCount++
		var zero T
		if err := c.limiter.Wait(ctx); err != nil {
			return zero, backoff.Permanent(&ProviderError{Op: op, transient: true, Err: err})
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		result, err := attempt(attemptCtx)
		if err == nil {
			metrics.RecordProviderRequest(op, "success")
			return result, nil
		}

		var providerErr *ProviderError
		if errors.As(err, &providerErr) && providerErr.Transient() {
			metrics.RecordProviderRequest(op, "transient_error")
			log.Warn().Str("operation", op).Int("attempt", attemptCount).Int("status", providerErr.StatusCode).
				Msg("transient identity provider failure")
			return zero, err
		}
		metrics.RecordProviderRequest(op, "error")
		return zero, backoff.Permanent(err)
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(c.maxRetries+1)), // #nosec G115 -- +1 because it includes the initial attempt
		backoff.WithNotify(func(err error, delay time.Duration) {
			metrics.ProviderRetries.WithLabelValues(op).Inc()
			log.Debug().Str("operation", op).Dur("delay", delay).Msg("retrying identity provider call")
			if c.onRetry != nil {
				c.onRetry(op, err, delay)
			}
		}),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		var providerErr *ProviderError
		if !errors.As(err, &providerErr) {
			// Context cancelled while waiting between attempts.
			return result, &ProviderError{Op: op, transient: true, Err: err}
		}
		return result, err
	}
	return result, nil
}

// backoffCeiling is base doubled once per retry, saturating at maxBackoffInterval.
func backoffCeiling(base time.Duration, retries int) time.Duration {
	ceiling := base
	for i := 0; i < retries && ceiling < maxBackoffInterval; i++ {
		ceiling *= 2
	}
	return min(ceiling, maxBackoffInterval)
}

func classifyExchangeError(ctx context.Context, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		providerErr := &ProviderError{
			Op:     OpTokenExchange,
			Code:   retrieveErr.ErrorCode,
			Detail: retrieveErr.ErrorDescription,
		}
		if providerErr.Code == "" {
			providerErr.Code = gjson.GetBytes(retrieveErr.Body, "error").String()
		}
		if retrieveErr.Response != nil {
			providerErr.StatusCode = retrieveErr.Response.StatusCode
			providerErr.transient = isTransientStatus(retrieveErr.Response)
		}
		return providerErr
	}
	return &ProviderError{Op: OpTokenExchange, transient: isTransientNetworkError(ctx, err), Err: err}
}

// isTransientStatus reports 5xx, 429, and GitHub's 403 with an exhausted rate limit.
func isTransientStatus(resp *http.Response) bool {
	switch {
	case resp.StatusCode >= 500:
		return true
	case resp.StatusCode == http.StatusTooManyRequests:
		return true
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return true
	}
	return false
}

// isTransientNetworkError reports timeouts, including our own per-attempt deadline,
// and connection-level failures where no response was received.
func isTransientNetworkError(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}
