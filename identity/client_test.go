package identity_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/tourney-finder/identity"
	autherrors "github.com/jrsteele09/tourney-finder/internal/errors"
)

const (
	testClientID     = "test-client-id"
	testClientSecret = "test-client-secret"
	testRedirectURL  = "http://localhost:8080/auth/callback"
	testCode         = "validcode"
	testAccessToken  = "gho_testtoken"
)

// stubProvider is a fake GitHub: token endpoint, profile endpoint and a log of calls.
type stubProvider struct {
	server       *httptest.Server
	tokenCalls   atomic.Int32
	profileCalls atomic.Int32
	tokenFunc    func(w http.ResponseWriter, r *http.Request, call int32)
	profileFunc  func(w http.ResponseWriter, r *http.Request, call int32)
}

func newStubProvider(t *testing.T) *stubProvider {
	t.Helper()
	sp := &stubProvider{
		tokenFunc:   writeToken,
		profileFunc: writeProfile(42, "octocat"),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		sp.tokenFunc(w, r, sp.tokenCalls.Add(1))
	})
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		sp.profileFunc(w, r, sp.profileCalls.Add(1))
	})
	sp.server = httptest.NewServer(mux)
	t.Cleanup(sp.server.Close)
	return sp
}

func writeToken(w http.ResponseWriter, _ *http.Request, _ int32) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"access_token":%q,"token_type":"bearer","scope":"read:user"}`, testAccessToken)
}

func writeProfile(id int64, login string) func(http.ResponseWriter, *http.Request, int32) {
	return func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%d,"login":%q,"name":"The Octocat"}`, id, login)
	}
}

func writeStatus(status int, body string) func(http.ResponseWriter, *http.Request, int32) {
	return func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}
}

func (sp *stubProvider) config() identity.Config {
	return identity.Config{
		ClientID:       testClientID,
		ClientSecret:   testClientSecret,
		AuthURL:        sp.server.URL + "/login/oauth/authorize",
		TokenURL:       sp.server.URL + "/login/oauth/access_token",
		APIURL:         sp.server.URL,
		RedirectURL:    testRedirectURL,
		Scopes:         []string{"read:user"},
		RequestTimeout: time.Second,
		MaxRetries:     3,
		RetryBaseDelay: time.Millisecond,
	}
}

type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (d *delayRecorder) record(_ string, _ error, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delays = append(d.delays, delay)
}

func (d *delayRecorder) get() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Duration(nil), d.delays...)
}

func setupClient(t *testing.T, sp *stubProvider, mutate func(*identity.Config)) (*identity.Client, *delayRecorder) {
	t.Helper()
	cfg := sp.config()
	if mutate != nil {
		mutate(&cfg)
	}
	rec := &delayRecorder{}
	client, err := identity.New(cfg, identity.WithHTTPClient(sp.server.Client()), identity.WithRetryNotify(rec.record))
	require.NoError(t, err)
	return client, rec
}

func TestNew_RejectsIncompleteConfig(t *testing.T) {
	_, err := identity.New(identity.Config{ClientID: testClientID})
	require.Error(t, err)
}

func TestNew_RejectsExcessiveRetries(t *testing.T) {
	sp := newStubProvider(t)
	for _, retries := range []int{identity.MaxRetriesLimit + 1, 40, 64} {
		cfg := sp.config()
		cfg.MaxRetries = retries
		_, err := identity.New(cfg)
		require.Error(t, err, "max retries %d accepted", retries)
	}
}

func TestBuildAuthorizationURL(t *testing.T) {
	sp := newStubProvider(t)
	client, _ := setupClient(t, sp, nil)

	raw := client.BuildAuthorizationURL("abc123")
	require.Equal(t, raw, client.BuildAuthorizationURL("abc123"))

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/login/oauth/authorize", u.Path)

	q := u.Query()
	require.Equal(t, testClientID, q.Get("client_id"))
	require.Equal(t, testRedirectURL, q.Get("redirect_uri"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "read:user", q.Get("scope"))
	require.Equal(t, "abc123", q.Get("state"))
	require.Empty(t, q.Get("client_secret"))
	require.Zero(t, sp.tokenCalls.Load()+sp.profileCalls.Load())
}

func TestExchangeCodeForToken(t *testing.T) {
	t.Run("sends code, credentials and the same redirect uri", func(t *testing.T) {
		sp := newStubProvider(t)
		var form url.Values
		sp.tokenFunc = func(w http.ResponseWriter, r *http.Request, call int32) {
			require.NoError(t, r.ParseForm())
			form = r.PostForm
			writeToken(w, r, call)
		}
		client, _ := setupClient(t, sp, nil)

		token, err := client.ExchangeCodeForToken(context.Background(), testCode)
		require.NoError(t, err)
		require.Equal(t, testAccessToken, token.AccessToken)

		require.Equal(t, testCode, form.Get("code"))
		require.Equal(t, testClientID, form.Get("client_id"))
		require.Equal(t, testClientSecret, form.Get("client_secret"))
		require.Equal(t, testRedirectURL, form.Get("redirect_uri"))
		require.Equal(t, "authorization_code", form.Get("grant_type"))
	})

	t.Run("retries 500 and succeeds with non-decreasing delays", func(t *testing.T) {
		sp := newStubProvider(t)
		sp.tokenFunc = func(w http.ResponseWriter, r *http.Request, call int32) {
			if call <= 3 {
				writeStatus(http.StatusInternalServerError, `{"error":"server_error"}`)(w, r, call)
				return
			}
			writeToken(w, r, call)
		}
		client, rec := setupClient(t, sp, nil)

		token, err := client.ExchangeCodeForToken(context.Background(), testCode)
		require.NoError(t, err)
		require.Equal(t, testAccessToken, token.AccessToken)
		require.Equal(t, int32(4), sp.tokenCalls.Load())

		delays := rec.get()
		require.Len(t, delays, 3)
		for i := 1; i < len(delays); i++ {
			require.GreaterOrEqual(t, delays[i], delays[i-1])
		}
		require.Equal(t, time.Millisecond, delays[0])
		require.Equal(t, 2*time.Millisecond, delays[1])
	})

	t.Run("always 500 fails after max retries", func(t *testing.T) {
		sp := newStubProvider(t)
		sp.tokenFunc = writeStatus(http.StatusInternalServerError, `{"error":"server_error"}`)
		client, _ := setupClient(t, sp, nil)

		_, err := client.ExchangeCodeForToken(context.Background(), testCode)
		require.ErrorIs(t, err, autherrors.ErrOAuthExchangeFailed)
		require.Equal(t, int32(4), sp.tokenCalls.Load())

		var providerErr *identity.ProviderError
		require.ErrorAs(t, err, &providerErr)
		require.True(t, providerErr.Transient())
		require.Equal(t, http.StatusInternalServerError, providerErr.StatusCode)
	})

	t.Run("delays keep doubling at the retry limit", func(t *testing.T) {
		sp := newStubProvider(t)
		sp.tokenFunc = writeStatus(http.StatusInternalServerError, `{"error":"server_error"}`)
		client, rec := setupClient(t, sp, func(cfg *identity.Config) {
			cfg.MaxRetries = identity.MaxRetriesLimit
			cfg.RetryBaseDelay = time.Microsecond
		})

		_, err := client.ExchangeCodeForToken(context.Background(), testCode)
		require.ErrorIs(t, err, autherrors.ErrOAuthExchangeFailed)
		require.Equal(t, int32(identity.MaxRetriesLimit+1), sp.tokenCalls.Load())

		delays := rec.get()
		require.Len(t, delays, identity.MaxRetriesLimit)
		require.Equal(t, time.Microsecond, delays[0])
		for i := 1; i < len(delays); i++ {
			require.Positive(t, delays[i])
			require.Equal(t, 2*delays[i-1], delays[i], "delay %d", i)
		}
	})

	t.Run("large base delay saturates instead of overflowing", func(t *testing.T) {
		sp := newStubProvider(t)
		sp.tokenFunc = writeStatus(http.StatusInternalServerError, `{"error":"server_error"}`)
		client, rec := setupClient(t, sp, func(cfg *identity.Config) {
			cfg.MaxRetries = identity.MaxRetriesLimit
			cfg.RetryBaseDelay = 1000 * time.Hour
		})

		// Cancelling from the first retry notification stops the wait immediately.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			for len(rec.get()) == 0 {
				time.Sleep(time.Millisecond)
			}
			cancel()
		}()

		_, err := client.ExchangeCodeForToken(ctx, testCode)
		require.Error(t, err)
		delays := rec.get()
		require.NotEmpty(t, delays)
		require.Equal(t, time.Hour, delays[0])
	})

	t.Run("4xx is not retried and carries provider detail", func(t *testing.T) {
		sp := newStubProvider(t)
		sp.tokenFunc = writeStatus(http.StatusBadRequest,
			`{"error":"bad_verification_code","error_description":"The code passed is incorrect or expired."}`)
		client, rec := setupClient(t, sp, nil)

		_, err := client.ExchangeCodeForToken(context.Background(), testCode)
		require.ErrorIs(t, err, autherrors.ErrOAuthExchangeFailed)
		require.Equal(t, int32(1), sp.tokenCalls.Load())
		require.Empty(t, rec.get())

		var providerErr *identity.ProviderError
		require.ErrorAs(t, err, &providerErr)
		require.False(t, providerErr.Transient())
		require.Equal(t, "bad_verification_code", providerErr.Code)
	})

	t.Run("response without access token fails", func(t *testing.T) {
		sp := newStubProvider(t)
		sp.tokenFunc = writeStatus(http.StatusOK, `{"token_type":"bearer"}`)
		client, _ := setupClient(t, sp, nil)

		_, err := client.ExchangeCodeForToken(context.Background(), testCode)
		require.ErrorIs(t, err, autherrors.ErrOAuthExchangeFailed)
		require.Equal(t, int32(1), sp.tokenCalls.Load())
	})

	t.Run("empty code fails without a call", func(t *testing.T) {
		sp := newStubProvider(t)
		client, _ := setupClient(t, sp, nil)

		_, err := client.ExchangeCodeForToken(context.Background(), "")
		require.ErrorIs(t, err, autherrors.ErrOAuthExchangeFailed)
		require.Zero(t, sp.tokenCalls.Load())
	})
}

func TestFetchProfile(t *testing.T) {
	token := &oauth2.Token{AccessToken: testAccessToken, TokenType: "bearer"}

	t.Run("returns identity and sends bearer token", func(t *testing.T) {
		sp := newStubProvider(t)
		var authHeader string
		sp.profileFunc = func(w http.ResponseWriter, r *http.Request, call int32) {
			authHeader = r.Header.Get("Authorization")
			writeProfile(42, "octocat")(w, r, call)
		}
		client, _ := setupClient(t, sp, nil)

		id, err := client.FetchProfile(context.Background(), token)
		require.NoError(t, err)
		require.Equal(t, identity.ProviderIdentity{ProviderUserID: 42, Username: "octocat"}, id)
		require.Equal(t, "Bearer "+testAccessToken, authHeader)
	})

	t.Run("401 fails immediately", func(t *testing.T) {
		sp := newStubProvider(t)
		sp.profileFunc = writeStatus(http.StatusUnauthorized, `{"message":"Bad credentials"}`)
		client, _ := setupClient(t, sp, nil)

		_, err := client.FetchProfile(context.Background(), token)
		require.ErrorIs(t, err, autherrors.ErrProfileFetchFailed)
		require.NotErrorIs(t, err, autherrors.ErrProfileFetchTransient)
		require.Equal(t, int32(1), sp.profileCalls.Load())

		var providerErr *identity.ProviderError
		require.ErrorAs(t, err, &providerErr)
		require.Equal(t, "Bad credentials", providerErr.Detail)
	})

	t.Run("5xx retried then succeeds", func(t *testing.T) {
		sp := newStubProvider(t)
		sp.profileFunc = func(w http.ResponseWriter, r *http.Request, call int32) {
			if call <= 2 {
				writeStatus(http.StatusBadGateway, `{}`)(w, r, call)
				return
			}
			writeProfile(42, "octocat")(w, r, call)
		}
		client, rec := setupClient(t, sp, nil)

		id, err := client.FetchProfile(context.Background(), token)
		require.NoError(t, err)
		require.Equal(t, int64(42), id.ProviderUserID)
		require.Len(t, rec.get(), 2)
	})

	t.Run("rate limited until retries run out", func(t *testing.T) {
		sp := newStubProvider(t)
		sp.profileFunc = writeStatus(http.StatusTooManyRequests, `{"message":"slow down"}`)
		client, _ := setupClient(t, sp, nil)

		_, err := client.FetchProfile(context.Background(), token)
		require.ErrorIs(t, err, autherrors.ErrProfileFetchFailed)
		require.ErrorIs(t, err, autherrors.ErrProfileFetchTransient)
		require.Equal(t, int32(4), sp.profileCalls.Load())
	})

	t.Run("github 403 with exhausted rate limit is transient", func(t *testing.T) {
		sp := newStubProvider(t)
		sp.profileFunc = func(w http.ResponseWriter, r *http.Request, call int32) {
			if call == 1 {
				w.Header().Set("X-RateLimit-Remaining", "0")
				writeStatus(http.StatusForbidden, `{"message":"API rate limit exceeded"}`)(w, r, call)
				return
			}
			writeProfile(42, "octocat")(w, r, call)
		}
		client, _ := setupClient(t, sp, nil)

		_, err := client.FetchProfile(context.Background(), token)
		require.NoError(t, err)
		require.Equal(t, int32(2), sp.profileCalls.Load())
	})

	t.Run("malformed profile is permanent", func(t *testing.T) {
		sp := newStubProvider(t)
		sp.profileFunc = writeStatus(http.StatusOK, `{"login":"octocat","id":"not-a-number"}`)
		client, _ := setupClient(t, sp, nil)

		_, err := client.FetchProfile(context.Background(), token)
		require.ErrorIs(t, err, autherrors.ErrProfileFetchFailed)
		require.NotErrorIs(t, err, autherrors.ErrProfileFetchTransient)
		require.Equal(t, int32(1), sp.profileCalls.Load())
	})

	t.Run("timeout is retried", func(t *testing.T) {
		sp := newStubProvider(t)
		sp.profileFunc = func(w http.ResponseWriter, r *http.Request, call int32) {
			if call == 1 {
				select {
				case <-r.Context().Done():
				case <-time.After(500 * time.Millisecond):
				}
				return
			}
			writeProfile(42, "octocat")(w, r, call)
		}
		client, rec := setupClient(t, sp, func(cfg *identity.Config) {
			cfg.RequestTimeout = 50 * time.Millisecond
		})

		id, err := client.FetchProfile(context.Background(), token)
		require.NoError(t, err)
		require.Equal(t, int64(42), id.ProviderUserID)
		require.Len(t, rec.get(), 1)
	})

	t.Run("missing token fails without a call", func(t *testing.T) {
		sp := newStubProvider(t)
		client, _ := setupClient(t, sp, nil)

		_, err := client.FetchProfile(context.Background(), nil)
		require.ErrorIs(t, err, autherrors.ErrProfileFetchFailed)
		require.Zero(t, sp.profileCalls.Load())
	})
}

func TestClient_PacesConsecutiveCalls(t *testing.T) {
	sp := newStubProvider(t)
	client, _ := setupClient(t, sp, func(cfg *identity.Config) {
		cfg.MinRequestInterval = 40 * time.Millisecond
	})
	token := &oauth2.Token{AccessToken: testAccessToken}

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.FetchProfile(context.Background(), token)
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}
