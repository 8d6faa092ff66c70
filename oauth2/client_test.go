package oauth2

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// doerFunc adapts a func to the Doer interface for stubbing transports.
type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func testProviderConfig(t *testing.T, tp *TestProvider, opt ...Option) *Config {
	t.Helper()
	opts := append([]Option{
		WithRedirectURL("https://app.example/callback"),
		WithScopes("profile"),
	}, opt...)
	c, err := NewConfig("abc", tp.AuthURL(), tp.TokenURL(), opts...)
	require.NoError(t, err)
	return c
}

func TestClient_AuthCodeURL(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c, err := NewConfig("abc", "https://idp.example/auth", "https://idp.example/token",
		WithScopes("profile", "email"),
		WithRedirectURL("https://app.example/callback"),
		WithAudience("https://api.example"),
	)
	require.NoError(err)
	client, err := NewClient(c)
	require.NoError(err)

	f, err := NewPendingFlow(DefaultPendingFlowExpiry)
	require.NoError(err)

	raw, err := client.AuthCodeURL(f)
	require.NoError(err)

	u, err := url.Parse(raw)
	require.NoError(err)
	assert.Equal("https", u.Scheme)
	assert.Equal("idp.example", u.Host)
	assert.Equal("/auth", u.Path)

	q := u.Query()
	assert.Equal("code", q.Get("response_type"))
	assert.Equal("abc", q.Get("client_id"))
	assert.Equal("https://app.example/callback", q.Get("redirect_uri"))
	assert.Equal("profile email", q.Get("scope"))
	assert.Equal(f.State(), q.Get("state"))
	assert.Equal(f.Nonce(), q.Get("nonce"))
	assert.Equal(f.Verifier().Challenge(), q.Get("code_challenge"))
	assert.Equal("S256", q.Get("code_challenge_method"))
	assert.Equal("https://api.example", q.Get("audience"))
}

func TestClient_AuthCodeURL_FlowRedirectOverride(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	c, err := NewConfig("abc", "https://idp.example/auth", "https://idp.example/token",
		WithRedirectURL("https://app.example/callback"))
	require.NoError(err)
	client, err := NewClient(c)
	require.NoError(err)

	f, err := NewPendingFlow(DefaultPendingFlowExpiry, WithRedirectURL("https://other.example/cb"))
	require.NoError(err)
	raw, err := client.AuthCodeURL(f)
	require.NoError(err)
	u, err := url.Parse(raw)
	require.NoError(err)
	assert.Equal("https://other.example/cb", u.Query().Get("redirect_uri"))
}

func TestClient_Exchange(t *testing.T) {
	t.Parallel()
	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetClientID("abc")
		tp.SetExpectedAuthCode("xyz")
		tp.SetReplyToken("AT1", 300, "RT1", "IDT1")

		client, err := NewClient(testProviderConfig(t, tp))
		require.NoError(err)

		f, err := NewPendingFlow(DefaultPendingFlowExpiry)
		require.NoError(err)
		tp.SetExpectedCodeChallenge(f.Verifier().Challenge())

		tok, err := client.Exchange(context.Background(), f, "xyz")
		require.NoError(err)
		assert.Equal(AccessToken("AT1"), tok.AccessToken)
		assert.Equal("Bearer", tok.TokenType)
		assert.Equal(RefreshToken("RT1"), tok.RefreshToken)
		assert.Equal(IdToken("IDT1"), tok.IdToken)
		assert.False(tok.Expiry.IsZero())

		reqs := tp.TokenRequests()
		require.Len(reqs, 1)
		assert.Equal("authorization_code", reqs[0].Get("grant_type"))
		assert.Equal("xyz", reqs[0].Get("code"))
		assert.Equal("https://app.example/callback", reqs[0].Get("redirect_uri"))
		assert.Equal(f.Verifier().Verifier(), reqs[0].Get("code_verifier"))
	})
	t.Run("wrong-code", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetExpectedAuthCode("xyz")

		client, err := NewClient(testProviderConfig(t, tp))
		require.NoError(err)
		f, err := NewPendingFlow(DefaultPendingFlowExpiry)
		require.NoError(err)

		tok, err := client.Exchange(context.Background(), f, "not-xyz")
		require.Error(err)
		assert.Nil(tok)
		assert.True(errors.Is(err, ErrTokenExchangeFailed))

		var exchangeErr *TokenExchangeError
		require.True(errors.As(err, &exchangeErr))
		assert.Equal(http.StatusUnauthorized, exchangeErr.Status)
		assert.Equal("invalid_grant", exchangeErr.ErrorCode)
		assert.NotEmpty(exchangeErr.Body)
	})
	t.Run("verifier-mismatch", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetExpectedAuthCode("xyz")
		tp.SetExpectedCodeChallenge("some-other-challenge")

		client, err := NewClient(testProviderConfig(t, tp))
		require.NoError(err)
		f, err := NewPendingFlow(DefaultPendingFlowExpiry)
		require.NoError(err)

		_, err = client.Exchange(context.Background(), f, "xyz")
		require.Error(err)
		assert.True(errors.Is(err, ErrTokenExchangeFailed))
	})
	t.Run("malformed-json", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig("abc", "https://idp.example/auth", "https://idp.example/token")
		require.NoError(err)
		client, err := NewClient(c, WithDoer(doerFunc(func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("it's not json")),
			}, nil
		})))
		require.NoError(err)
		f, err := NewPendingFlow(DefaultPendingFlowExpiry)
		require.NoError(err)

		_, err = client.Exchange(context.Background(), f, "xyz")
		require.Error(err)
		assert.True(errors.Is(err, ErrTokenExchangeFailed))
	})
	t.Run("network-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig("abc", "https://idp.example/auth", "https://idp.example/token")
		require.NoError(err)
		client, err := NewClient(c, WithDoer(doerFunc(func(req *http.Request) (*http.Response, error) {
			return nil, fmt.Errorf("connection refused")
		})))
		require.NoError(err)
		f, err := NewPendingFlow(DefaultPendingFlowExpiry)
		require.NoError(err)

		_, err = client.Exchange(context.Background(), f, "xyz")
		require.Error(err)
		assert.True(errors.Is(err, ErrNetworkFailure))
		assert.False(errors.Is(err, ErrTokenExchangeFailed))
	})
	t.Run("empty-code", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		client, err := NewClient(testProviderConfig(t, tp))
		require.NoError(err)
		f, err := NewPendingFlow(DefaultPendingFlowExpiry)
		require.NoError(err)

		_, err = client.Exchange(context.Background(), f, "")
		require.Error(err)
		assert.True(errors.Is(err, ErrInvalidParameter))
		assert.Zero(tp.TokenRequestCount())
	})
}

func TestClient_Refresh(t *testing.T) {
	t.Parallel()
	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetExpectedRefreshToken("RT1")
		tp.SetReplyToken("AT2", 300, "", "")

		client, err := NewClient(testProviderConfig(t, tp))
		require.NoError(err)

		tok, err := client.Refresh(context.Background(), "RT1")
		require.NoError(err)
		assert.Equal(AccessToken("AT2"), tok.AccessToken)
		// the server didn't rotate, so the request's refresh token comes back
		assert.Equal(RefreshToken("RT1"), tok.RefreshToken)

		reqs := tp.TokenRequests()
		require.Len(reqs, 1)
		assert.Equal("refresh_token", reqs[0].Get("grant_type"))
		assert.Equal("RT1", reqs[0].Get("refresh_token"))
	})
	t.Run("denied", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		tp.SetExpectedRefreshToken("RT1")

		client, err := NewClient(testProviderConfig(t, tp))
		require.NoError(err)

		tok, err := client.Refresh(context.Background(), "revoked")
		require.Error(err)
		assert.Nil(tok)
		assert.True(errors.Is(err, ErrRefreshDenied))
		// a refresh denial is a specialized exchange failure
		assert.True(errors.Is(err, ErrTokenExchangeFailed))
	})
	t.Run("empty-refresh-token", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t)
		client, err := NewClient(testProviderConfig(t, tp))
		require.NoError(err)

		_, err = client.Refresh(context.Background(), "")
		require.Error(err)
		assert.True(errors.Is(err, ErrInvalidParameter))
		assert.Zero(tp.TokenRequestCount())
	})
}

func TestClient_LogoutURL(t *testing.T) {
	t.Parallel()
	t.Run("not-configured", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig("abc", "https://idp.example/auth", "https://idp.example/token")
		require.NoError(err)
		client, err := NewClient(c)
		require.NoError(err)
		u, err := client.LogoutURL()
		require.NoError(err)
		assert.Empty(u)
	})
	t.Run("with-post-logout-redirect", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig("abc", "https://idp.example/auth", "https://idp.example/token",
			WithEndSessionURL("https://idp.example/logout"),
			WithPostLogoutRedirectURL("https://app.example/"))
		require.NoError(err)
		client, err := NewClient(c)
		require.NoError(err)

		raw, err := client.LogoutURL(WithIDTokenHint("IDT1"))
		require.NoError(err)
		u, err := url.Parse(raw)
		require.NoError(err)
		assert.Equal("/logout", u.Path)
		assert.Equal("abc", u.Query().Get("client_id"))
		assert.Equal("https://app.example/", u.Query().Get("post_logout_redirect_uri"))
		assert.Equal("IDT1", u.Query().Get("id_token_hint"))
	})
	t.Run("legacy-parameter-name", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig("abc", "https://idp.example/auth", "https://idp.example/token",
			WithEndSessionURL("https://idp.example/logout"),
			WithPostLogoutRedirectURL("https://app.example/"),
			WithPostLogoutParameter("redirect_uri"))
		require.NoError(err)
		client, err := NewClient(c)
		require.NoError(err)

		raw, err := client.LogoutURL()
		require.NoError(err)
		u, err := url.Parse(raw)
		require.NoError(err)
		assert.Equal("https://app.example/", u.Query().Get("redirect_uri"))
		assert.Empty(u.Query().Get("post_logout_redirect_uri"))
	})
	t.Run("per-call-override", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		c, err := NewConfig("abc", "https://idp.example/auth", "https://idp.example/token",
			WithEndSessionURL("https://idp.example/logout"),
			WithPostLogoutRedirectURL("https://app.example/"))
		require.NoError(err)
		client, err := NewClient(c)
		require.NoError(err)

		raw, err := client.LogoutURL(WithPostLogoutRedirectURL("https://app.example/bye"))
		require.NoError(err)
		u, err := url.Parse(raw)
		require.NoError(err)
		assert.Equal("https://app.example/bye", u.Query().Get("post_logout_redirect_uri"))
	})
}

func TestClient_ExpiryUsesNow(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	tp := StartTestProvider(t)
	tp.SetExpectedAuthCode("xyz")
	tp.SetReplyToken("AT1", 300, "", "")

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	client, err := NewClient(testProviderConfig(t, tp), WithNow(func() time.Time { return now }))
	require.NoError(err)

	f, err := NewPendingFlow(DefaultPendingFlowExpiry)
	require.NoError(err)
	tok, err := client.Exchange(context.Background(), f, "xyz")
	require.NoError(err)
	assert.True(tok.Expiry.Equal(now.Add(300 * time.Second)))
}
