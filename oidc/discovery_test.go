package oidc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webauth-go/webauth/oauth2"
)

func TestDiscover(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		tp := oauth2.StartTestProvider(t)

		c, err := Discover(ctx, tp.Addr(), "abc",
			oauth2.WithRedirectURL("https://app.example/callback"),
			oauth2.WithScopes("openid", "profile"),
		)
		require.NoError(err)
		assert.Equal("abc", c.ClientID)
		assert.Equal(tp.AuthURL(), c.AuthURL)
		assert.Equal(tp.TokenURL(), c.TokenURL)
		assert.Equal(tp.EndSessionURL(), c.EndSessionURL)
		assert.Equal("https://app.example/callback", c.RedirectURL)
		assert.Equal([]string{"openid", "profile"}, c.Scopes)
	})
	t.Run("explicit-end-session-wins", func(t *testing.T) {
		t.Parallel()
		assert, require := assert.New(t), require.New(t)
		tp := oauth2.StartTestProvider(t)

		c, err := Discover(ctx, tp.Addr(), "abc",
			oauth2.WithRedirectURL("https://app.example/callback"),
			oauth2.WithEndSessionURL("https://idp.example/custom-logout"),
		)
		require.NoError(err)
		assert.Equal("https://idp.example/custom-logout", c.EndSessionURL)
	})
	t.Run("unreachable-issuer", func(t *testing.T) {
		t.Parallel()
		tp := oauth2.StartTestProvider(t)
		addr := tp.Addr()
		tp.Stop()

		_, err := Discover(ctx, addr, "abc")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDiscoveryFailed)
	})
	t.Run("empty-issuer", func(t *testing.T) {
		t.Parallel()
		_, err := Discover(ctx, "", "abc")
		require.Error(t, err)
		assert.ErrorIs(t, err, oauth2.ErrInvalidParameter)
	})
	t.Run("empty-client-id", func(t *testing.T) {
		t.Parallel()
		_, err := Discover(ctx, "https://idp.example", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, oauth2.ErrInvalidParameter)
	})
}
