package oauth2

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken_String(t *testing.T) {
	t.Parallel()
	t.Run("redacted", func(t *testing.T) {
		assert := assert.New(t)
		const want = RedactedAccessToken
		tk := AccessToken("super secret token")
		assert.Equalf(want, tk.String(), "AccessToken.String() = %v, want %v", tk.String(), want)
	})
}

func TestAccessToken_MarshalJSON(t *testing.T) {
	t.Parallel()
	t.Run("redacted", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		want := fmt.Sprintf(`"%s"`, RedactedAccessToken)
		tk := AccessToken("super secret token")
		got, err := tk.MarshalJSON()
		require.NoError(err)
		assert.Equalf([]byte(want), got, "AccessToken.MarshalJSON() = %s, want %s", got, want)
	})
}

func TestRefreshToken_String(t *testing.T) {
	t.Parallel()
	t.Run("redacted", func(t *testing.T) {
		assert := assert.New(t)
		const want = RedactedRefreshToken
		tk := RefreshToken("super secret token")
		assert.Equalf(want, tk.String(), "RefreshToken.String() = %v, want %v", tk.String(), want)
	})
}

func TestRefreshToken_MarshalJSON(t *testing.T) {
	t.Parallel()
	t.Run("redacted", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		want := fmt.Sprintf(`"%s"`, RedactedRefreshToken)
		tk := RefreshToken("super secret token")
		got, err := tk.MarshalJSON()
		require.NoError(err)
		assert.Equalf([]byte(want), got, "RefreshToken.MarshalJSON() = %s, want %s", got, want)
	})
}

func TestIdToken_String(t *testing.T) {
	t.Parallel()
	t.Run("redacted", func(t *testing.T) {
		assert := assert.New(t)
		const want = RedactedIdToken
		tk := IdToken("super secret token")
		assert.Equalf(want, tk.String(), "IdToken.String() = %v, want %v", tk.String(), want)
	})
}

func TestToken_Expired(t *testing.T) {
	t.Parallel()
	t.Run("no-expiry-never-expires", func(t *testing.T) {
		assert := assert.New(t)
		tk := &Token{AccessToken: "at"}
		assert.False(tk.Expired())
	})
	t.Run("future-expiry", func(t *testing.T) {
		assert := assert.New(t)
		tk := &Token{AccessToken: "at", Expiry: time.Now().Add(time.Hour)}
		assert.False(tk.Expired())
	})
	t.Run("past-expiry", func(t *testing.T) {
		assert := assert.New(t)
		tk := &Token{AccessToken: "at", Expiry: time.Now().Add(-time.Hour)}
		assert.True(tk.Expired())
	})
	t.Run("inside-skew-window", func(t *testing.T) {
		assert := assert.New(t)
		tk := &Token{AccessToken: "at", Expiry: time.Now().Add(DefaultTokenExpirySkew / 2)}
		assert.True(tk.Expired())
	})
	t.Run("with-now", func(t *testing.T) {
		assert := assert.New(t)
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		tk := &Token{AccessToken: "at", Expiry: now.Add(300 * time.Second)}
		assert.False(tk.Expired(WithNow(func() time.Time { return now })))
		assert.True(tk.Expired(WithNow(func() time.Time { return now.Add(271 * time.Second) })))
	})
	t.Run("nil-token", func(t *testing.T) {
		assert := assert.New(t)
		var tk *Token
		assert.True(tk.Expired())
	})
}

func TestToken_Valid(t *testing.T) {
	t.Parallel()
	t.Run("valid", func(t *testing.T) {
		assert := assert.New(t)
		tk := &Token{AccessToken: "at", Expiry: time.Now().Add(time.Hour)}
		assert.True(tk.Valid())
	})
	t.Run("no-access-token", func(t *testing.T) {
		assert := assert.New(t)
		tk := &Token{Expiry: time.Now().Add(time.Hour)}
		assert.False(tk.Valid())
	})
	t.Run("nil", func(t *testing.T) {
		assert := assert.New(t)
		var tk *Token
		assert.False(tk.Valid())
	})
}

func TestToken_StaticTokenSource(t *testing.T) {
	t.Parallel()
	t.Run("basics", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		expiry := time.Now().Add(time.Hour)
		tk := &Token{AccessToken: "at", TokenType: "Bearer", Expiry: expiry}
		src := tk.StaticTokenSource()
		require.NotNil(src)
		got, err := src.Token()
		require.NoError(err)
		assert.Equal("at", got.AccessToken)
		assert.Equal("Bearer", got.TokenType)
		assert.True(expiry.Equal(got.Expiry))
	})
	t.Run("nil", func(t *testing.T) {
		assert := assert.New(t)
		var tk *Token
		assert.Nil(tk.StaticTokenSource())
	})
}

func TestToken_Clone(t *testing.T) {
	t.Parallel()
	t.Run("independent-copy", func(t *testing.T) {
		assert := assert.New(t)
		tk := &Token{AccessToken: "at", RefreshToken: "rt"}
		cp := tk.Clone()
		cp.AccessToken = "changed"
		assert.Equal(AccessToken("at"), tk.AccessToken)
	})
	t.Run("nil", func(t *testing.T) {
		assert := assert.New(t)
		var tk *Token
		assert.Nil(tk.Clone())
	})
}
