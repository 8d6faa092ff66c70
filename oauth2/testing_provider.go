package oauth2

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// TestProvider is a local server that implements the provider side of an
// authorization-code flow with PKCE, which makes writing tests much easier.
// It serves an OIDC discovery document, an authorization endpoint that
// redirects back with a configurable code, and a token endpoint that checks
// the grant, the redirect_uri and the PKCE code verifier before returning a
// configurable token reply. Every token-endpoint request is recorded, so
// tests can assert on "no network call was made" properties.
//
// Tokens issued by a TestProvider are opaque test strings: signing and
// verifying id_tokens is out of scope for this module.
type TestProvider struct {
	httpServer *httptest.Server

	mu                    sync.Mutex
	clientID              string
	allowedRedirectURIs   []string
	expectedAuthCode      string
	expectedCodeChallenge string
	expectedRefreshToken  string

	replyAccessToken  string
	replyTokenType    string
	replyExpiresIn    int64
	replyRefreshToken string
	replyIDToken      string

	tokenErrorStatus int
	tokenErrorCode   string
	tokenErrorDesc   string

	tokenRequests []url.Values

	t *testing.T
}

// StartTestProvider creates and starts a disposable TestProvider. The
// server is stopped via t.Cleanup (or an explicit Stop).
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	p := &TestProvider{
		t:                t,
		replyAccessToken: "test-access-token",
		replyTokenType:   "Bearer",
		replyExpiresIn:   300,
	}
	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.Start()
	t.Cleanup(p.httpServer.Close)
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the current base URL for the test provider's running
// webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// AuthURL returns the test provider's authorization endpoint.
func (p *TestProvider) AuthURL() string { return p.Addr() + "/auth" }

// TokenURL returns the test provider's token endpoint.
func (p *TestProvider) TokenURL() string { return p.Addr() + "/token" }

// EndSessionURL returns the test provider's end-session endpoint.
func (p *TestProvider) EndSessionURL() string { return p.Addr() + "/logout" }

// SetClientID configures the client id the provider expects in token
// requests.
func (p *TestProvider) SetClientID(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
}

// SetAllowedRedirectURIs configures the allowed redirect URIs. If not set,
// every redirect_uri is accepted.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetExpectedAuthCode configures the auth code returned from /auth and the
// only code accepted by /token.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetExpectedCodeChallenge configures the S256 code challenge /token
// requires: the request's code_verifier must hash to it.
func (p *TestProvider) SetExpectedCodeChallenge(challenge string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedCodeChallenge = challenge
}

// SetExpectedRefreshToken configures the only refresh token /token accepts
// for the refresh_token grant. If not set, every refresh token is accepted.
func (p *TestProvider) SetExpectedRefreshToken(refreshToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedRefreshToken = refreshToken
}

// SetReplyToken configures the token reply. An empty refreshToken or
// idToken omits the field from the response; expiresIn of zero omits
// expires_in.
func (p *TestProvider) SetReplyToken(accessToken string, expiresIn int64, refreshToken string, idToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyAccessToken = accessToken
	p.replyExpiresIn = expiresIn
	p.replyRefreshToken = refreshToken
	p.replyIDToken = idToken
}

// SetTokenError forces /token to reply with an RFC 6749 error response
// until cleared with status zero.
func (p *TestProvider) SetTokenError(status int, code string, desc string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenErrorStatus = status
	p.tokenErrorCode = code
	p.tokenErrorDesc = desc
}

// TokenRequestCount returns how many requests the token endpoint received.
func (p *TestProvider) TokenRequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tokenRequests)
}

// TokenRequests returns a copy of the form values of every token-endpoint
// request, in order.
func (p *TestProvider) TokenRequests() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]url.Values, 0, len(p.tokenRequests))
	for _, v := range p.tokenRequests {
		dup := url.Values{}
		for k, vals := range v {
			dup[k] = append([]string(nil), vals...)
		}
		cp = append(cp, dup)
	}
	return cp
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)

	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}

	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}

	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.t.Helper()

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		reply := struct {
			Issuer             string `json:"issuer"`
			AuthEndpoint       string `json:"authorization_endpoint"`
			TokenEndpoint      string `json:"token_endpoint"`
			JWKSURI            string `json:"jwks_uri"`
			EndSessionEndpoint string `json:"end_session_endpoint"`
		}{
			Issuer:             p.Addr(),
			AuthEndpoint:       p.Addr() + "/auth",
			TokenEndpoint:      p.Addr() + "/token",
			JWKSURI:            p.Addr() + "/certs",
			EndSessionEndpoint: p.Addr() + "/logout",
		}

		_ = p.writeJSON(w, &reply)

	case "/auth":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		qv := req.URL.Query()

		if qv.Get("response_type") != "code" {
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		}
		if qv.Get("state") == "" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
			return
		}
		if qv.Get("code_challenge_method") != string(S256) {
			p.writeAuthErrorResponse(w, req, "invalid_request", "code_challenge_method must be S256")
			return
		}
		if p.expectedAuthCode == "" {
			p.writeAuthErrorResponse(w, req, "access_denied", "")
			return
		}

		redirectURI := qv.Get("redirect_uri")
		if redirectURI == "" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing redirect_uri parameter")
			return
		}

		redirectURI += "?state=" + url.QueryEscape(qv.Get("state")) +
			"&code=" + url.QueryEscape(p.expectedAuthCode)

		http.Redirect(w, req, redirectURI, http.StatusFound)

	case "/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if err := req.ParseForm(); err != nil {
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "unable to parse form")
			return
		}
		p.tokenRequests = append(p.tokenRequests, req.PostForm)

		if p.tokenErrorStatus != 0 {
			_ = p.writeTokenErrorResponse(w, p.tokenErrorStatus, p.tokenErrorCode, p.tokenErrorDesc)
			return
		}
		if p.clientID != "" && req.PostFormValue("client_id") != p.clientID {
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "unexpected client_id")
			return
		}

		switch req.PostFormValue("grant_type") {
		case "authorization_code":
			if req.PostFormValue("code") != p.expectedAuthCode {
				_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "unexpected auth code")
				return
			}
			if len(p.allowedRedirectURIs) > 0 && !strListContains(p.allowedRedirectURIs, req.PostFormValue("redirect_uri")) {
				_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
				return
			}
			if p.expectedCodeChallenge != "" {
				sum := sha256.Sum256([]byte(req.PostFormValue("code_verifier")))
				if base64.RawURLEncoding.EncodeToString(sum[:]) != p.expectedCodeChallenge {
					_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "code verifier mismatch")
					return
				}
			}
		case "refresh_token":
			if p.expectedRefreshToken != "" && req.PostFormValue("refresh_token") != p.expectedRefreshToken {
				_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected refresh token")
				return
			}
		default:
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
			return
		}

		reply := struct {
			AccessToken  string `json:"access_token"`
			TokenType    string `json:"token_type,omitempty"`
			ExpiresIn    int64  `json:"expires_in,omitempty"`
			RefreshToken string `json:"refresh_token,omitempty"`
			IDToken      string `json:"id_token,omitempty"`
		}{
			AccessToken:  p.replyAccessToken,
			TokenType:    p.replyTokenType,
			ExpiresIn:    p.replyExpiresIn,
			RefreshToken: p.replyRefreshToken,
			IDToken:      p.replyIDToken,
		}
		_ = p.writeJSON(w, &reply)

	case "/logout":
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// strListContains looks for a string in a list of strings.
func strListContains(haystack []string, needle string) bool {
	for _, item := range haystack {
		if item == needle {
			return true
		}
	}
	return false
}
