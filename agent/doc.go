// Package agent implements a client-side authentication agent for the
// OAuth2 authorization-code flow with PKCE. An Agent is the long-lived
// companion of one application session: StartLogin produces the provider
// authorization URL, HandleRedirectCallback consumes the redirect back
// from the provider and exchanges the code for tokens, and from then on
// the agent keeps the token set fresh in the background until Logout.
//
// The agent holds a single authoritative AuthState. Every transition is
// published, in order, to subscribers registered with Subscribe, so a
// host application can render (or gate) on authentication state without
// polling. Snapshots handed to subscribers and returned by CurrentState
// carry copies of the token set.
//
// Pending flow material (state, nonce, PKCE verifier) is persisted via
// the Storage interface between StartLogin and the redirect callback; the
// in-memory default suits a single-process host, and implementations
// backed by a browser session store or a file let the callback land in a
// different process instance than the one that started the login.
//
//	cfg, err := oauth2.NewConfig(clientID, authURL, tokenURL,
//		oauth2.WithRedirectURL("https://app.example/callback"),
//	)
//	if err != nil {
//		// handle error
//	}
//	a, err := agent.New(cfg)
//	if err != nil {
//		// handle error
//	}
//	defer a.Done()
//	cancel := a.Subscribe(func(s agent.AuthState) {
//		log.Printf("auth state: %s", s.Status)
//	})
//	defer cancel()
//
//	authURL, err := a.StartLogin(ctx, "/inbox")
//	// navigate the user to authURL; on redirect back:
//	target, err := a.HandleRedirectCallback(ctx, redirectQuery)
//	// navigate the user to target
package agent
