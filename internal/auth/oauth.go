package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubProvider wraps golang.org/x/oauth2 for the GitHub Authorization Code
// flow. The code-for-token exchange happens server-to-server, so GitHub's
// access token never reaches the browser.
type GitHubProvider struct {
	config  *oauth2.Config
	apiURL  string
	httpCli *http.Client
}

// NewGitHubProvider creates a GitHubProvider.
//
// apiURL is the REST base (https://api.github.com in production). httpClient
// is used both for the token exchange and for /user; pass nil for
// http.DefaultClient.
func NewGitHubProvider(clientID, clientSecret, callbackURL string, scopes []string, apiURL string, httpClient *http.Client) *GitHubProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       scopes,
			Endpoint:     github.Endpoint,
		},
		apiURL:  apiURL,
		httpCli: httpClient,
	}
}

// WithEndpoint overrides GitHub's OAuth endpoints. Used to point the flow at
// a GitHub Enterprise host or a test server.
func (p *GitHubProvider) WithEndpoint(ep oauth2.Endpoint) *GitHubProvider {
	p.config.Endpoint = ep
	return p
}

// AuthURL returns the URL to redirect the user to. state is echoed back on
// the callback and checked against the oauth_state cookie.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for an access token and the
// caller's profile.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*Identity, *oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpCli)

	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	client := p.config.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/user", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: building /user request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("auth: GitHub /user API returned status %d", resp.StatusCode)
	}

	var ghUser GitHubUser
	if err := json.NewDecoder(resp.Body).Decode(&ghUser); err != nil {
		return nil, nil, fmt.Errorf("auth: decoding GitHub /user response: %w", err)
	}
	if ghUser.ID == 0 {
		return nil, nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return ghUser.Identity(token), token, nil
}
