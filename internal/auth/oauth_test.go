package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGitHub serves the token endpoint and /user like github.com would.
func fakeGitHub(t *testing.T, userJSON string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad_verification_code"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "gho_test",
			"token_type":   "bearer",
			"scope":        "read:user,user:email",
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(userJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(srv *httptest.Server) *GitHubProvider {
	return NewGitHubProvider("cid", "csecret", "http://localhost/cb", []string{"read:user", "user:email"}, srv.URL, srv.Client()).
		WithEndpoint(oauth2.Endpoint{
			AuthURL:   srv.URL + "/login/oauth/authorize",
			TokenURL:  srv.URL + "/login/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		})
}

func TestGitHubProvider_AuthURL(t *testing.T) {
	p := NewGitHubProvider("cid", "csecret", "http://localhost/cb", []string{"read:user"}, "https://api.github.com", nil)

	u, err := url.Parse(p.AuthURL("state-123"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "read:user", q.Get("scope"))
}

func TestGitHubProvider_Exchange(t *testing.T) {
	srv := fakeGitHub(t, `{
		"id": 42, "login": "ada", "name": "Ada", "email": null,
		"avatar_url": "https://avatars.example.com/42", "bio": "",
		"public_repos": 7, "followers": 3, "site_admin": false,
		"type": "User", "plan": {"name": "free", "space": 976562499},
		"unknown_attribute": {"dropped": true}
	}`)

	identity, token, err := newTestProvider(srv).Exchange(context.Background(), "good-code")
	require.NoError(t, err)

	assert.Equal(t, "gho_test", token.AccessToken)
	assert.Equal(t, ProviderGitHub, identity.Provider)
	assert.Equal(t, "42", identity.Subject)
	require.NotNil(t, identity.Name)
	assert.Equal(t, "Ada", *identity.Name)
	assert.Nil(t, identity.Email, "null email stays absent")
	assert.Nil(t, identity.Bio, "empty bio is treated as absent")
	require.NotNil(t, identity.PublicRepos)
	assert.Equal(t, 7, *identity.PublicRepos)
	assert.Nil(t, identity.Following)
	require.NotNil(t, identity.PlanSpace)
	assert.EqualValues(t, 976562499, *identity.PlanSpace)
	assert.Equal(t, []string{"OAUTH2_USER", "SCOPE_read:user", "SCOPE_user:email"}, identity.Authorities)
}

func TestGitHubProvider_ExchangeBadCode(t *testing.T) {
	srv := fakeGitHub(t, `{"id": 42}`)

	_, _, err := newTestProvider(srv).Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestGitHubProvider_ExchangeZeroID(t *testing.T) {
	srv := fakeGitHub(t, `{"id": 0, "login": "ghost"}`)

	_, _, err := newTestProvider(srv).Exchange(context.Background(), "good-code")
	assert.Error(t, err)
}

func TestGrantedScopes(t *testing.T) {
	tests := []struct {
		name  string
		scope any
		want  []string
	}{
		{name: "comma separated", scope: "repo,user:email", want: []string{"repo", "user:email"}},
		{name: "space separated", scope: "repo user:email", want: []string{"repo", "user:email"}},
		{name: "empty", scope: "", want: nil},
		{name: "missing", scope: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := (&oauth2.Token{AccessToken: "x"}).WithExtra(map[string]any{"scope": tt.scope})
			assert.Equal(t, tt.want, GrantedScopes(tok))
		})
	}
}
