// Package github is a typed client for the parts of the GitHub REST API
// coderover proxies: repository listing, branches, git trees and blobs, and
// the authenticated user's email list.
//
// The client holds no state between calls. It does not retry or cache: one
// network failure or non-2xx response is returned to the caller as is.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sakif/coderover/internal/model"
)

// DefaultBaseURL is the public GitHub REST endpoint.
const DefaultBaseURL = "https://api.github.com"

// apiVersion pins the REST API version GitHub should answer with.
const apiVersion = "2022-11-28"

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 4 << 10

// ErrMissingToken is returned before any request is made when the caller
// has no provider access token.
var ErrMissingToken = errors.New("github: access token cannot be blank")

// StatusError is a non-2xx answer from GitHub.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("github: %s %s returned status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client calls the GitHub REST API. Each method takes the caller's access
// token; the client itself holds no credentials.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New returns a client for baseURL (DefaultBaseURL when empty). Outgoing
// requests are traced with otelhttp.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// NewWithHTTPClient lets tests point the client at an httptest server.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	c := New(baseURL)
	c.httpClient = httpClient
	return c
}

// ListOptions paginates list endpoints. Zero values are omitted so GitHub
// applies its own defaults.
type ListOptions struct {
	PerPage int
	Page    int
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.PerPage > 0 {
		q.Set("per_page", strconv.Itoa(o.PerPage))
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	return q
}

// ListUserRepos calls GET /user/repos.
func (c *Client) ListUserRepos(ctx context.Context, token string, opts ListOptions) ([]model.Repo, error) {
	var repos []model.Repo
	if err := c.getJSON(ctx, token, "/user/repos", opts.query(), &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// GetBranch calls GET /repos/{owner}/{repo}/branches/{branch}.
func (c *Client) GetBranch(ctx context.Context, token, owner, repo, branch string) (*model.Branch, error) {
	var b model.Branch
	path := repoPath(owner, repo) + "/branches/" + escapeSegments(branch)
	if err := c.getJSON(ctx, token, path, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBranches calls GET /repos/{owner}/{repo}/branches.
func (c *Client) ListBranches(ctx context.Context, token, owner, repo string) ([]model.Branch, error) {
	var branches []model.Branch
	if err := c.getJSON(ctx, token, repoPath(owner, repo)+"/branches", nil, &branches); err != nil {
		return nil, err
	}
	return branches, nil
}

// GetTree calls GET /repos/{owner}/{repo}/git/trees/{sha}?recursive=1.
func (c *Client) GetTree(ctx context.Context, token, owner, repo, sha string) (*model.Tree, error) {
	var t model.Tree
	path := repoPath(owner, repo) + "/git/trees/" + url.PathEscape(sha)
	if err := c.getJSON(ctx, token, path, url.Values{"recursive": {"1"}}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetBlob calls GET /repos/{owner}/{repo}/git/blobs/{sha}.
func (c *Client) GetBlob(ctx context.Context, token, owner, repo, sha string) (*model.Blob, error) {
	var b model.Blob
	path := repoPath(owner, repo) + "/git/blobs/" + url.PathEscape(sha)
	if err := c.getJSON(ctx, token, path, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ListEmails calls GET /user/emails. Requires the user:email scope.
func (c *Client) ListEmails(ctx context.Context, token string) ([]model.Email, error) {
	var emails []model.Email
	if err := c.getJSON(ctx, token, "/user/emails", nil, &emails); err != nil {
		return nil, err
	}
	return emails, nil
}

func (c *Client) getJSON(ctx context.Context, token, path string, query url.Values, result any) error {
	if strings.TrimSpace(token) == "" {
		return ErrMissingToken
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("github: building request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     http.MethodGet,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("github: decoding %s response: %w", path, err)
	}
	return nil
}

func repoPath(owner, repo string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
}

// escapeSegments escapes each part of a slash-separated branch name so
// "feature/x" keeps its slash.
func escapeSegments(s string) string {
	parts := strings.Split(s, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
