package auth

import (
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

// ProviderGitHub identifies GitHub as the login provider.
const ProviderGitHub = "github"

// AuthorityUser is granted to every identity that completed an OAuth2 login.
const AuthorityUser = "OAUTH2_USER"

// Identity is what a provider tells us about the user after login.
//
// Only attributes coderover consumes have a field; everything else in the
// provider's payload is dropped by the adapter. Pointer fields are optional:
// nil means the provider did not send the attribute.
type Identity struct {
	Provider string
	Subject  string // stable provider user id, e.g. GitHub's numeric id

	Name      *string
	Login     *string
	Email     *string
	AvatarURL *string

	Company  *string
	Blog     *string
	Location *string
	Bio      *string

	PublicRepos  *int
	PrivateRepos *int
	PublicGists  *int
	Followers    *int
	Following    *int

	SiteAdmin     *bool
	TwoFactorAuth *bool
	AccountType   *string
	PlanName      *string
	PlanSpace     *int64

	// Authorities are reported verbatim, without any ROLE_ prefix.
	Authorities []string
}

// GitHubUser is the portion of the GitHub /user response we read.
//
// GitHub API docs: https://docs.github.com/en/rest/users/users#get-the-authenticated-user
type GitHubUser struct {
	ID            int64       `json:"id"`
	Login         *string     `json:"login"`
	Name          *string     `json:"name"`
	Email         *string     `json:"email"` // null when hidden in GitHub settings
	AvatarURL     *string     `json:"avatar_url"`
	Company       *string     `json:"company"`
	Blog          *string     `json:"blog"`
	Location      *string     `json:"location"`
	Bio           *string     `json:"bio"`
	PublicRepos   *int        `json:"public_repos"`
	PrivateRepos  *int        `json:"total_private_repos"`
	PublicGists   *int        `json:"public_gists"`
	Followers     *int        `json:"followers"`
	Following     *int        `json:"following"`
	SiteAdmin     *bool       `json:"site_admin"`
	TwoFactorAuth *bool       `json:"two_factor_authentication"`
	Type          *string     `json:"type"`
	Plan          *GitHubPlan `json:"plan"`
}

type GitHubPlan struct {
	Name  *string `json:"name"`
	Space *int64  `json:"space"`
}

// Identity adapts the GitHub profile. Empty strings are treated as absent so
// a blank "email" never becomes a lookup key.
func (u *GitHubUser) Identity(token *oauth2.Token) *Identity {
	id := &Identity{
		Provider:      ProviderGitHub,
		Subject:       strconv.FormatInt(u.ID, 10),
		Name:          nonEmpty(u.Name),
		Login:         nonEmpty(u.Login),
		Email:         nonEmpty(u.Email),
		AvatarURL:     nonEmpty(u.AvatarURL),
		Company:       nonEmpty(u.Company),
		Blog:          nonEmpty(u.Blog),
		Location:      nonEmpty(u.Location),
		Bio:           nonEmpty(u.Bio),
		PublicRepos:   u.PublicRepos,
		PrivateRepos:  u.PrivateRepos,
		PublicGists:   u.PublicGists,
		Followers:     u.Followers,
		Following:     u.Following,
		SiteAdmin:     u.SiteAdmin,
		TwoFactorAuth: u.TwoFactorAuth,
		AccountType:   nonEmpty(u.Type),
		Authorities:   Authorities(GrantedScopes(token)),
	}
	if u.Plan != nil {
		id.PlanName = nonEmpty(u.Plan.Name)
		id.PlanSpace = u.Plan.Space
	}
	return id
}

// Authorities returns OAUTH2_USER followed by SCOPE_<scope> for each granted
// scope.
func Authorities(scopes []string) []string {
	out := make([]string, 0, len(scopes)+1)
	out = append(out, AuthorityUser)
	for _, s := range scopes {
		out = append(out, "SCOPE_"+s)
	}
	return out
}

// GrantedScopes reads the "scope" extra GitHub returns with the token. GitHub
// separates scopes with commas; spaces are accepted too.
func GrantedScopes(token *oauth2.Token) []string {
	if token == nil {
		return nil
	}
	raw, _ := token.Extra("scope").(string)
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
