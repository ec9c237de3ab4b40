// Package model defines the data structures used throughout coderover.
package model

import "time"

// User is the persisted profile of someone who logged in through GitHub.
//
// Records are keyed by Email (unique). The first login for an email creates
// the row; later logins return the stored row untouched, so profile fields
// reflect what GitHub reported at first sign-in.
//
// Optional string attributes are *string so that "GitHub did not send it"
// (nil → NULL) stays distinct from an empty value. Counters and flags that
// GitHub omits default to 0 / false.
type User struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Name          *string `json:"name"`
	Login         *string `json:"login"`
	ProfilePicURL *string `json:"profilePicURL"`

	Company  *string `json:"company"`
	Blog     *string `json:"blog"`
	Location *string `json:"location"`
	Bio      *string `json:"bio"`

	PublicRepos  int `json:"publicRepos"`
	PrivateRepos int `json:"privateRepos"`
	PublicGists  int `json:"publicGists"`
	Followers    int `json:"followers"`
	Following    int `json:"following"`

	SiteAdmin     bool    `json:"siteAdmin"`
	TwoFactorAuth bool    `json:"twoFactorAuth"`
	AccountType   *string `json:"accountType"`
	PlanName      *string `json:"planName"`
	PlanSpace     int64   `json:"planSpace"`

	CreatedAt time.Time `json:"createdAt"`
}

// AuthorizedClient is the provider access token captured at login.
//
// The session credential is stateless, but calls to GitHub need GitHub's own
// token. It is kept server-side, keyed by (Provider, Subject), and never
// placed in the credential itself (credentials are signed, not encrypted).
type AuthorizedClient struct {
	Provider    string    `json:"provider"`
	Subject     string    `json:"subject"`
	AccessToken string    `json:"-"`
	TokenType   string    `json:"tokenType"`
	Scopes      []string  `json:"scopes"`
	ExpiresAt   time.Time `json:"expiresAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
