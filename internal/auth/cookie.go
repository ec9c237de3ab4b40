package auth

import (
	"net/http"
	"time"
)

// CookieName carries the credential. It is the only place the filter looks.
const CookieName = "access_token"

// SetCredentialCookie stores the signed credential in an HttpOnly cookie
// whose lifetime matches the credential's TTL.
func SetCredentialCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCredentialCookie tells the browser to drop the credential.
// Attributes must match SetCredentialCookie or the browser keeps the old one.
func ClearCredentialCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
