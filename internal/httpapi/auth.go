package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionCookieName = "nexus_assistant_session"

// tokenAuth enforces the bearer-style token described in §4.12: the static
// token configured in server.token may arrive as an Authorization header or
// a query parameter on the first request; once validated, a signed cookie
// is set so subsequent requests need not resend the bearer token.
//
// The cookie carries a JWT (grounded on the teacher's internal/auth/jwt.go
// shape) signed with the same static token as the HMAC secret, rather than
// a second configured secret: §6 names exactly one server-auth value
// (server.token), so there is nothing else to sign with.
type tokenAuth struct {
	token  string
	signer jwt.SigningMethod
}

func newTokenAuth(token string) *tokenAuth {
	return &tokenAuth{token: strings.TrimSpace(token), signer: jwt.SigningMethodHS256}
}

func (a *tokenAuth) enabled() bool { return a != nil && a.token != "" }

type sessionClaims struct {
	jwt.RegisteredClaims
}

func (a *tokenAuth) issueCookie(w http.ResponseWriter) {
	if !a.enabled() {
		return
	}
	claims := sessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(30 * 24 * time.Hour)),
	}}
	signed, err := jwt.NewWithClaims(a.signer, claims).SignedString([]byte(a.token))
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})
}

func (a *tokenAuth) validCookie(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	_, err = jwt.ParseWithClaims(cookie.Value, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(a.token), nil
	})
	return err == nil
}

func (a *tokenAuth) bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return r.URL.Query().Get("token")
}

// wrap gates next behind the configured token; an empty token disables
// auth entirely (matching the teacher's "service == nil or disabled"
// pass-through).
func (a *tokenAuth) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled() {
			next.ServeHTTP(w, r)
			return
		}

		if bearer := a.bearerToken(r); bearer != "" {
			if bearer != a.token {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			a.issueCookie(w)
			next.ServeHTTP(w, r)
			return
		}

		if a.validCookie(r) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	})
}
