package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/safar/go-storefront/internal/auth"
)

const (
	sessionCookie = "sid"
	sessionHeader = "X-Session-ID"
)

type sessionKey struct{}

// withSession resolves the shopper session from the sid cookie or the
// X-Session-ID header, issuing a new cookie when neither is present.
func withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := strings.TrimSpace(r.Header.Get(sessionHeader))
		if sid == "" {
			if c, err := r.Cookie(sessionCookie); err == nil {
				sid = strings.TrimSpace(c.Value)
			}
		}
		if _, err := uuid.Parse(sid); err != nil {
			sid = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sid,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Expires:  time.Now().Add(30 * 24 * time.Hour),
			})
		}
		w.Header().Set(sessionHeader, sid)

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sid)))
	})
}

func sessionID(r *http.Request) string {
	sid, _ := r.Context().Value(sessionKey{}).(string)
	return sid
}

// TokenVerifier turns a Firebase ID token into a principal.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (auth.Principal, error)
}

// withPrincipal verifies an optional bearer token. Requests without one run
// as the anonymous shopper; a token that fails verification is rejected.
func withPrincipal(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				respondError(w, http.StatusUnauthorized, "unauthorized: missing bearer token")
				return
			}
			idToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if idToken == "" || verifier == nil {
				respondError(w, http.StatusUnauthorized, "unauthorized: invalid token")
				return
			}

			principal, err := verifier.Verify(r.Context(), idToken)
			if err != nil {
				log.Printf("[auth] WARN: token rejected: %v", err)
				respondError(w, http.StatusUnauthorized, "unauthorized: invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

// countryHint reads the geolocation header set by the edge in front of the
// service.
func countryHint(r *http.Request) string {
	for _, h := range []string{"X-Country", "X-Appengine-Country", "CF-IPCountry"} {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}
	return ""
}
