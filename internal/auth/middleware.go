package auth

import (
	"net/http"
	"strings"
)

// CookieName is the HttpOnly cookie browsers send the token in.
const CookieName = "access_token"

// Validator turns a raw token into a user id.
type Validator interface {
	Validate(raw string) (string, error)
}

// Middleware authenticates requests from the access_token cookie or an
// "Authorization: Bearer" header. Failures go to onFail, which writes the
// response; the error wraps ErrInvalidToken or ErrNoUser.
func Middleware(v Validator, onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := tokenFromRequest(r)
			if err == nil {
				var userID string
				if userID, err = v.Validate(raw); err == nil {
					next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
					return
				}
			}

			if onFail != nil {
				onFail(w, r, err)
				return
			}
			http.Error(w, "authentication required", http.StatusUnauthorized)
		})
	}
}

func tokenFromRequest(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoUser
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}
