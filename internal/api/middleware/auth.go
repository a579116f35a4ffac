package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/breezyweather/breezyd/internal/api/models"
	"github.com/breezyweather/breezyd/internal/auth"
)

// TokenValidator validates admin bearer tokens.
type TokenValidator interface {
	ValidateAdminToken(token string) (*auth.Claims, error)
}

type subjectKey struct{}

// AdminAuth admits requests bearing a valid admin token and stores its
// subject in the context. Missing or invalid tokens get 401 with a
// WWW-Authenticate challenge; valid tokens without the admin role get 403.
// A nil validator rejects everything.
func AdminAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				challenge(w, r, "", "admin access is not configured")
				return
			}
			token, detail := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				challenge(w, r, "", detail)
				return
			}

			claims, err := validator.ValidateAdminToken(token)
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, claims.Subject)))
			case errors.Is(err, auth.ErrNotAdmin):
				writeProblem(w, r, models.NewStatusProblem(http.StatusForbidden, GetRequestID(r.Context()), auth.ErrNotAdmin.Error()))
			case errors.Is(err, auth.ErrTokenExpired):
				challenge(w, r, "invalid_token", auth.ErrTokenExpired.Error())
			case errors.Is(err, auth.ErrInvalidToken):
				challenge(w, r, "invalid_token", auth.ErrInvalidToken.Error())
			default:
				challenge(w, r, "", "authentication failed")
			}
		})
	}
}

// bearerToken extracts the token of a Bearer authorization header. The
// scheme is case-insensitive. On failure it returns an empty token and the
// reason.
func bearerToken(header string) (token, detail string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, rest, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "authorization header must use the Bearer scheme"
	}
	if token = strings.TrimSpace(rest); token == "" {
		return "", "missing bearer token"
	}
	return token, ""
}

func challenge(w http.ResponseWriter, r *http.Request, code, detail string) {
	value := `Bearer realm="breezyd-admin"`
	if code != "" {
		value += `, error="` + code + `"`
	}
	w.Header().Set("WWW-Authenticate", value)
	writeProblem(w, r, models.NewStatusProblem(http.StatusUnauthorized, GetRequestID(r.Context()), detail))
}

// writeProblem sets the instance and writes p. The response package
// imports this one, so middleware writes problems itself.
func writeProblem(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	p.Instance = r.URL.Path
	p.Write(w)
}

// GetSubject returns the subject of the admin token that authenticated the
// request, or an empty string.
func GetSubject(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey{}).(string)
	return sub
}
