package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/breezyweather/breezyd/internal/api/models"
)

// Recovery turns handler panics into a 500 problem response. The panic is
// logged through the request logger when Logger ran first, else through
// log. http.ErrAbortHandler is re-raised so the server aborts the
// connection as usual.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared as panic value
					panic(rec)
				}

				l := zerolog.Ctx(r.Context())
				if l.GetLevel() == zerolog.Disabled {
					l = &log
				}
				l.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				writeProblem(w, r, models.NewStatusProblem(http.StatusInternalServerError,
					GetRequestID(r.Context()), "an unexpected error occurred"))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
