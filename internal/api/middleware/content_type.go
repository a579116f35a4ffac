package middleware

import (
	"mime"
	"net/http"
	"strings"

	"github.com/breezyweather/breezyd/internal/api/models"
)

// RequireJSON answers 415 to POST, PUT and PATCH requests whose declared
// body type is not JSON. application/json and any +json suffix type pass;
// requests without a Content-Type are left to the decoder.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if ct := r.Header.Get("Content-Type"); ct != "" && !isJSON(ct) {
				writeProblem(w, r, models.NewStatusProblem(http.StatusUnsupportedMediaType,
					GetRequestID(r.Context()), "request body must be application/json"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
