package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/manhunt/internal/manhunt"
)

type ctxKey int

const ctxKeyPerson ctxKey = iota

// personMiddleware resolves the {personID} path parameter.
func personMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "personID"))
		if id == "" {
			writeError(w, http.StatusBadRequest, "person id required")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyPerson, manhunt.PersonID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func personFrom(r *http.Request) manhunt.PersonID {
	return r.Context().Value(ctxKeyPerson).(manhunt.PersonID)
}
