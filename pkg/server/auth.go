package server

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var errUnauthorized = errors.New("unauthorized")

// TokenAuthenticator guards the operator API with a single static bearer
// token, compared in constant time.
type TokenAuthenticator struct {
	token        string
	errorHandler func(err error, w http.ResponseWriter)
}

func NewTokenAuthenticator(token string, errorHandler func(err error, w http.ResponseWriter)) *TokenAuthenticator {
	ta := &TokenAuthenticator{
		token:        token,
		errorHandler: func(error, http.ResponseWriter) {},
	}

	if errorHandler != nil {
		ta.errorHandler = errorHandler
	}

	return ta
}

func (a TokenAuthenticator) Middleware(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || a.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			a.errorHandler(errUnauthorized, w)
			return
		}

		h.ServeHTTP(w, r)
	}

	return http.HandlerFunc(fn)
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}

	return strings.TrimPrefix(header, prefix), true
}
