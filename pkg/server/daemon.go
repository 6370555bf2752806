package server

import (
	"net/http"
)

// daemonConfig serves the per-gateway snapshot pulled by the convergence
// daemon. The bearer token is the only credential; a missing or unknown
// token answers 401 without distinguishing the two cases.
func (s *Server) daemonConfig(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		s.handleErr(errUnauthorized, w)
		return
	}

	config, err := s.store.GatewayView(r.Context(), token)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusOK, config)
}
