package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/wirewarden/wirewarden/pkg/model"
	"github.com/wirewarden/wirewarden/pkg/store"
)

type Server struct {
	address    string
	store      *store.Store
	adminToken string
	l          *logrus.Logger
}

func New(st *store.Store, options ...func(*Server)) *Server {
	svr := &Server{
		address: "127.0.0.1:8080",
		store:   st,
		l:       logrus.New(),
	}
	for _, o := range options {
		o(svr)
	}

	return svr
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests for up to five seconds.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.router(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.l.Infof("listening on %s", s.address)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func (s *Server) router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)

	r.Get("/healthz", s.healthz)
	r.Get("/api/daemon/config", s.daemonConfig)

	admin := NewTokenAuthenticator(s.adminToken, s.handleErr)
	r.Group(func(r chi.Router) {
		r.Use(admin.Middleware)

		r.Get("/networks", s.listNetworks)
		r.Post("/networks", s.createNetwork)
		r.Get("/networks/{network}", s.getNetwork)
		r.Put("/networks/{network}", s.updateNetwork)
		r.Delete("/networks/{network}", s.deleteNetwork)

		r.Get("/networks/{network}/servers", s.listServers)
		r.Post("/networks/{network}/servers", s.createServer)
		r.Get("/networks/{network}/servers/{server}", s.getServer)
		r.Put("/networks/{network}/servers/{server}", s.updateServer)
		r.Delete("/networks/{network}/servers/{server}", s.deleteServer)

		r.Get("/networks/{network}/servers/{server}/routes", s.listServerRoutes)
		r.Post("/networks/{network}/servers/{server}/routes", s.createServerRoute)
		r.Delete("/networks/{network}/servers/{server}/routes", s.deleteServerRoute)

		r.Get("/networks/{network}/clients", s.listClients)
		r.Post("/networks/{network}/clients", s.createClient)
		r.Get("/networks/{network}/clients/{client}", s.getClient)
		r.Delete("/networks/{network}/clients/{client}", s.deleteClient)
		r.Get("/networks/{network}/clients/{client}/config", s.clientConfig)
		r.Post("/networks/{network}/clients/{client}/rotate-psks", s.rotateClientPSKs)
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleErr(err error, w http.ResponseWriter) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrValidation), errors.Is(err, model.ErrNetworkFull):
		status = http.StatusBadRequest
	case errors.Is(err, errUnauthorized), errors.Is(err, store.ErrUnknownToken):
		status = http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateName), errors.Is(err, store.ErrDuplicateRoute):
		status = http.StatusConflict
	case errors.Is(err, store.ErrConflict):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.l.WithError(err).Error("request failed")
	} else {
		s.l.WithError(err).Debug("request rejected")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	b, err := json.Marshal(ErrorResponse{Error: err.Error()})
	if err != nil {
		return
	}

	_, _ = w.Write(b)
}

func (s *Server) handleResponse(w http.ResponseWriter, status int, response interface{}) {
	b, err := json.Marshal(response)
	if err != nil {
		s.handleErr(fmt.Errorf("marshalling response: %w", err), w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(b); err != nil {
		s.l.WithError(err).Debug("flushing response")
	}
}

func badRequest(err error) error {
	return fmt.Errorf("%w: %v", store.ErrValidation, err)
}

func (s *Server) urlID(r *http.Request, key string) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, key), 10, 32)
	if err != nil {
		return 0, badRequest(fmt.Errorf("invalid %s id", key))
	}

	return uint(id), nil
}

func (s *Server) networkFromPath(r *http.Request) (*model.Network, error) {
	id, err := s.urlID(r, "network")
	if err != nil {
		return nil, err
	}

	return s.store.GetNetwork(r.Context(), id)
}

func (s *Server) serverFromPath(r *http.Request, network *model.Network) (*model.Server, error) {
	id, err := s.urlID(r, "server")
	if err != nil {
		return nil, err
	}

	server, err := s.store.GetServer(r.Context(), id)
	if err != nil {
		return nil, err
	}

	if server.NetworkID != network.ID {
		return nil, store.ErrNotFound
	}

	return server, nil
}

func (s *Server) clientFromPath(r *http.Request, network *model.Network) (*model.Client, error) {
	id, err := s.urlID(r, "client")
	if err != nil {
		return nil, err
	}

	client, err := s.store.GetClient(r.Context(), id)
	if err != nil {
		return nil, err
	}

	if client.NetworkID != network.ID {
		return nil, store.ErrNotFound
	}

	return client, nil
}
