package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wirewarden/wirewarden/pkg/model"
	"github.com/wirewarden/wirewarden/pkg/store"
)

func redactToken(token string) string {
	if len(token) <= 8 {
		return token
	}

	return token[:8] + "…"
}

func serverResponse(network *model.Network, server *model.Server) (GetServerResponse, error) {
	address, err := model.HostAddress(network.CIDR.ToNetip(), server.AddressOffset)
	if err != nil {
		return GetServerResponse{}, err
	}

	return GetServerResponse{
		ID:                      server.ID,
		NetworkID:               server.NetworkID,
		Name:                    server.Name,
		PublicKey:               server.Key.PublicKey,
		Address:                 address.String(),
		APIToken:                redactToken(server.APIToken),
		EndpointHost:            server.EndpointHost,
		EndpointPort:            server.EndpointPort,
		ForwardsInternetTraffic: server.ForwardsInternetTraffic,
	}, nil
}

func (s *Server) listServers(w http.ResponseWriter, r *http.Request) {
	network, err := s.networkFromPath(r)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	servers, err := s.store.ListServers(r.Context(), network.ID)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	response := ListServersResponse{Items: []GetServerResponse{}}
	for i := range servers {
		item, err := serverResponse(network, &servers[i])
		if err != nil {
			s.handleErr(err, w)
			return
		}
		response.Items = append(response.Items, item)
	}

	s.handleResponse(w, http.StatusOK, response)
}

func (s *Server) createServer(w http.ResponseWriter, r *http.Request) {
	network, err := s.networkFromPath(r)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	req := CreateServerRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleErr(badRequest(err), w)
		return
	}

	port, err := endpointPort(req.EndpointPort)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	server, err := s.store.CreateServer(r.Context(), network.ID, store.ServerParams{
		Name:                    req.Name,
		EndpointHost:            req.EndpointHost,
		EndpointPort:            port,
		ForwardsInternetTraffic: req.ForwardsInternetTraffic,
	})
	if err != nil {
		s.handleErr(err, w)
		return
	}

	item, err := serverResponse(network, server)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	// The full token is revealed exactly once, at creation.
	item.APIToken = server.APIToken

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	response := CreateServerResponse{
		GetServerResponse: item,
		ConnectCommand: fmt.Sprintf("wirewarden connect --api-host %s://%s --api-token %s",
			scheme, r.Host, server.APIToken),
	}

	s.handleResponse(w, http.StatusCreated, response)
}

func (s *Server) getServer(w http.ResponseWriter, r *http.Request) {
	network, err := s.networkFromPath(r)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	server, err := s.serverFromPath(r, network)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	item, err := serverResponse(network, server)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusOK, item)
}

func (s *Server) updateServer(w http.ResponseWriter, r *http.Request) {
	network, err := s.networkFromPath(r)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	server, err := s.serverFromPath(r, network)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	req := UpdateServerRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleErr(badRequest(err), w)
		return
	}

	port, err := endpointPort(req.EndpointPort)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	updated, err := s.store.UpdateServer(r.Context(), server.ID, store.UpdateServerParams{
		EndpointHost:            req.EndpointHost,
		EndpointPort:            port,
		ForwardsInternetTraffic: req.ForwardsInternetTraffic,
	})
	if err != nil {
		s.handleErr(err, w)
		return
	}

	item, err := serverResponse(network, updated)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusOK, UpdateServerResponse(item))
}

func (s *Server) deleteServer(w http.ResponseWriter, r *http.Request) {
	network, err := s.networkFromPath(r)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	server, err := s.serverFromPath(r, network)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	if err := s.store.DeleteServer(r.Context(), server.ID); err != nil {
		s.handleErr(err, w)
		return
	}

	item, err := serverResponse(network, server)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusOK, item)
}

// endpointPort unwraps an optional port. Absent becomes zero, which the
// store resolves to the default; an explicit zero is rejected.
func endpointPort(port *uint16) (uint16, error) {
	if port == nil {
		return 0, nil
	}

	if *port == 0 {
		return 0, badRequest(fmt.Errorf("endpoint_port must be between 1 and 65535"))
	}

	return *port, nil
}
