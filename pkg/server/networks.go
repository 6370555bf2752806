package server

import (
	"encoding/json"
	"net/http"
	"net/netip"

	"github.com/wirewarden/wirewarden/pkg/model"
	"github.com/wirewarden/wirewarden/pkg/store"
)

func networkResponse(network *model.Network) GetNetworkResponse {
	dns := []string(network.DNSServers)
	if dns == nil {
		dns = []string{}
	}

	return GetNetworkResponse{
		ID:                  network.ID,
		Name:                network.Name,
		CIDR:                network.CIDR.ToNetip().String(),
		DNSServers:          dns,
		PersistentKeepalive: network.PersistentKeepalive,
	}
}

func (s *Server) listNetworks(w http.ResponseWriter, r *http.Request) {
	networks, err := s.store.ListNetworks(r.Context())
	if err != nil {
		s.handleErr(err, w)
		return
	}

	response := ListNetworksResponse{Items: []GetNetworkResponse{}}
	for i := range networks {
		response.Items = append(response.Items, networkResponse(&networks[i]))
	}

	s.handleResponse(w, http.StatusOK, response)
}

func (s *Server) createNetwork(w http.ResponseWriter, r *http.Request) {
	req := CreateNetworkRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleErr(badRequest(err), w)
		return
	}

	cidr, err := netip.ParsePrefix(req.CIDR)
	if err != nil {
		s.handleErr(badRequest(err), w)
		return
	}

	network, err := s.store.CreateNetwork(r.Context(), store.NetworkParams{
		Name:                req.Name,
		CIDR:                cidr,
		DNSServers:          req.DNSServers,
		PersistentKeepalive: req.PersistentKeepalive,
	})
	if err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusCreated, CreateNetworkResponse(networkResponse(network)))
}

func (s *Server) getNetwork(w http.ResponseWriter, r *http.Request) {
	network, err := s.networkFromPath(r)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusOK, networkResponse(network))
}

func (s *Server) updateNetwork(w http.ResponseWriter, r *http.Request) {
	network, err := s.networkFromPath(r)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	req := UpdateNetworkRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleErr(badRequest(err), w)
		return
	}

	updated, err := s.store.UpdateNetwork(r.Context(), network.ID, store.UpdateNetworkParams{
		DNSServers:          req.DNSServers,
		PersistentKeepalive: req.PersistentKeepalive,
	})
	if err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusOK, UpdateNetworkResponse(networkResponse(updated)))
}

func (s *Server) deleteNetwork(w http.ResponseWriter, r *http.Request) {
	network, err := s.networkFromPath(r)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	if err := s.store.DeleteNetwork(r.Context(), network.ID); err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusOK, networkResponse(network))
}
