package server

import (
	"encoding/json"
	"net/http"

	"github.com/wirewarden/wirewarden/pkg/model"
	"github.com/wirewarden/wirewarden/pkg/store"
)

func clientResponse(network *model.Network, client *model.Client) (GetClientResponse, error) {
	address, err := model.HostAddress(network.CIDR.ToNetip(), client.AddressOffset)
	if err != nil {
		return GetClientResponse{}, err
	}

	return GetClientResponse{
		ID:        client.ID,
		NetworkID: client.NetworkID,
		Name:      client.Name,
		PublicKey: client.Key.PublicKey,
		Address:   address.String(),
	}, nil
}

func (s *Server) listClients(w http.ResponseWriter, r *http.Request) {
	network, err := s.networkFromPath(r)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	clients, err := s.store.ListClients(r.Context(), network.ID)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	response := ListClientsResponse{Items: []GetClientResponse{}}
	for i := range clients {
		item, err := clientResponse(network, &clients[i])
		if err != nil {
			s.handleErr(err, w)
			return
		}
		response.Items = append(response.Items, item)
	}

	s.handleResponse(w, http.StatusOK, response)
}

func (s *Server) createClient(w http.ResponseWriter, r *http.Request) {
	network, err := s.networkFromPath(r)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	req := CreateClientRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleErr(badRequest(err), w)
		return
	}

	client, err := s.store.CreateClient(r.Context(), network.ID, store.ClientParams{Name: req.Name})
	if err != nil {
		s.handleErr(err, w)
		return
	}

	item, err := clientResponse(network, client)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusCreated, CreateClientResponse(item))
}

func (s *Server) getClient(w http.ResponseWriter, r *http.Request) {
	network, err := s.networkFromPath(r)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	client, err := s.clientFromPath(r, network)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	item, err := clientResponse(network, client)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusOK, item)
}

func (s *Server) deleteClient(w http.ResponseWriter, r *http.Request) {
	network, err := s.networkFromPath(r)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	client, err := s.clientFromPath(r, network)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	if err := s.store.DeleteClient(r.Context(), client.ID); err != nil {
		s.handleErr(err, w)
		return
	}

	item, err := clientResponse(network, client)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusOK, item)
}

// clientConfig renders the wg-quick file for a client and returns it as
// plain text, ready to be written to disk on the client machine.
func (s *Server) clientConfig(w http.ResponseWriter, r *http.Request) {
	network, err := s.networkFromPath(r)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	client, err := s.clientFromPath(r, network)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	forward := r.URL.Query().Get("forward_internet") == "true"

	rendered, err := s.store.ClientConfig(r.Context(), client.ID, forward)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(rendered)); err != nil {
		s.l.WithError(err).Debug("flushing config")
	}
}

func (s *Server) rotateClientPSKs(w http.ResponseWriter, r *http.Request) {
	network, err := s.networkFromPath(r)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	client, err := s.clientFromPath(r, network)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	rotated, err := s.store.RotateClientPSKs(r.Context(), client.ID)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusOK, RotatePSKsResponse{Rotated: rotated})
}
