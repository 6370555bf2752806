package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"

	"github.com/wirewarden/wirewarden/pkg/model"
)

func routeResponse(route *model.ServerRoute) GetRouteResponse {
	return GetRouteResponse{
		ID:   route.ID,
		CIDR: route.CIDR.ToNetip().String(),
	}
}

func (s *Server) listServerRoutes(w http.ResponseWriter, r *http.Request) {
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

	routes, err := s.store.ListServerRoutes(r.Context(), server.ID)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	response := ListRoutesResponse{Items: []GetRouteResponse{}}
	for i := range routes {
		response.Items = append(response.Items, routeResponse(&routes[i]))
	}

	s.handleResponse(w, http.StatusOK, response)
}

func (s *Server) createServerRoute(w http.ResponseWriter, r *http.Request) {
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

	req := CreateRouteRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleErr(badRequest(err), w)
		return
	}

	cidr, err := netip.ParsePrefix(req.CIDR)
	if err != nil {
		s.handleErr(badRequest(err), w)
		return
	}

	route, err := s.store.AddServerRoute(r.Context(), server.ID, cidr)
	if err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusCreated, CreateRouteResponse(routeResponse(route)))
}

// deleteServerRoute removes the advertised route named by the cidr query
// parameter. The cidr sits in the query because prefixes contain slashes.
func (s *Server) deleteServerRoute(w http.ResponseWriter, r *http.Request) {
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

	raw := r.URL.Query().Get("cidr")
	if raw == "" {
		s.handleErr(badRequest(fmt.Errorf("missing cidr query parameter")), w)
		return
	}

	cidr, err := netip.ParsePrefix(raw)
	if err != nil {
		s.handleErr(badRequest(err), w)
		return
	}

	if err := s.store.RemoveServerRoute(r.Context(), server.ID, cidr); err != nil {
		s.handleErr(err, w)
		return
	}

	s.handleResponse(w, http.StatusOK, GetRouteResponse{CIDR: cidr.String()})
}
