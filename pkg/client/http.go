// Package client is the HTTP client for the planner API, shared by the
// operator CLI and the convergence daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wirewarden/wirewarden/pkg/api"
	"github.com/wirewarden/wirewarden/pkg/server"
)

type Client struct {
	c     *http.Client
	url   string
	token string
	l     *logrus.Logger
}

var ErrorNotFound = errors.New("not found")
var ErrorUnauthorized = errors.New("unauthorized")
var ErrorForbidden = errors.New("forbidden")
var ErrorConflict = errors.New("conflict")
var ErrorServerError = errors.New("server error")
var ErrorBadRequest = errors.New("bad request")

func New(serverURL, token string, options ...func(*Client)) *Client {
	c := &Client{
		c:     &http.Client{Timeout: 30 * time.Second},
		url:   strings.TrimRight(serverURL, "/"),
		token: token,
		l:     logrus.New(),
	}
	for _, o := range options {
		o(c)
	}

	return c
}

func WithHTTPClient(hc *http.Client) func(*Client) {
	return func(c *Client) {
		c.c = hc
	}
}

func WithLogger(l *logrus.Logger) func(*Client) {
	return func(c *Client) {
		c.l = l
	}
}

// DaemonConfig pulls this gateway's desired device state. The context
// bounds the whole request; the convergence loop passes a deadline of half
// its tick interval.
func (c *Client) DaemonConfig(ctx context.Context) (api.DaemonConfig, error) {
	url := fmt.Sprintf("%s/api/daemon/config", c.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return api.DaemonConfig{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.c.Do(req)
	if err != nil {
		return api.DaemonConfig{}, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	c.l.Debugf("%d GET %s", resp.StatusCode, url)
	if err := errorFromStatusCode(resp.StatusCode); err != nil {
		return api.DaemonConfig{}, err
	}

	var response api.DaemonConfig
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return api.DaemonConfig{}, fmt.Errorf("decode body: %w", err)
	}

	return response, nil
}

func (c *Client) ListNetworks() (server.ListNetworksResponse, error) {
	url := fmt.Sprintf("%s/networks", c.url)
	var response server.ListNetworksResponse
	err := c.get(url, &response)
	if err != nil {
		return server.ListNetworksResponse{}, fmt.Errorf("get: %w", err)
	}

	return response, nil
}

func (c *Client) CreateNetwork(req server.CreateNetworkRequest) (server.CreateNetworkResponse, error) {
	url := fmt.Sprintf("%s/networks", c.url)
	var response server.CreateNetworkResponse
	err := c.post(url, &req, &response)
	if err != nil {
		return server.CreateNetworkResponse{}, fmt.Errorf("post: %w", err)
	}

	return response, nil
}

func (c *Client) GetNetwork(networkID uint) (server.GetNetworkResponse, error) {
	url := fmt.Sprintf("%s/networks/%d", c.url, networkID)
	var response server.GetNetworkResponse
	err := c.get(url, &response)
	if err != nil {
		return server.GetNetworkResponse{}, fmt.Errorf("get: %w", err)
	}

	return response, nil
}

func (c *Client) UpdateNetwork(networkID uint, req server.UpdateNetworkRequest) (server.UpdateNetworkResponse, error) {
	url := fmt.Sprintf("%s/networks/%d", c.url, networkID)
	var response server.UpdateNetworkResponse
	err := c.put(url, &req, &response)
	if err != nil {
		return server.UpdateNetworkResponse{}, fmt.Errorf("put: %w", err)
	}

	return response, nil
}

func (c *Client) DeleteNetwork(networkID uint) (server.GetNetworkResponse, error) {
	url := fmt.Sprintf("%s/networks/%d", c.url, networkID)
	var response server.GetNetworkResponse
	err := c.delete(url, &response)
	if err != nil {
		return server.GetNetworkResponse{}, fmt.Errorf("delete: %w", err)
	}

	return response, nil
}

func (c *Client) ListServers(networkID uint) (server.ListServersResponse, error) {
	url := fmt.Sprintf("%s/networks/%d/servers", c.url, networkID)
	var response server.ListServersResponse
	err := c.get(url, &response)
	if err != nil {
		return server.ListServersResponse{}, fmt.Errorf("get: %w", err)
	}

	return response, nil
}

func (c *Client) CreateServer(networkID uint, req server.CreateServerRequest) (server.CreateServerResponse, error) {
	url := fmt.Sprintf("%s/networks/%d/servers", c.url, networkID)
	var response server.CreateServerResponse
	err := c.post(url, &req, &response)
	if err != nil {
		return server.CreateServerResponse{}, fmt.Errorf("post: %w", err)
	}

	return response, nil
}

func (c *Client) GetServer(networkID, serverID uint) (server.GetServerResponse, error) {
	url := fmt.Sprintf("%s/networks/%d/servers/%d", c.url, networkID, serverID)
	var response server.GetServerResponse
	err := c.get(url, &response)
	if err != nil {
		return server.GetServerResponse{}, fmt.Errorf("get: %w", err)
	}

	return response, nil
}

func (c *Client) UpdateServer(networkID, serverID uint, req server.UpdateServerRequest) (server.UpdateServerResponse, error) {
	url := fmt.Sprintf("%s/networks/%d/servers/%d", c.url, networkID, serverID)
	var response server.UpdateServerResponse
	err := c.put(url, &req, &response)
	if err != nil {
		return server.UpdateServerResponse{}, fmt.Errorf("put: %w", err)
	}

	return response, nil
}

func (c *Client) DeleteServer(networkID, serverID uint) (server.GetServerResponse, error) {
	url := fmt.Sprintf("%s/networks/%d/servers/%d", c.url, networkID, serverID)
	var response server.GetServerResponse
	err := c.delete(url, &response)
	if err != nil {
		return server.GetServerResponse{}, fmt.Errorf("delete: %w", err)
	}

	return response, nil
}

func (c *Client) ListServerRoutes(networkID, serverID uint) (server.ListRoutesResponse, error) {
	url := fmt.Sprintf("%s/networks/%d/servers/%d/routes", c.url, networkID, serverID)
	var response server.ListRoutesResponse
	err := c.get(url, &response)
	if err != nil {
		return server.ListRoutesResponse{}, fmt.Errorf("get: %w", err)
	}

	return response, nil
}

func (c *Client) CreateServerRoute(networkID, serverID uint, req server.CreateRouteRequest) (server.CreateRouteResponse, error) {
	url := fmt.Sprintf("%s/networks/%d/servers/%d/routes", c.url, networkID, serverID)
	var response server.CreateRouteResponse
	err := c.post(url, &req, &response)
	if err != nil {
		return server.CreateRouteResponse{}, fmt.Errorf("post: %w", err)
	}

	return response, nil
}

func (c *Client) DeleteServerRoute(networkID, serverID uint, cidr string) (server.GetRouteResponse, error) {
	// The cidr travels in the query string because prefixes contain slashes.
	cidrParam := url.QueryEscape(cidr)
	url := fmt.Sprintf("%s/networks/%d/servers/%d/routes?cidr=%s", c.url, networkID, serverID, cidrParam)
	var response server.GetRouteResponse
	err := c.delete(url, &response)
	if err != nil {
		return server.GetRouteResponse{}, fmt.Errorf("delete: %w", err)
	}

	return response, nil
}

func (c *Client) ListClients(networkID uint) (server.ListClientsResponse, error) {
	url := fmt.Sprintf("%s/networks/%d/clients", c.url, networkID)
	var response server.ListClientsResponse
	err := c.get(url, &response)
	if err != nil {
		return server.ListClientsResponse{}, fmt.Errorf("get: %w", err)
	}

	return response, nil
}

func (c *Client) CreateClient(networkID uint, req server.CreateClientRequest) (server.CreateClientResponse, error) {
	url := fmt.Sprintf("%s/networks/%d/clients", c.url, networkID)
	var response server.CreateClientResponse
	err := c.post(url, &req, &response)
	if err != nil {
		return server.CreateClientResponse{}, fmt.Errorf("post: %w", err)
	}

	return response, nil
}

func (c *Client) GetClient(networkID, clientID uint) (server.GetClientResponse, error) {
	url := fmt.Sprintf("%s/networks/%d/clients/%d", c.url, networkID, clientID)
	var response server.GetClientResponse
	err := c.get(url, &response)
	if err != nil {
		return server.GetClientResponse{}, fmt.Errorf("get: %w", err)
	}

	return response, nil
}

func (c *Client) DeleteClient(networkID, clientID uint) (server.GetClientResponse, error) {
	url := fmt.Sprintf("%s/networks/%d/clients/%d", c.url, networkID, clientID)
	var response server.GetClientResponse
	err := c.delete(url, &response)
	if err != nil {
		return server.GetClientResponse{}, fmt.Errorf("delete: %w", err)
	}

	return response, nil
}

// ClientConfig fetches the rendered wg-quick file as plain text.
func (c *Client) ClientConfig(networkID, clientID uint, forwardInternet bool) (string, error) {
	url := fmt.Sprintf("%s/networks/%d/clients/%d/config", c.url, networkID, clientID)
	if forwardInternet {
		url += "?forward_internet=true"
	}

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.c.Do(req)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	c.l.Debugf("%d GET %s", resp.StatusCode, url)
	if err := errorFromStatusCode(resp.StatusCode); err != nil {
		return "", err
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	return string(b), nil
}

func (c *Client) RotateClientPSKs(networkID, clientID uint) (server.RotatePSKsResponse, error) {
	url := fmt.Sprintf("%s/networks/%d/clients/%d/rotate-psks", c.url, networkID, clientID)
	var response server.RotatePSKsResponse
	err := c.post(url, nil, &response)
	if err != nil {
		return server.RotatePSKsResponse{}, fmt.Errorf("post: %w", err)
	}

	return response, nil
}

func (c *Client) get(url string, target any) error {
	return c.request(http.MethodGet, url, nil, target)
}

func (c *Client) post(url string, payload any, response any) error {
	return c.request(http.MethodPost, url, payload, response)
}

func (c *Client) put(url string, payload any, response any) error {
	return c.request(http.MethodPut, url, payload, response)
}

func (c *Client) delete(url string, response any) error {
	return c.request(http.MethodDelete, url, nil, response)
}

func (c *Client) request(method, url string, payload any, response any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	c.l.Debugf("%d %s %s", resp.StatusCode, method, url)
	if err := errorFromStatusCode(resp.StatusCode); err != nil {
		return err
	}

	if response == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}

	return nil
}

func errorFromStatusCode(code int) error {
	switch code {
	case http.StatusNotFound:
		return ErrorNotFound
	case http.StatusUnauthorized:
		return ErrorUnauthorized
	case http.StatusForbidden:
		return ErrorForbidden
	case http.StatusConflict:
		return ErrorConflict
	case http.StatusBadRequest:
		return ErrorBadRequest
	}

	if code/100 == 5 {
		return ErrorServerError
	}

	if code/100 == 2 {
		return nil
	}

	return fmt.Errorf("unexpected status code %d", code)
}
