package server

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type CreateNetworkRequest struct {
	Name                string   `json:"name"`
	CIDR                string   `json:"cidr"`
	DNSServers          []string `json:"dns_servers"`
	PersistentKeepalive uint16   `json:"persistent_keepalive"`
}

type UpdateNetworkRequest struct {
	DNSServers          *[]string `json:"dns_servers"`
	PersistentKeepalive *uint16   `json:"persistent_keepalive"`
}

type GetNetworkResponse struct {
	ID                  uint     `json:"id"`
	Name                string   `json:"name"`
	CIDR                string   `json:"cidr"`
	DNSServers          []string `json:"dns_servers"`
	PersistentKeepalive uint16   `json:"persistent_keepalive"`
}

type CreateNetworkResponse GetNetworkResponse
type UpdateNetworkResponse GetNetworkResponse

type ListNetworksResponse struct {
	Items []GetNetworkResponse `json:"items"`
}

type CreateServerRequest struct {
	Name                    string  `json:"name"`
	EndpointHost            *string `json:"endpoint_host"`
	EndpointPort            *uint16 `json:"endpoint_port"`
	ForwardsInternetTraffic bool    `json:"forwards_internet_traffic"`
}

type UpdateServerRequest struct {
	EndpointHost            *string `json:"endpoint_host"`
	EndpointPort            *uint16 `json:"endpoint_port"`
	ForwardsInternetTraffic bool    `json:"forwards_internet_traffic"`
}

// GetServerResponse carries the api token redacted to its first eight
// characters. Only CreateServerResponse ever reveals the full token.
type GetServerResponse struct {
	ID                      uint    `json:"id"`
	NetworkID               uint    `json:"network_id"`
	Name                    string  `json:"name"`
	PublicKey               string  `json:"public_key"`
	Address                 string  `json:"address"`
	APIToken                string  `json:"api_token"`
	EndpointHost            *string `json:"endpoint_host"`
	EndpointPort            uint16  `json:"endpoint_port"`
	ForwardsInternetTraffic bool    `json:"forwards_internet_traffic"`
}

type UpdateServerResponse GetServerResponse

type CreateServerResponse struct {
	GetServerResponse
	ConnectCommand string `json:"connect_command"`
}

type ListServersResponse struct {
	Items []GetServerResponse `json:"items"`
}

type CreateClientRequest struct {
	Name string `json:"name"`
}

type GetClientResponse struct {
	ID        uint   `json:"id"`
	NetworkID uint   `json:"network_id"`
	Name      string `json:"name"`
	PublicKey string `json:"public_key"`
	Address   string `json:"address"`
}

type CreateClientResponse GetClientResponse

type ListClientsResponse struct {
	Items []GetClientResponse `json:"items"`
}

type CreateRouteRequest struct {
	CIDR string `json:"cidr"`
}

type GetRouteResponse struct {
	ID   uint   `json:"id"`
	CIDR string `json:"cidr"`
}

type CreateRouteResponse GetRouteResponse

type ListRoutesResponse struct {
	Items []GetRouteResponse `json:"items"`
}

type RotatePSKsResponse struct {
	Rotated int `json:"rotated"`
}
