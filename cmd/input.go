package cmd

type AdminInput struct {
	Server string
	Token  string
}

type NetworkInput struct {
	*AdminInput
	Network uint
}

type NetworkCreateInput struct {
	*AdminInput
	Name                string
	CIDR                string
	DNSServers          []string
	PersistentKeepalive uint16
}

type NetworkUpdateInput struct {
	*NetworkInput
	DNSServers          []string
	PersistentKeepalive uint16
}

type NetworkServerInput struct {
	*NetworkInput
	Server uint
}

type NetworkServerCreateInput struct {
	*NetworkInput
	Name            string
	EndpointHost    string
	EndpointPort    uint16
	ForwardInternet bool
}

type NetworkServerUpdateInput struct {
	*NetworkServerInput
	EndpointHost    string
	EndpointPort    uint16
	ForwardInternet bool
}

type NetworkServerRouteInput struct {
	*NetworkServerInput
	CIDR string
}

type NetworkClientInput struct {
	*NetworkInput
	Client uint
}

type NetworkClientCreateInput struct {
	*NetworkInput
	Name string
}

type NetworkClientConfigInput struct {
	*NetworkClientInput
	ForwardInternet bool
	Out             string
}

type ConnectInput struct {
	Config    string
	APIHost   string
	APIToken  string
	Interface string
}

type DaemonInput struct {
	Config   string
	Interval uint
}
