package cmd

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wirewarden/wirewarden/pkg/server"
)

var serverColumns = []string{"ID", "Name", "Address", "PublicKey", "APIToken", "Endpoint", "Forwards"}
var routeColumns = []string{"ID", "CIDR"}

func initNetworkServerCmd(adminIn *AdminInput) *cobra.Command {
	in := &NetworkInput{
		AdminInput: adminIn,
	}

	cmd := &cobra.Command{
		Use: "server",
	}

	cmd.PersistentFlags().UintVar(&in.Network, "network", 0, "")
	cmd.MarkPersistentFlagRequired("network")

	cmd.AddCommand(
		&cobra.Command{
			Use: "list",
			Run: func(cmd *cobra.Command, args []string) {
				networkServerList(in)
			},
		},
	)

	cmd.AddCommand(
		initNetworkServerCreateCmd(in),
		initNetworkServerUpdateCmd(in),
		initNetworkServerDeleteCmd(in),
		initNetworkServerRouteCmd(in),
	)

	return cmd
}

func initNetworkServerCreateCmd(networkIn *NetworkInput) *cobra.Command {
	in := &NetworkServerCreateInput{
		NetworkInput: networkIn,
	}

	cmd := &cobra.Command{
		Use: "create",
		Run: func(cmd *cobra.Command, args []string) {
			networkServerCreate(in)
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "")
	cmd.MarkFlagRequired("name")

	cmd.Flags().StringVar(&in.EndpointHost, "endpoint.host", "", "")
	cmd.Flags().Uint16Var(&in.EndpointPort, "endpoint.port", 0, "")
	cmd.Flags().BoolVar(&in.ForwardInternet, "forward-internet", false, "")

	return cmd
}

func initNetworkServerUpdateCmd(networkIn *NetworkInput) *cobra.Command {
	in := &NetworkServerUpdateInput{
		NetworkServerInput: &NetworkServerInput{NetworkInput: networkIn},
	}

	cmd := &cobra.Command{
		Use: "update",
		Run: func(cmd *cobra.Command, args []string) {
			networkServerUpdate(in)
		},
	}

	cmd.Flags().UintVar(&in.Server, "server", 0, "")
	cmd.MarkFlagRequired("server")

	cmd.Flags().StringVar(&in.EndpointHost, "endpoint.host", "", "")
	cmd.Flags().Uint16Var(&in.EndpointPort, "endpoint.port", 0, "")
	cmd.Flags().BoolVar(&in.ForwardInternet, "forward-internet", false, "")

	return cmd
}

func initNetworkServerDeleteCmd(networkIn *NetworkInput) *cobra.Command {
	in := &NetworkServerInput{
		NetworkInput: networkIn,
	}

	cmd := &cobra.Command{
		Use: "delete",
		Run: func(cmd *cobra.Command, args []string) {
			networkServerDelete(in)
		},
	}

	cmd.Flags().UintVar(&in.Server, "server", 0, "")
	cmd.MarkFlagRequired("server")

	return cmd
}

func initNetworkServerRouteCmd(networkIn *NetworkInput) *cobra.Command {
	serverIn := &NetworkServerInput{
		NetworkInput: networkIn,
	}

	cmd := &cobra.Command{
		Use: "route",
	}

	cmd.PersistentFlags().UintVar(&serverIn.Server, "server", 0, "")
	cmd.MarkPersistentFlagRequired("server")

	cmd.AddCommand(
		&cobra.Command{
			Use: "list",
			Run: func(cmd *cobra.Command, args []string) {
				networkServerRouteList(serverIn)
			},
		},
	)

	in := &NetworkServerRouteInput{
		NetworkServerInput: serverIn,
	}

	addCmd := &cobra.Command{
		Use: "add",
		Run: func(cmd *cobra.Command, args []string) {
			networkServerRouteAdd(in)
		},
	}
	addCmd.Flags().StringVar(&in.CIDR, "cidr", "", "")
	addCmd.MarkFlagRequired("cidr")

	removeCmd := &cobra.Command{
		Use: "remove",
		Run: func(cmd *cobra.Command, args []string) {
			networkServerRouteRemove(in)
		},
	}
	removeCmd.Flags().StringVar(&in.CIDR, "cidr", "", "")
	removeCmd.MarkFlagRequired("cidr")

	cmd.AddCommand(addCmd, removeCmd)

	return cmd
}

func networkServerList(in *NetworkInput) {
	c := getHTTPClient(in.AdminInput)

	resp, err := c.ListServers(in.Network)
	if err != nil {
		log.Fatalf("list servers: %v", err)
	}

	var output []map[string]string
	for _, item := range resp.Items {
		output = append(output, serverRow(item))
	}

	printTable(os.Stdout, output, serverColumns)
}

func networkServerCreate(in *NetworkServerCreateInput) {
	c := getHTTPClient(in.AdminInput)

	req := server.CreateServerRequest{
		Name:                    in.Name,
		ForwardsInternetTraffic: in.ForwardInternet,
	}
	if in.EndpointHost != "" {
		req.EndpointHost = &in.EndpointHost
	}
	if in.EndpointPort != 0 {
		req.EndpointPort = &in.EndpointPort
	}

	resp, err := c.CreateServer(in.Network, req)
	if err != nil {
		log.Fatalf("create server: %v", err)
	}

	printTable(os.Stdout, []map[string]string{serverRow(resp.GetServerResponse)}, serverColumns)

	// The api token shows in full only here; afterwards it is redacted.
	fmt.Printf("\nRun on the gateway:\n  %s\n", resp.ConnectCommand)
}

func networkServerUpdate(in *NetworkServerUpdateInput) {
	c := getHTTPClient(in.AdminInput)

	req := server.UpdateServerRequest{
		ForwardsInternetTraffic: in.ForwardInternet,
	}
	if in.EndpointHost != "" {
		req.EndpointHost = &in.EndpointHost
	}
	if in.EndpointPort != 0 {
		req.EndpointPort = &in.EndpointPort
	}

	resp, err := c.UpdateServer(in.Network, in.Server, req)
	if err != nil {
		log.Fatalf("update server: %v", err)
	}

	printTable(os.Stdout, []map[string]string{serverRow(server.GetServerResponse(resp))}, serverColumns)
}

func networkServerDelete(in *NetworkServerInput) {
	c := getHTTPClient(in.AdminInput)

	resp, err := c.DeleteServer(in.Network, in.Server)
	if err != nil {
		log.Fatalf("delete server: %v", err)
	}

	printTable(os.Stdout, []map[string]string{serverRow(resp)}, serverColumns)
}

func networkServerRouteList(in *NetworkServerInput) {
	c := getHTTPClient(in.AdminInput)

	resp, err := c.ListServerRoutes(in.Network, in.Server)
	if err != nil {
		log.Fatalf("list routes: %v", err)
	}

	var output []map[string]string
	for _, route := range resp.Items {
		output = append(output, routeRow(route))
	}

	printTable(os.Stdout, output, routeColumns)
}

func networkServerRouteAdd(in *NetworkServerRouteInput) {
	c := getHTTPClient(in.AdminInput)

	resp, err := c.CreateServerRoute(in.Network, in.Server, server.CreateRouteRequest{CIDR: in.CIDR})
	if err != nil {
		log.Fatalf("add route: %v", err)
	}

	printTable(os.Stdout, []map[string]string{routeRow(server.GetRouteResponse(resp))}, routeColumns)
}

func networkServerRouteRemove(in *NetworkServerRouteInput) {
	c := getHTTPClient(in.AdminInput)

	resp, err := c.DeleteServerRoute(in.Network, in.Server, in.CIDR)
	if err != nil {
		log.Fatalf("remove route: %v", err)
	}

	printTable(os.Stdout, []map[string]string{routeRow(resp)}, routeColumns)
}

func serverRow(s server.GetServerResponse) map[string]string {
	endpoint := ""
	if s.EndpointHost != nil {
		endpoint = fmt.Sprintf("%s:%d", *s.EndpointHost, s.EndpointPort)
	}

	return map[string]string{
		"ID":        strconv.FormatUint(uint64(s.ID), 10),
		"Name":      s.Name,
		"Address":   s.Address,
		"PublicKey": s.PublicKey,
		"APIToken":  s.APIToken,
		"Endpoint":  endpoint,
		"Forwards":  fmt.Sprintf("%t", s.ForwardsInternetTraffic),
	}
}

func routeRow(r server.GetRouteResponse) map[string]string {
	return map[string]string{
		"ID":   strconv.FormatUint(uint64(r.ID), 10),
		"CIDR": r.CIDR,
	}
}
