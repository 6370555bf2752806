package cmd

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wirewarden/wirewarden/pkg/server"
)

var networkColumns = []string{"ID", "Name", "CIDR", "DNS", "Keepalive"}

func initNetworkCmd() *cobra.Command {
	in := &AdminInput{}

	cmd := &cobra.Command{
		Use: "network",
	}

	bindAdminInput(cmd, in)

	cmd.AddCommand(
		&cobra.Command{
			Use: "list",
			Run: func(cmd *cobra.Command, args []string) {
				networkList(in)
			},
		},
	)

	cmd.AddCommand(
		initNetworkCreateCmd(in),
		initNetworkUpdateCmd(in),
		initNetworkDeleteCmd(in),
		initNetworkServerCmd(in),
		initNetworkClientCmd(in),
	)

	return cmd
}

func initNetworkCreateCmd(adminIn *AdminInput) *cobra.Command {
	in := &NetworkCreateInput{
		AdminInput: adminIn,
	}

	cmd := &cobra.Command{
		Use: "create",
		Run: func(cmd *cobra.Command, args []string) {
			networkCreate(in)
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "")
	cmd.MarkFlagRequired("name")

	cmd.Flags().StringVar(&in.CIDR, "cidr", "", "")
	cmd.MarkFlagRequired("cidr")

	cmd.Flags().StringSliceVar(&in.DNSServers, "dns", nil, "")
	cmd.Flags().Uint16Var(&in.PersistentKeepalive, "keepalive", 0, "")

	return cmd
}

func initNetworkUpdateCmd(adminIn *AdminInput) *cobra.Command {
	in := &NetworkUpdateInput{
		NetworkInput: &NetworkInput{AdminInput: adminIn},
	}

	cmd := &cobra.Command{
		Use: "update",
		Run: func(cmd *cobra.Command, args []string) {
			networkUpdate(cmd, in)
		},
	}

	cmd.Flags().UintVar(&in.Network, "network", 0, "")
	cmd.MarkFlagRequired("network")

	cmd.Flags().StringSliceVar(&in.DNSServers, "dns", nil, "")
	cmd.Flags().Uint16Var(&in.PersistentKeepalive, "keepalive", 0, "")

	return cmd
}

func initNetworkDeleteCmd(adminIn *AdminInput) *cobra.Command {
	in := &NetworkInput{
		AdminInput: adminIn,
	}

	cmd := &cobra.Command{
		Use: "delete",
		Run: func(cmd *cobra.Command, args []string) {
			networkDelete(in)
		},
	}

	cmd.Flags().UintVar(&in.Network, "network", 0, "")
	cmd.MarkFlagRequired("network")

	return cmd
}

func networkList(in *AdminInput) {
	c := getHTTPClient(in)

	resp, err := c.ListNetworks()
	if err != nil {
		log.Fatalf("list networks: %v", err)
	}

	var output []map[string]string
	for _, network := range resp.Items {
		output = append(output, networkRow(network))
	}

	printTable(os.Stdout, output, networkColumns)
}

func networkCreate(in *NetworkCreateInput) {
	c := getHTTPClient(in.AdminInput)

	req := server.CreateNetworkRequest{
		Name:                in.Name,
		CIDR:                in.CIDR,
		DNSServers:          in.DNSServers,
		PersistentKeepalive: in.PersistentKeepalive,
	}

	resp, err := c.CreateNetwork(req)
	if err != nil {
		log.Fatalf("create network: %v", err)
	}

	printTable(os.Stdout, []map[string]string{networkRow(server.GetNetworkResponse(resp))}, networkColumns)
}

func networkUpdate(cmd *cobra.Command, in *NetworkUpdateInput) {
	c := getHTTPClient(in.AdminInput)

	// Only fields whose flags were given travel in the request; the rest
	// keep their stored values.
	req := server.UpdateNetworkRequest{}
	if cmd.Flags().Changed("dns") {
		req.DNSServers = &in.DNSServers
	}
	if cmd.Flags().Changed("keepalive") {
		req.PersistentKeepalive = &in.PersistentKeepalive
	}

	resp, err := c.UpdateNetwork(in.Network, req)
	if err != nil {
		log.Fatalf("update network: %v", err)
	}

	printTable(os.Stdout, []map[string]string{networkRow(server.GetNetworkResponse(resp))}, networkColumns)
}

func networkDelete(in *NetworkInput) {
	c := getHTTPClient(in.AdminInput)

	resp, err := c.DeleteNetwork(in.Network)
	if err != nil {
		log.Fatalf("delete network: %v", err)
	}

	printTable(os.Stdout, []map[string]string{networkRow(resp)}, networkColumns)
}

func networkRow(n server.GetNetworkResponse) map[string]string {
	return map[string]string{
		"ID":        strconv.FormatUint(uint64(n.ID), 10),
		"Name":      n.Name,
		"CIDR":      n.CIDR,
		"DNS":       strings.Join(n.DNSServers, ","),
		"Keepalive": strconv.FormatUint(uint64(n.PersistentKeepalive), 10),
	}
}
