package cmd

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wirewarden/wirewarden/pkg/client"
	"github.com/wirewarden/wirewarden/pkg/server"
)

var clientColumns = []string{"ID", "Name", "Address", "PublicKey"}

func initNetworkClientCmd(adminIn *AdminInput) *cobra.Command {
	in := &NetworkInput{
		AdminInput: adminIn,
	}

	cmd := &cobra.Command{
		Use: "client",
	}

	cmd.PersistentFlags().UintVar(&in.Network, "network", 0, "")
	cmd.MarkPersistentFlagRequired("network")

	cmd.AddCommand(
		&cobra.Command{
			Use: "list",
			Run: func(cmd *cobra.Command, args []string) {
				networkClientList(in)
			},
		},
	)

	cmd.AddCommand(
		initNetworkClientCreateCmd(in),
		initNetworkClientDeleteCmd(in),
		initNetworkClientConfigCmd(in),
		initNetworkClientRotateCmd(in),
	)

	return cmd
}

func initNetworkClientCreateCmd(networkIn *NetworkInput) *cobra.Command {
	in := &NetworkClientCreateInput{
		NetworkInput: networkIn,
	}

	cmd := &cobra.Command{
		Use: "create",
		Run: func(cmd *cobra.Command, args []string) {
			networkClientCreate(in)
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "")
	cmd.MarkFlagRequired("name")

	return cmd
}

func initNetworkClientDeleteCmd(networkIn *NetworkInput) *cobra.Command {
	in := &NetworkClientInput{
		NetworkInput: networkIn,
	}

	cmd := &cobra.Command{
		Use: "delete",
		Run: func(cmd *cobra.Command, args []string) {
			networkClientDelete(in)
		},
	}

	cmd.Flags().UintVar(&in.Client, "client", 0, "")
	cmd.MarkFlagRequired("client")

	return cmd
}

func initNetworkClientConfigCmd(networkIn *NetworkInput) *cobra.Command {
	in := &NetworkClientConfigInput{
		NetworkClientInput: &NetworkClientInput{NetworkInput: networkIn},
	}

	cmd := &cobra.Command{
		Use: "config",
		Run: func(cmd *cobra.Command, args []string) {
			networkClientConfig(in)
		},
	}

	cmd.Flags().UintVar(&in.Client, "client", 0, "")
	cmd.MarkFlagRequired("client")

	cmd.Flags().BoolVar(&in.ForwardInternet, "forward-internet", false, "")
	cmd.Flags().StringVar(&in.Out, "out", "", "")

	return cmd
}

func initNetworkClientRotateCmd(networkIn *NetworkInput) *cobra.Command {
	in := &NetworkClientInput{
		NetworkInput: networkIn,
	}

	cmd := &cobra.Command{
		Use: "rotate-psks",
		Run: func(cmd *cobra.Command, args []string) {
			networkClientRotate(in)
		},
	}

	cmd.Flags().UintVar(&in.Client, "client", 0, "")
	cmd.MarkFlagRequired("client")

	return cmd
}

func networkClientList(in *NetworkInput) {
	c := getHTTPClient(in.AdminInput)

	resp, err := c.ListClients(in.Network)
	if err != nil {
		log.Fatalf("list clients: %v", err)
	}

	var output []map[string]string
	for _, item := range resp.Items {
		output = append(output, clientRow(item))
	}

	printTable(os.Stdout, output, clientColumns)
}

func networkClientCreate(in *NetworkClientCreateInput) {
	c := getHTTPClient(in.AdminInput)

	resp, err := c.CreateClient(in.Network, server.CreateClientRequest{Name: in.Name})
	if err != nil {
		log.Fatalf("create client: %v", err)
	}

	printTable(os.Stdout, []map[string]string{clientRow(server.GetClientResponse(resp))}, clientColumns)
}

func networkClientDelete(in *NetworkClientInput) {
	c := getHTTPClient(in.AdminInput)

	resp, err := c.DeleteClient(in.Network, in.Client)
	if err != nil {
		log.Fatalf("delete client: %v", err)
	}

	printTable(os.Stdout, []map[string]string{clientRow(resp)}, clientColumns)
}

func networkClientConfig(in *NetworkClientConfigInput) {
	c := getHTTPClient(in.AdminInput)

	conf, err := c.ClientConfig(in.Network, in.Client, in.ForwardInternet)
	if err != nil {
		log.Fatalf("fetch client config: %v", err)
	}

	if in.Out == "" {
		fmt.Print(conf)
		return
	}

	// The file carries a private key.
	if err := os.WriteFile(in.Out, []byte(conf), 0600); err != nil {
		log.Fatalf("write %s: %v", in.Out, err)
	}
}

func networkClientRotate(in *NetworkClientInput) {
	c := getHTTPClient(in.AdminInput)

	resp, err := c.RotateClientPSKs(in.Network, in.Client)
	if err != nil {
		log.Fatalf("rotate psks: %v", err)
	}

	log.Printf("rotated %d preshared keys", resp.Rotated)
}

func clientRow(item server.GetClientResponse) map[string]string {
	return map[string]string{
		"ID":        strconv.FormatUint(uint64(item.ID), 10),
		"Name":      item.Name,
		"Address":   item.Address,
		"PublicKey": item.PublicKey,
	}
}

func getHTTPClient(in *AdminInput) *client.Client {
	return client.New(in.Server, in.Token)
}

func bindAdminInput(cmd *cobra.Command, input *AdminInput) {
	cmd.PersistentFlags().StringVar(&input.Server, "server", "http://localhost:8080", "")

	cmd.PersistentFlags().StringVar(&input.Token, "token", "", "")
	cmd.MarkPersistentFlagRequired("token")
}
