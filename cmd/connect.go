package cmd

import (
	"errors"
	"log"
	"net/url"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wirewarden/wirewarden/pkg/daemon"
)

func initConnectCmd() *cobra.Command {
	in := &ConnectInput{}

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Register this machine as a gateway with a planner",
		Run: func(cmd *cobra.Command, args []string) {
			runConnect(in)
		},
	}

	cmd.Flags().StringVarP(&in.Config, "config", "c", daemon.DefaultConfigPath, "")

	cmd.Flags().StringVar(&in.APIHost, "api-host", "", "")
	cmd.MarkFlagRequired("api-host")

	cmd.Flags().StringVar(&in.APIToken, "api-token", "", "")
	cmd.MarkFlagRequired("api-token")

	cmd.Flags().StringVar(&in.Interface, "interface", "", "")

	return cmd
}

func runConnect(in *ConnectInput) {
	if _, err := url.ParseRequestURI(in.APIHost); err != nil {
		log.Fatalf("invalid --api-host: %v", err)
	}
	if _, err := uuid.Parse(in.APIToken); err != nil {
		log.Fatalf("invalid --api-token: %v", err)
	}

	registry := daemon.NewRegistry(in.Config)

	ifname := in.Interface
	if ifname == "" {
		var err error
		ifname, err = registry.AutoAssignInterface()
		if err != nil {
			log.Fatalf("assign interface: %v", err)
		}
	}
	if len(ifname) > 15 {
		log.Fatalf("interface name %s is longer than 15 characters", ifname)
	}

	err := registry.Append(daemon.Registration{
		APIHost:   in.APIHost,
		APIToken:  in.APIToken,
		Interface: ifname,
	})
	if errors.Is(err, daemon.ErrDuplicate) {
		log.Println(err)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("append registration: %v", err)
	}

	log.Printf("registered %s in %s", ifname, registry.Path())
}
