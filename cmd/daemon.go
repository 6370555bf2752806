package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wirewarden/wirewarden/pkg/daemon"
	"github.com/wirewarden/wirewarden/pkg/wgnet"
)

func initDaemonCmd() *cobra.Command {
	in := &DaemonInput{}

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Converge local WireGuard interfaces against the planner",
		Run: func(cmd *cobra.Command, args []string) {
			runDaemon(in)
		},
	}

	cmd.Flags().StringVarP(&in.Config, "config", "c", daemon.DefaultConfigPath, "")
	cmd.Flags().UintVarP(&in.Interval, "interval", "i", 30, "")

	return cmd
}

func runDaemon(in *DaemonInput) {
	l := logrus.New()
	l.Level = logrus.DebugLevel

	if in.Interval < 1 {
		log.Fatal("interval must be at least 1 second")
	}

	registry := daemon.NewRegistry(in.Config)
	regs, err := registry.Load()
	if err != nil {
		log.Fatalf("load registrations: %v", err)
	}
	if len(regs) == 0 {
		log.Fatalf("no gateways registered in %s, run `wirewarden connect` first", in.Config)
	}

	driver, err := wgnet.NewDriver()
	if err != nil {
		log.Fatalf("open netlink driver: %v", err)
	}
	defer driver.Close()

	d := daemon.New(registry, driver,
		daemon.WithInterval(time.Duration(in.Interval)*time.Second),
		daemon.WithLogger(l),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
