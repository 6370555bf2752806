package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wirewarden/wirewarden/pkg/model"
	"github.com/wirewarden/wirewarden/pkg/server"
	"github.com/wirewarden/wirewarden/pkg/store"
	"github.com/wirewarden/wirewarden/pkg/vault"
)

func serve(cmd *cobra.Command, args []string) {
	l := logrus.New()
	l.Level = logrus.DebugLevel

	cfg, err := server.ConfigFromEnv()
	if err != nil {
		log.Fatalf("reading configuration: %v", err)
	}

	// Flags override the environment for local runs.
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.BindAddr = addr
	}
	if driver, _ := cmd.Flags().GetString("db.driver"); driver != "" {
		cfg.DBDriver = driver
	}
	if dsn, _ := cmd.Flags().GetString("db.url"); dsn != "" {
		cfg.DatabaseURL = dsn
	}

	db, err := model.NewDatabase(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	secret, err := vault.ParseSecret(cfg.KeySecret)
	if err != nil {
		log.Fatalf("parse WG_KEY_SECRET: %v", err)
	}

	v, err := vault.New(secret)
	if err != nil {
		log.Fatalf("create vault: %v", err)
	}

	s := server.New(store.New(db, v),
		server.WithAddress(cfg.BindAddr),
		server.WithAdminToken(cfg.AdminToken),
		server.WithLogger(l),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Serve(ctx); err != nil {
		log.Fatal(err)
	}
}
