package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/umccr/htsget-archive/internal/bootstrap"
	"github.com/umccr/htsget-archive/internal/htsconfig"
	log "github.com/umccr/htsget-archive/internal/htslog"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve htsget tickets for archived files",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := htsconfig.Load(configPath)
	if err != nil {
		return err
	}
	log.Configure(cfg.Server.LogLevel, cfg.Server.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return bootstrap.Run(ctx, cfg)
}
