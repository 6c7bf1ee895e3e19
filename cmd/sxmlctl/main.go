package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/sxmlstream/internal/config"
	"github.com/danmuck/sxmlstream/internal/ingest"
	"github.com/danmuck/sxmlstream/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const defaultConfigPath = "cmd/sxmlctl/config.toml"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "sxmlctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("sxmlctl", pflag.ContinueOnError)
	configPath := flagSet.StringP("config", "c", defaultConfigPath, "path to the runtime TOML config")
	listen := flagSet.String("listen", "", "override listen_addr")
	admin := flagSet.String("admin", "", "override admin_addr")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	observability.InitLogger("sxmlctl")
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("listen") {
		cfg.Ingest.ListenAddr = *listen
	}
	if flagSet.Changed("admin") {
		cfg.Ingest.AdminAddr = *admin
	}
	log.Info().Str("path", *configPath).Int("sources", len(cfg.Sources)).Msg("loaded sxmlctl config")

	bindings, err := config.Bindings(cfg.Sources)
	if err != nil {
		return err
	}
	svc, err := ingest.NewService(cfg.Ingest)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = svc.Run(ctx, bindings)
	log.Info().Int("pending", svc.Pending()).Msg("sxmlctl stopped")
	return err
}
