package main

import (
	"fmt"
	"os"

	"github.com/danmuck/sxmlstream/internal/config"
	"github.com/danmuck/sxmlstream/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

const defaultPath = "cmd/sxmlctl/config.toml"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("configgen", pflag.ContinueOnError)
	kind := flagSet.String("kind", "listen", "template kind: listen|serial")
	output := flagSet.StringP("output", "o", defaultPath, "output path for config template")
	validate := flagSet.Bool("validate", false, "validate an existing config file")
	input := flagSet.StringP("input", "i", defaultPath, "config path for validation")
	force := flagSet.BoolP("force", "f", false, "overwrite existing config file")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	observability.InitLogger("configgen")

	if *validate {
		cfg, err := config.Load(*input)
		if err != nil {
			return err
		}
		log.Info().
			Str("path", *input).
			Str("start_tag", cfg.Ingest.Assembler.StartTag).
			Int("sources", len(cfg.Sources)).
			Msg("validated config")
		return nil
	}

	if err := config.WriteTemplate(*output, *kind, *force); err != nil {
		return err
	}
	log.Info().Str("kind", *kind).Str("path", *output).Msg("wrote config template")
	return nil
}
