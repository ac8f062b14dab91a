package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/complizen/hardgen/internal/commands"
	"github.com/complizen/hardgen/internal/core"
	"github.com/complizen/hardgen/pkgs/cll"
	"github.com/complizen/hardgen/pkgs/printer"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "v0.1.0-develop"
	commit  = "HEAD"
	date    = time.Now().Format(time.DateTime)
)

var envvars = cll.EnvWithPrefix(core.EnvPrefix)

func build() string {
	short := commit
	if len(commit) > 7 {
		short = commit[:7]
	}

	return fmt.Sprintf("%s (%s) %s", version, short, date)
}

func main() {
	flags := &core.Flags{}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// The flag surface is fixed at the four required flags, so the log
	// level is only tunable through the environment.
	if lvl := os.Getenv(core.EnvPrefix + "LOG_LEVEL"); lvl != "" {
		level, err := zerolog.ParseLevel(lvl)
		if err == nil {
			log.Logger = log.Level(level)
		}
	}

	var (
		ctx    = context.Background()
		writer = printer.NewDeferredWriter(os.Stdout)
	)

	ctx = printer.WithWriter(ctx, writer)
	printer.ConsolePrinter = printer.Ctx(ctx)

	app := &cli.Command{
		EnableShellCompletion: true,
		Name:                  "hardgen",
		Usage:                 `Renders platform hardening scripts from declarative compliance policy configurations.`,
		Version:               build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "compliance-standard",
				Aliases:     []string{"c"},
				Usage:       "compliance standard identifier, used verbatim in the template path (e.g. CIS)",
				Required:    true,
				Sources:     envvars("COMPLIANCE_STANDARD"),
				Destination: &flags.Standard,
			},
			&cli.StringFlag{
				Name:        "config-file",
				Aliases:     []string{"f"},
				Usage:       "path to the YAML policy configuration file",
				Required:    true,
				Sources:     envvars("CONFIG_FILE"),
				Destination: &flags.ConfigFile,
			},
			&cli.StringFlag{
				Name:        "output-file",
				Aliases:     []string{"o"},
				Usage:       "path the rendered script is written to",
				Required:    true,
				Sources:     envvars("OUTPUT_FILE"),
				Destination: &flags.OutputFile,
			},
			&cli.StringFlag{
				Name:        "platform",
				Aliases:     []string{"p"},
				Usage:       "target platform identifier, used verbatim in the template path (e.g. linux)",
				Required:    true,
				Sources:     envvars("PLATFORM"),
				Destination: &flags.Platform,
			},
		},
		Action: commands.NewGenerateCmd(flags).Run,
		OnUsageError: func(ctx context.Context, cmd *cli.Command, err error, isSubcommand bool) error {
			return err
		},
	}

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("script generation failed")
		printer.Ctx(ctx).FatalError(err)
		exitCode = 1
	}

	err := writer.Flush()
	if err != nil {
		panic(err)
	}
	os.Exit(exitCode)
}
