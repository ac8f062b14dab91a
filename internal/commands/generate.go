package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/complizen/hardgen/internal/core"
	"github.com/complizen/hardgen/internal/generator"
	"github.com/complizen/hardgen/pkgs/printer"
)

// GenerateCmd drives the whole pipeline: load config, validate, resolve
// template, render and write. Each stage's error short-circuits the rest.
type GenerateCmd struct {
	flags *core.Flags
}

func NewGenerateCmd(flags *core.Flags) *GenerateCmd {
	return &GenerateCmd{flags: flags}
}

// Run is the root command action.
func (gc *GenerateCmd) Run(ctx context.Context, c *cli.Command) error {
	cfg, err := core.Load(gc.flags.ConfigFile)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	eng := generator.NewEngine(cfg)
	err = eng.Render(ctx, generator.Request{
		Platform:   gc.flags.Platform,
		Standard:   gc.flags.Standard,
		OutputFile: gc.flags.OutputFile,
	})
	if err != nil {
		return err
	}

	printer.Ctx(ctx).Generated(generator.TemplatePath(gc.flags.Platform, gc.flags.Standard), gc.flags.OutputFile)
	return nil
}
