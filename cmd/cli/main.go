package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/capki/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		CA      commands.CACmd      `cmd:"" name:"ca" help:"Download the CA certificate"`
		Issue   commands.IssueCmd   `cmd:"" help:"Generate a key and have the CA sign a certificate for it"`
		Inspect commands.InspectCmd `cmd:"" help:"Print certificate details as YAML"`
		Debug   bool                `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("capki"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
