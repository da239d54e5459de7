package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/updatesign/cmd/updatesign/internal/commands"
	"github.com/wolfeidau/updatesign/internal/logger"
)

var (
	version = "dev"
	cli     struct {
		Generate       commands.GenerateCmd       `cmd:"" help:"Generate a key pair and self-signed code signing certificate"`
		Configure      commands.ConfigureCmd      `cmd:"" help:"Validate a certificate and configure app.json to use it"`
		Inspect        commands.InspectCmd        `cmd:"" help:"Show certificate details and validation result"`
		SignManifest   commands.SignManifestCmd   `cmd:"" name:"sign-manifest" help:"Sign an update manifest"`
		VerifyManifest commands.VerifyManifestCmd `cmd:"" name:"verify-manifest" help:"Verify an update manifest signature"`
		Debug          bool                       `help:"Enable debug mode."`
		ProjectRoot    string                     `help:"Project root directory" default:"." env:"UPDATESIGN_PROJECT_ROOT" type:"path"`
		Version        kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("updatesign"),
		kong.Description("Code signing certificates for update manifests."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, ProjectRoot: cli.ProjectRoot})
	cmd.FatalIfErrorf(err)
}
