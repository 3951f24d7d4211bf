package main

import (
	"context"
	"log"
	"os"

	"github.com/sealbox/sealbox/internal/buildinfo"
	"github.com/sealbox/sealbox/internal/client/cli"
	"github.com/sealbox/sealbox/internal/client/config"
	"github.com/sealbox/sealbox/internal/flagx"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app := cli.NewApp(cfg)

	// Strip the global flags consumed by config loading; everything else
	// belongs to the subcommand.
	args := flagx.StripArgs(os.Args[1:], []string{"-s", "-c", "-config"})

	if err := app.Run(ctx, args); err != nil {
		log.Fatalf("%v", err)
	}
}
