package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sealbox/sealbox/internal/client/api"
	"github.com/sealbox/sealbox/internal/client/config"
)

// newClient is a seam so tests can intercept client construction.
var newClient = api.New

type App struct {
	config *config.Config
	client *api.Client
	in     *bufio.Reader
	out    io.Writer
}

func NewApp(cfg *config.Config) *App {
	return &App{
		config: cfg,
		client: newClient(cfg.ServerURL),
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

const usage = `Usage:
  sealbox send [-file path] [-password] [-ttl duration] [-token t] [text]
  sealbox view <link>
  sealbox register <username>
  sealbox login <username>

Global flags: -s <server url>, -c <config file>
`

// Run dispatches one subcommand. args excludes the program name.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("no command given")
	}

	switch args[0] {
	case "send":
		return a.Send(ctx, args[1:])
	case "view":
		return a.View(ctx, args[1:])
	case "register":
		return a.Register(ctx, args[1:])
	case "login":
		return a.Login(ctx, args[1:])
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}
