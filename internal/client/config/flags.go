package config

import (
	"flag"
	"os"

	"github.com/sealbox/sealbox/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-s string   server base URL (e.g., "https://sealbox.example.com")
//
// os.Args is filtered to recognized flags first so subcommand arguments do
// not confuse the parser.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-s"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ServerURL, "s", config.ServerURL, "server base URL")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
