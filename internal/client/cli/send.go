package cli

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sealbox/sealbox/internal/client/api"
	"github.com/sealbox/sealbox/internal/common"
)

// Send creates a secret and prints the share link. The text comes from the
// trailing argument, or from an interactive multiline prompt when absent.
// With -file, the named file is sent instead.
func (a *App) Send(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("send", flag.ContinueOnError)
	filePath := fs.String("file", "", "send this file instead of text")
	withPassword := fs.Bool("password", false, "protect the secret with a password (prompted)")
	ttl := fs.Duration("ttl", 0, "time until expiry (e.g. 30m, 24h); server default when zero")
	token := fs.String("token", "", "access token; the secret is created under your account")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := &api.CreateRequest{ExpiresSec: int64(ttl.Seconds())}

	if *filePath != "" {
		data, err := os.ReadFile(*filePath)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		req.Kind = "file"
		req.FileName = filepath.Base(*filePath)
		req.Data = base64.StdEncoding.EncodeToString(data)
	} else {
		text := ""
		if fs.NArg() > 0 {
			text = fs.Arg(0)
		} else {
			var err error
			text, err = GetMultiline(a.in, "Enter the secret text", a.out)
			if err != nil {
				return err
			}
		}
		req.Kind = "text"
		req.Data = text
	}

	if *withPassword {
		pw, err := GetPassword(a.out, "Password for the secret: ")
		if err != nil {
			return err
		}
		defer common.WipeByteArray(pw)
		req.Password = string(pw)
	}

	if *token != "" {
		a.client.SetAccessToken(*token)
	}

	created, err := a.client.CreateSecret(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Share link: %s\n", created.URL)
	fmt.Fprintf(a.out, "Expires at: %s\n", created.ExpiresAt.Local().Format(time.RFC1123))
	fmt.Fprintln(a.out, "The link works exactly once.")
	return nil
}
