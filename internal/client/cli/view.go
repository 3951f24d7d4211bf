package cli

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"github.com/sealbox/sealbox/internal/client/link"
)

// View fetches the secret behind a share link, spending its single view.
// Metadata is checked first so a password prompt happens before anything
// irreversible.
func (a *App) View(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("view", flag.ContinueOnError)
	outPath := fs.String("o", "", "write file secrets to this path instead of the original name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: view <link>")
	}

	l, err := link.Parse(fs.Arg(0))
	if err != nil {
		return err
	}
	client := newClient(l.BaseURL)

	meta, err := client.GetSecretMeta(ctx, l.ID)
	if err != nil {
		return err
	}

	password := ""
	if meta.PasswordRequired {
		pw, err := GetPassword(a.out, "This secret requires a password: ")
		if err != nil {
			return err
		}
		password = string(pw)
	}

	disclosed, err := client.Disclose(ctx, l.ID, password)
	if err != nil {
		return err
	}

	if disclosed.Kind == "file" {
		data, err := base64.StdEncoding.DecodeString(disclosed.Data)
		if err != nil {
			return fmt.Errorf("decode file data: %w", err)
		}
		path := disclosed.FileName
		if *outPath != "" {
			path = *outPath
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write file: %w", err)
		}
		fmt.Fprintf(a.out, "Wrote %s (%d bytes)\n", path, len(data))
		return nil
	}

	fmt.Fprintln(a.out, disclosed.Data)
	return nil
}
