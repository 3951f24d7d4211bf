package cli

import (
	"context"
	"fmt"

	"github.com/sealbox/sealbox/internal/common"
)

// Register creates an account and prints the token pair. The access token
// feeds the -token flag of send.
func (a *App) Register(ctx context.Context, args []string) error {
	return a.withCredentials(args, "register", func(userName, password string) error {
		pair, err := a.client.Register(ctx, userName, password)
		if err != nil {
			return err
		}
		a.printTokens(pair.AccessToken, pair.RefreshToken)
		return nil
	})
}

// Login authenticates and prints the token pair.
func (a *App) Login(ctx context.Context, args []string) error {
	return a.withCredentials(args, "login", func(userName, password string) error {
		pair, err := a.client.Login(ctx, userName, password)
		if err != nil {
			return err
		}
		a.printTokens(pair.AccessToken, pair.RefreshToken)
		return nil
	})
}

func (a *App) withCredentials(args []string, command string, fn func(userName, password string) error) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s <username>", command)
	}
	pw, err := GetPassword(a.out, "Account password: ")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)
	return fn(args[0], string(pw))
}

func (a *App) printTokens(access, refresh string) {
	fmt.Fprintf(a.out, "Access token: %s\n", access)
	fmt.Fprintf(a.out, "Refresh token: %s\n", refresh)
}
