package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ashureev/docgate/internal/authapi"
	"github.com/ashureev/docgate/internal/domain"
)

func newLoginCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange credentials for a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sessions, repo, err := openSessions()
			if err != nil {
				return err
			}
			defer closeRepo(repo)

			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.OutOrStdout()
			if user == "" {
				if user, err = prompt(in, out, "Usuario: "); err != nil {
					return err
				}
			}
			pass, err := promptPassword(cmd.InOrStdin(), in, out, "Contraseña: ")
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client := authapi.NewClient(cfg.Auth)
			token, err := client.ExchangeCredentials(ctx, user, pass, deviceID)
			if err != nil {
				if verbose {
					return fmt.Errorf("login: %w", err)
				}
				return errors.New("credenciales inválidas")
			}
			if err := sessions.StartSession(ctx, deviceID, token); err != nil {
				return err
			}

			var warn io.Writer
			if verbose {
				warn = cmd.ErrOrStderr()
			}
			roles := fetchAndCacheRoles(ctx, client, sessions, deviceID, token, warn)
			fmt.Fprintf(out, "Sesión iniciada (válida %s). Roles: %s\n", sessions.TTL(), formatRoles(roles))
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "User name (prompted when empty)")
	return cmd
}

type roleFetcher interface {
	FetchRoles(ctx context.Context, token string) ([]string, error)
}

type roleCacher interface {
	CacheRoles(ctx context.Context, deviceID string, roles []string) error
}

// fetchAndCacheRoles mirrors the gate: a failed lookup means no roles.
// Failures are reported on warn when it is not nil.
func fetchAndCacheRoles(ctx context.Context, client roleFetcher, sessions roleCacher, device, token string, warn io.Writer) domain.RoleSet {
	list, err := client.FetchRoles(ctx, token)
	if err != nil {
		if warn != nil {
			fmt.Fprintf(warn, "role lookup failed: %v\n", err)
		}
		return domain.NewRoleSet()
	}
	roles := domain.NewRoleSet(list...)
	if err := sessions.CacheRoles(ctx, device, roles.Slice()); err != nil && warn != nil {
		fmt.Fprintf(warn, "failed to cache roles: %v\n", err)
	}
	return roles
}

func formatRoles(roles domain.RoleSet) string {
	if len(roles) == 0 {
		return "(ninguno)"
	}
	return strings.Join(roles.Slice(), ", ")
}

// promptPassword reads without echo when stdin is a terminal and falls
// back to a plain line read otherwise.
func promptPassword(stdin io.Reader, in *bufio.Reader, out io.Writer, label string) (string, error) {
	f, ok := stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return prompt(in, out, label)
	}
	fmt.Fprint(out, label)
	pass, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pass), nil
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(label, ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
