package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/docgate/internal/domain"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sessions, repo, err := openSessions()
			if err != nil {
				return err
			}
			defer closeRepo(repo)

			rec, err := sessions.Lookup(cmd.Context(), deviceID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			remaining := sessions.Remaining(rec)
			if remaining <= 0 {
				fmt.Fprintln(out, "Sin sesión. Ejecuta 'docchat login'.")
				return nil
			}

			fmt.Fprintf(out, "%-12s %s\n", "DEVICE", deviceID)
			fmt.Fprintln(out, strings.Repeat("-", 40))
			fmt.Fprintf(out, "%-12s %s\n", "ISSUED", rec.IssuedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(out, "%-12s %s\n", "EXPIRES IN", remaining.Truncate(time.Second))
			fmt.Fprintf(out, "%-12s %s\n", "ROLES", formatRoles(domain.NewRoleSet(rec.Roles...)))
			return nil
		},
	}
}
