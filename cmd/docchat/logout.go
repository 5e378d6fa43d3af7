package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the local session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, sessions, repo, err := openSessions()
			if err != nil {
				return err
			}
			defer closeRepo(repo)

			if err := sessions.ClearSession(cmd.Context(), deviceID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sesión cerrada.")
			return nil
		},
	}
}
