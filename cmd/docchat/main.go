// Package main is the entry point for the docchat terminal client.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashureev/docgate/internal/config"
	"github.com/ashureev/docgate/internal/session"
	"github.com/ashureev/docgate/internal/store"
)

// Version information set at build time.
var version = "0.1.0"

// Global flags.
var (
	dbPath   string
	deviceID string
	verbose  bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docchat",
		Short: "Terminal client for the documentation assistant",
		Long: `docchat logs in against the documentation auth API, keeps the
session token in a local SQLite file with the same TTL as the site,
and chats with the documentation assistant from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && verbose {
				fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath(), "Path to the local session database")
	root.PersistentFlags().StringVar(&deviceID, "device", defaultDeviceID(), "Device id sent as machine id")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose output")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newLoginCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newLogoutCmd())
	root.AddCommand(newChatCmd())

	return root
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "docchat.db"
	}
	return filepath.Join(dir, "docgate", "docchat.db")
}

func defaultDeviceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return "cli-" + host
}

// openSessions loads configuration and opens the local session store.
// The caller closes the returned repository.
func openSessions() (*config.Config, *session.Manager, store.Repository, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	repo, err := store.NewSQLite(dbPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open session store: %w", err)
	}
	return cfg, session.NewManager(repo, cfg.Gate.SessionTTL), repo, nil
}

func closeRepo(repo store.Repository) {
	if err := repo.Close(); err != nil && verbose {
		fmt.Fprintf(os.Stderr, "close session store: %v\n", err)
	}
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
