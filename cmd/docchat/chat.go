package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ashureev/docgate/internal/chat"
	"github.com/ashureev/docgate/internal/inference"
	"github.com/ashureev/docgate/internal/session"
)

const (
	retryCommand = "/retry"
	quitCommand  = "/quit"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the documentation assistant",
		Long: `Each line typed is sent to the assistant. Typing a line while the
answer is streaming stops it. /retry resubmits the last stopped
question and /quit leaves.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, sessions, repo, err := openSessions()
			if err != nil {
				return err
			}
			defer closeRepo(repo)

			if cfg.Chat.RequireSession {
				if _, err := sessions.Refresh(cmd.Context(), deviceID); err != nil {
					if errors.Is(err, session.ErrNoSession) {
						return errors.New("sesión caducada, ejecuta 'docchat login'")
					}
					return err
				}
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			out := cmd.OutOrStdout()
			ctrl := chat.NewController(inference.NewClient(cfg.Chat), newTerminalView(out), chat.Config{
				Pools:    loadPools(cfg.Chat.PoolsFile, logger),
				BotName:  cfg.Chat.BotName,
				UserName: cfg.Chat.UserName,
			}, logger)
			defer ctrl.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(out, "%s listo. Escribe tu pregunta (%s para salir).\n", cfg.Chat.BotName, quitCommand)
			return runChat(ctx, ctrl, cmd.InOrStdin())
		},
	}
}

// runChat feeds stdin lines to ctrl until EOF, /quit or ctx is cancelled.
// The reader goroutine may stay blocked on stdin after return; the process
// exits right after.
func runChat(ctx context.Context, ctrl *chat.Controller, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			ctrl.Cancel()
			return nil
		case line, ok := <-lines:
			if !ok {
				// Let a running answer finish before leaving.
				ctrl.Wait()
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if handleLine(ctx, ctrl, strings.TrimSpace(line)) {
				ctrl.Cancel()
				return nil
			}
		}
	}
}

// handleLine reports true when the user asked to leave.
func handleLine(ctx context.Context, ctrl *chat.Controller, line string) bool {
	switch line {
	case quitCommand:
		return true
	case retryCommand:
		id, ok := lastPause(ctrl.Messages())
		if !ok {
			return false
		}
		// A busy controller means the line stops the stream, as any other line would.
		if _, err := ctrl.Retry(ctx, id); errors.Is(err, chat.ErrBusy) {
			ctrl.Cancel()
		}
		return false
	}
	ctrl.Send(ctx, line)
	return false
}

// lastPause returns the most recent retryable pause message.
func lastPause(messages []chat.Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Kind == chat.KindPause && m.Retryable {
			return m.ID, true
		}
	}
	return "", false
}

func loadPools(path string, logger *slog.Logger) chat.Pools {
	if path == "" {
		return chat.DefaultPools(nil)
	}
	pools, err := chat.LoadPools(path, nil)
	if err != nil {
		logger.Warn("Failed to load chat pools, using built-in messages", "path", path, "error", err)
		return chat.DefaultPools(nil)
	}
	return pools
}
