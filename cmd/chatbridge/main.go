package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/boat-builder/chatbridge"
	"github.com/boat-builder/chatbridge/config"
	"github.com/boat-builder/chatbridge/llm"
	"github.com/boat-builder/chatbridge/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:          "chatbridge",
		Short:        "Conversational bridge with rolling per-user memory",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newConsoleCmd(&configPath),
		newResetCmd(&configPath),
		newSchemaCmd(),
	)
	return root
}

func loadContainer(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return NewContainer(ctx, cfg)
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP transport",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			container, err := loadContainer(ctx, *configPath)
			if err != nil {
				return err
			}
			defer container.Cleanup()

			server := transport.NewHTTPServer(container.Handler)
			group, ctx := errgroup.WithContext(ctx)
			group.Go(func() error {
				return server.Serve(ctx, container.Config.Runtime.HTTPAddr)
			})
			return group.Wait()
		},
	}
}

func newConsoleCmd(configPath *string) *cobra.Command {
	var userID, userName string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Chat from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			container, err := loadContainer(ctx, *configPath)
			if err != nil {
				return err
			}
			defer container.Cleanup()

			user := llm.User{ID: userID, Name: userName}
			return transport.NewConsole(container.Handler, user, cmd.InOrStdin(), cmd.OutOrStdout()).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "console", "user id to chat as")
	cmd.Flags().StringVar(&userName, "name", "User", "display name to chat as")
	return cmd
}

func newResetCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <user-id>",
		Short: "Delete the memory of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := loadContainer(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer container.Cleanup()

			if err := container.Pod.Reset(cmd.Context(), llm.User{ID: args[0]}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "memory of %s reset\n", args[0])
			return nil
		},
	}
}

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the persisted snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := json.MarshalIndent(chatbridge.SnapshotSchema(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
