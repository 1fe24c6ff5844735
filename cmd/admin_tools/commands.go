package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/2beens/contactdesk/internal"
	"github.com/2beens/contactdesk/internal/config"
	"github.com/2beens/contactdesk/internal/store"
	"github.com/2beens/contactdesk/pkg"
)

const commandTimeout = 30 * time.Second

type rootOptions struct {
	env        string
	configPath string
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "admin_tools",
		Short:         "contactdesk admin tools",
		Long:          "Maintenance commands for the contactdesk store: hash passwords, create admins, list contact messages.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVar(&opts.env, "env", "development", "environment [prod | production | dev | development]")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "./config.toml", "path for the TOML config file")

	rootCmd.AddCommand(
		newHashPasswordCmd(),
		newCreateAdminCmd(opts),
		newMessagesCmd(opts),
	)

	return rootCmd
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print the bcrypt hash of a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := pkg.HashPassword(args[0])
			if err != nil {
				return fmt.Errorf("hash password: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}

func newCreateAdminCmd(opts *rootOptions) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a new admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return errors.New("both --username and --password are required")
			}

			return withStore(cmd.Context(), opts, func(ctx context.Context, s store.Store) error {
				hash, err := pkg.HashPassword(password)
				if err != nil {
					return fmt.Errorf("hash password: %w", err)
				}

				admin, err := s.CreateAdmin(ctx, username, hash)
				if err != nil {
					if errors.Is(err, store.ErrConflict) {
						return fmt.Errorf("admin %q already exists", username)
					}
					return fmt.Errorf("create admin: %w", err)
				}

				_, err = fmt.Fprintf(cmd.OutOrStdout(), "admin %q created with id %d\n", admin.Username, admin.ID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&password, "password", "", "admin password")

	return cmd
}

func newMessagesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "messages",
		Short: "List all contact messages, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), opts, func(ctx context.Context, s store.Store) error {
				messages, err := s.ListContactMessages(ctx)
				if err != nil {
					return fmt.Errorf("list contact messages: %w", err)
				}
				renderMessagesTable(cmd.OutOrStdout(), messages)
				return nil
			})
		},
	}
}

// withStore loads the config, opens the store with its schema in place and
// closes it once fn returns.
func withStore(ctx context.Context, opts *rootOptions, fn func(ctx context.Context, s store.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cfg, err := config.Load(opts.env, opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	s, _, err := internal.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = s.Close()
	}()

	if err := s.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	return fn(ctx, s)
}

func renderMessagesTable(out io.Writer, messages []*store.ContactMessage) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"ID", "Received", "Name", "Email", "Phone", "Message"})
	for _, m := range messages {
		t.AppendRow(table.Row{
			m.ID,
			m.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			m.Name,
			m.Email,
			m.Phone,
			m.Message,
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", len(messages)})
	t.Render()
}
