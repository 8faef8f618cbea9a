package cli

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/millstone-labs/millflow/config"
	"github.com/millstone-labs/millflow/connection"
	"github.com/millstone-labs/millflow/store"
)

const listPageSize = 200

// NewConnectionsCmd creates the "connections" subcommand group for working
// with the encrypted connection store.
func NewConnectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connections",
		Short: "Manage stored provider connections",
	}
	cmd.AddCommand(newConnectionsListCmd())
	return cmd
}

func newConnectionsListCmd() *cobra.Command {
	var (
		workspace   string
		masterKey   string
		databaseURL string
		sqlitePath  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a workspace's connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := config.Flags{
				MasterKey:   masterKey,
				DatabaseURL: databaseURL,
				SQLitePath:  sqlitePath,
			}
			return runConnectionsList(cmd, workspace, flags)
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace id (required)")
	cmd.Flags().StringVar(&masterKey, "master-key", "", "hex master encryption key")
	cmd.Flags().StringVar(&databaseURL, "database-url", "", "postgres connection string")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "path to a sqlite connection store")
	_ = cmd.MarkFlagRequired("workspace")

	return cmd
}

func runConnectionsList(cmd *cobra.Command, workspace string, flags config.Flags) error {
	workspaceID, err := uuid.Parse(workspace)
	if err != nil {
		return exitError(exitValidation, "invalid workspace id %q: %v", workspace, err)
	}

	cfg, err := config.Resolve(flags)
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}
	key, err := cfg.ResolveMasterKey()
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}

	ctx := cmd.Context()

	var (
		st     connection.Store
		closer io.Closer
	)
	switch {
	case cfg.DatabaseURL != "":
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, nil)
		if err != nil {
			return exitError(exitRuntime, "opening postgres store: %v", err)
		}
		st, closer = pg, pg
	case cfg.SQLitePath != "":
		sq, err := store.OpenSQLite(cfg.SQLitePath, nil)
		if err != nil {
			return exitError(exitRuntime, "opening sqlite store: %v", err)
		}
		st, closer = sq, sq
	default:
		return exitError(exitValidation, "no store configured: set --database-url or --sqlite")
	}
	defer closer.Close()

	loader := connection.NewLoader(st, key, nil)
	out := cmd.OutOrStdout()

	count := 0
	for offset := 0; ; offset += listPageSize {
		records, err := st.ListWorkspaceConnections(ctx, workspaceID, listPageSize, offset)
		if err != nil {
			return exitError(exitRuntime, "listing connections: %v", err)
		}
		for _, record := range records {
			conn, err := loader.LoadConnection(ctx, record.ID)
			if err != nil {
				return exitError(exitRuntime, "loading connection %s: %v", record.ID, err)
			}
			fmt.Fprintf(out, "%s  %s\n", record.ID, connection.Describe(conn))
			count++
		}
		if len(records) < listPageSize {
			break
		}
	}

	fmt.Fprintf(out, "%d %s in workspace %s\n", count, pluralize("connection", count), workspaceID)
	return nil
}
