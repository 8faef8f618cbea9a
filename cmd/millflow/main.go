package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/millstone-labs/millflow/cli"
	"github.com/millstone-labs/millflow/otel"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "millflow",
	Short: "Millflow workflow engine CLI",
	Long:  "Millflow is a CLI for defining, validating, and inspecting document ingestion workflows.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

var otelShutdown func(context.Context) error

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("millflow version %s\n", version))

	rootCmd.PersistentFlags().Bool("trace", false, "Emit OpenTelemetry traces")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if enabled, _ := cmd.Flags().GetBool("trace"); enabled {
			shutdown, err := otel.Setup(cmd.Context(), "millflow", version)
			if err != nil {
				return err
			}
			otelShutdown = shutdown
		}
		return nil
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, _ []string) error {
		if otelShutdown != nil {
			return otelShutdown(cmd.Context())
		}
		return nil
	}

	rootCmd.AddCommand(cli.NewValidateCmd())
	rootCmd.AddCommand(cli.NewInspectCmd())
	rootCmd.AddCommand(cli.NewKeygenCmd())
	rootCmd.AddCommand(cli.NewConnectionsCmd())
}
