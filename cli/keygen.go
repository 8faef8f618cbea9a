package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/millstone-labs/millflow/crypto"
)

// NewKeygenCmd creates the "keygen" subcommand, which prints a fresh master
// encryption key as hex. Workspace keys are derived from it at load time.
func NewKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a master encryption key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return exitError(exitRuntime, "generating key: %v", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(key.Bytes()))
			return nil
		},
	}
}
