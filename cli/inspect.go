package cli

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/millstone-labs/millflow/graph"
	"github.com/millstone-labs/millflow/loader"
	"github.com/millstone-labs/millflow/workflow"
)

// NewInspectCmd creates the "inspect" subcommand.
func NewInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the structure of a workflow definition",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	out := cmd.OutOrStdout()

	if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
		return exitError(exitFileNotFound, "file not found: %s", filePath)
	}

	def, err := loader.LoadDefinition(filePath)
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}
	w, err := graph.FromDefinition(def)
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}

	if def.Metadata.Name != "" {
		fmt.Fprintf(out, "Workflow: %s", def.Metadata.Name)
		if def.Metadata.Version != "" {
			fmt.Fprintf(out, " (version %s)", def.Metadata.Version)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Nodes: %d  Edges: %d\n", len(def.Nodes), len(def.Edges))

	ids := make([]workflow.NodeID, 0, len(def.Nodes))
	for id := range def.Nodes {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b workflow.NodeID) int {
		return strings.Compare(a.String(), b.String())
	})
	for _, id := range ids {
		node := def.Nodes[id]
		label := kindLabel(node.Kind)
		if node.Name != "" {
			fmt.Fprintf(out, "  %s  %-24s %s\n", shortID(id.String()), label, node.Name)
		} else {
			fmt.Fprintf(out, "  %s  %s\n", shortID(id.String()), label)
		}
	}

	if len(def.Edges) > 0 {
		fmt.Fprintln(out, "Edges:")
		for _, e := range def.Edges {
			arrow := "->"
			if e.FromPort != "" {
				arrow = "-[" + e.FromPort + "]->"
			}
			fmt.Fprintf(out, "  %s %s %s\n", shortID(e.From.String()), arrow, shortID(e.To.String()))
		}
	}

	creds := w.CredentialIDs()
	if len(creds) > 0 {
		fmt.Fprintf(out, "Credentials: %d\n", len(creds))
		for _, id := range creds {
			fmt.Fprintf(out, "  %s\n", id)
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
