// Package cli implements the millflow command line interface.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/millstone-labs/millflow/graph"
	"github.com/millstone-labs/millflow/loader"
	"github.com/millstone-labs/millflow/workflow"
)

// NewValidateCmd creates the "validate" subcommand.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a workflow definition without compiling it",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	cmd.Flags().String("format", "text", "Output format: text | json")

	return cmd
}

// validationReport is the JSON shape of a validate run.
type validationReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	report := validateFile(filePath)
	if report == nil {
		return exitError(exitFileNotFound, "file not found: %s", filePath)
	}

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return exitError(exitRuntime, "encoding report: %v", err)
		}
	} else {
		printReportText(out, report)
	}

	if !report.Valid {
		return exitError(exitValidation, "validation failed")
	}
	return nil
}

// validateFile runs definition and graph validation, collecting every error
// it can reach. Nil means the file does not exist.
func validateFile(path string) *validationReport {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	report := &validationReport{Errors: []string{}}
	def, err := loader.LoadDefinition(path)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}

	w, err := graph.FromDefinition(def)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	if err := w.Validate(nil); err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}

	report.Valid = true
	return report
}

func printReportText(w io.Writer, report *validationReport) {
	for _, msg := range report.Errors {
		fmt.Fprintf(w, "ERROR: %s\n", msg)
	}
	if report.Valid {
		fmt.Fprintln(w, "Valid!")
	} else {
		fmt.Fprintf(w, "\n%d %s\n", len(report.Errors), pluralize("error", len(report.Errors)))
	}
}

func pluralize(word string, count int) string {
	if count == 1 {
		return word
	}
	return word + "s"
}

// kindLabel names a node kind for display.
func kindLabel(k workflow.Kind) string {
	switch k := k.(type) {
	case workflow.ProviderInput:
		return "provider_input"
	case workflow.CacheInput:
		return "cache_input(" + k.Slot + ")"
	case workflow.ProviderOutput:
		return "provider_output"
	case workflow.CacheOutput:
		return "cache_output(" + k.Slot + ")"
	case workflow.Transform:
		return "transform"
	case workflow.Switch:
		return "switch"
	}
	return "unknown"
}
