package loader

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/millstone-labs/millflow/graph"
	"github.com/millstone-labs/millflow/workflow"
)

// LoadDefinition reads a definition file, decodes it, and validates its
// per-node parameters. Structural validation (arity, cycles, credentials)
// happens at compile time or through LoadWorkflow.
func LoadDefinition(path string) (*workflow.Definition, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from caller
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", path, err)
	}
	return ParseDefinition(data, path)
}

// ParseDefinition decodes definition bytes, using path to pick the format.
func ParseDefinition(data []byte, path string) (*workflow.Definition, error) {
	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}

	var def workflow.Definition
	if err := json.Unmarshal(jsonData, &def); err != nil {
		return nil, fmt.Errorf("%w: parsing definition: %v", workflow.ErrInvalidDefinition, err)
	}
	if err := workflow.ValidateParams(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadWorkflow loads a definition file and builds the validated workflow
// graph from it. Credential presence is not checked here; pass the graph's
// CredentialIDs to a loader when binding connections.
func LoadWorkflow(path string) (*graph.Workflow, error) {
	def, err := LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	w, err := graph.FromDefinition(def)
	if err != nil {
		return nil, err
	}
	if err := w.Validate(nil); err != nil {
		return nil, err
	}
	return w, nil
}

// SaveDefinition writes a definition to path as indented JSON.
func SaveDefinition(path string, def *workflow.Definition) error {
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding definition: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	return nil
}
