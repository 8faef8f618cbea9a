// Package loader reads workflow definition files. Definitions are stored as
// JSON or YAML; YAML is converted to JSON and decoded through the same
// envelope codecs as the wire format.
package loader

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies how a definition file is encoded.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat picks the encoding for a definition file. The extension
// decides when it is recognized; otherwise the content is sniffed, treating
// anything that starts like a JSON document as JSON.
func DetectFormat(data []byte, path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	trimmed := strings.TrimLeft(string(data), " \t\r\n")
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return FormatJSON
	}
	return FormatYAML
}

// yamlToJSON re-encodes YAML as JSON so one set of codecs handles both
// formats: YAML -> map[string]any -> JSON bytes -> typed struct.
func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	return json.Marshal(raw)
}

// toJSON normalizes file content to JSON bytes.
func toJSON(data []byte, path string) ([]byte, error) {
	if DetectFormat(data, path) == FormatYAML {
		return yamlToJSON(data)
	}
	return data, nil
}
