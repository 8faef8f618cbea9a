package loader

import "testing"

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		path string
		data string
		want Format
	}{
		{"yaml extension", "workflow.yaml", "nodes: {}", FormatYAML},
		{"yml extension", "workflow.yml", "nodes: {}", FormatYAML},
		{"json extension", "workflow.json", `{"nodes": {}}`, FormatJSON},
		{"uppercase extension", "WORKFLOW.YAML", "nodes: {}", FormatYAML},
		{"no extension json object", "workflow", `{"nodes": {}}`, FormatJSON},
		{"no extension json with leading space", "workflow", "\n  {\"nodes\": {}}", FormatJSON},
		{"no extension yaml", "workflow", "nodes:\n  a: 1\n", FormatYAML},
		{"unknown extension yaml", "workflow.def", "nodes: {}", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat([]byte(tt.data), tt.path); got != tt.want {
				t.Errorf("DetectFormat(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestYAMLToJSON(t *testing.T) {
	out, err := yamlToJSON([]byte("name: demo\ncount: 2\nnested:\n  flag: true\n"))
	if err != nil {
		t.Fatalf("yamlToJSON: %v", err)
	}
	want := `{"count":2,"name":"demo","nested":{"flag":true}}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestYAMLToJSONInvalid(t *testing.T) {
	if _, err := yamlToJSON([]byte("a: [unclosed")); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}
