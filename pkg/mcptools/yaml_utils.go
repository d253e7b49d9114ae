package mcptools

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalYAML converts a Go value into a YAML string. Stats and other
// deeply nested maps read better as YAML than TOON, so those handlers use
// this instead of MarshalTOON. On failure, it returns a human-friendly
// error string so MCP tools still provide feedback instead of silently
// failing.
func MarshalYAML(data interface{}) string {
	b, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Sprintf("error: failed to marshal to YAML: %v", err)
	}
	return string(b)
}
