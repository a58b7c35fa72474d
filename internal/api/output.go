package api

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// OutputFormat is how CLI commands print results.
type OutputFormat string

const (
	OutputFormatYAML OutputFormat = "yaml"
	OutputFormatJSON OutputFormat = "json"
)

// outputFormat is set by the root command's --output flag.
var outputFormat = OutputFormatYAML

// ParseOutputFormat accepts "yaml" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatYAML, OutputFormatJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (want yaml or json)", s)
}

// SetOutputFormat sets the format used by Output. Unknown names fall back to yaml.
func SetOutputFormat(format string) {
	f, err := ParseOutputFormat(format)
	if err != nil {
		f = OutputFormatYAML
	}
	outputFormat = f
}

// Output writes data to stdout in the configured format.
func Output(data any) error {
	return OutputTo(os.Stdout, outputFormat, data)
}

// OutputTo writes data to w in the given format.
func OutputTo(w io.Writer, format OutputFormat, data any) error {
	switch format {
	case OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case OutputFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
