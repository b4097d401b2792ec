package output

import (
	"io"

	"go.yaml.in/yaml/v3"
)

// YAMLFormatter renders data as YAML.
type YAMLFormatter struct{}

func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	return encoder.Encode(data)
}
