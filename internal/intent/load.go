package intent

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed intents.yaml
var defaultIntents []byte

// tableFile is the on-disk shape of an intent table.
type tableFile struct {
	Intents []Intent `yaml:"intents"`
}

// LoadTable parses an ordered YAML intent list. Unknown fields are rejected.
func LoadTable(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f tableFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode intent table: %w", err)
	}
	return NewTable(f.Intents...)
}

// LoadFile reads an intent table from path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open intent table: %w", err)
	}
	defer f.Close()

	return LoadTable(f)
}

// Default returns the built-in medical intent table.
func Default() (*Table, error) {
	return LoadTable(bytes.NewReader(defaultIntents))
}
