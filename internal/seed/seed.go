// Package seed loads the default category catalog
package seed

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/ledger-core/internal/ledger"
)

//go:embed defaults.yaml
var defaults []byte

type catalogFile struct {
	Groups []ledger.GroupSpec `yaml:"groups"`
}

// Defaults returns the built-in category groups
func Defaults() ([]ledger.GroupSpec, error) {
	return Parse(defaults)
}

// Load reads category groups from a YAML file, or the defaults when path is empty
func Load(path string) ([]ledger.GroupSpec, error) {
	if path == "" {
		return Defaults()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a catalog document and checks every group type
func Parse(raw []byte) ([]ledger.GroupSpec, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	for _, g := range f.Groups {
		if g.Name == "" {
			return nil, fmt.Errorf("catalog group without a name")
		}
		if !ledger.ValidCategoryType(g.Type) {
			return nil, fmt.Errorf("catalog group %q has unknown type %q", g.Name, g.Type)
		}
	}
	return f.Groups, nil
}
