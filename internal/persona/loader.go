package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPools reads a template pack from a YAML file. The file must carry
// every pool; there is no merging with the built-in defaults.
func LoadPools(path string) (Pools, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pools{}, fmt.Errorf("read persona file: %w", err)
	}
	var p Pools
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Pools{}, fmt.Errorf("parse persona file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Pools{}, fmt.Errorf("persona file %s: %w", path, err)
	}
	return p, nil
}
