package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dreamware/puppetmaster/internal/rename"
)

// ScenarioSpec names one of the built-in generators plus optional
// ShardSlots/NumHashes overrides, loaded from YAML so an operator can
// select and tune a scenario (in particular S6's ShardSlots/NumHashes
// setting) without recompiling. It carries no shard-count override; S6's
// single shard comes from the num-shards setting of the config.
type ScenarioSpec struct {
	Name       string `yaml:"name"`
	ShardSlots int    `yaml:"shard_slots,omitempty"`
	NumHashes  int    `yaml:"num_hashes,omitempty"`
}

// LoadScenarioFile reads a YAML scenario file such as:
//
//	name: s6
//	shard_slots: 8
//	num_hashes: 8
func LoadScenarioFile(path string) (ScenarioSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ScenarioSpec{}, err
	}
	var spec ScenarioSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return ScenarioSpec{}, fmt.Errorf("harness: parsing scenario file %s: %w", path, err)
	}
	return spec, nil
}

// Build dispatches to the named generator (spec.md §8's S1-S6).
func (s ScenarioSpec) Build() ([]rename.InputTransaction, error) {
	switch s.Name {
	case "s1":
		return ScenarioS1(), nil
	case "s2":
		return ScenarioS2(), nil
	case "s3":
		return ScenarioS3(), nil
	case "s4":
		return ScenarioS4(), nil
	case "s5":
		return ScenarioS5(), nil
	case "s6":
		return ScenarioS6(), nil
	default:
		return nil, fmt.Errorf("harness: unknown scenario %q", s.Name)
	}
}
