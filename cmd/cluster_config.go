package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/clustertune/clustertune/tune"
)

// ClusterConfig is the optional YAML file supplying cluster build arguments.
// The final section may be omitted, in which case the search arguments are
// reused for the returned cluster (no rebuild).
type ClusterConfig struct {
	Search tune.ClusterArgs  `yaml:"search"`
	Final  *tune.ClusterArgs `yaml:"final"`
}

// Args resolves the search/final argument pair.
func (c ClusterConfig) Args() (search, final tune.ClusterArgs) {
	if c.Final == nil {
		return c.Search, c.Search
	}
	return c.Search, *c.Final
}

// LoadClusterConfig parses a cluster-args YAML file with strict field
// checking, so a typo in a key is an error rather than a silently ignored
// setting.
func LoadClusterConfig(path string) (ClusterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ClusterConfig{}, err
	}
	var cfg ClusterConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return ClusterConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// loadClusterArgs loads the config at path, or returns empty defaults when
// no path was given.
func loadClusterArgs(path string) (search, final tune.ClusterArgs) {
	if path == "" {
		return tune.ClusterArgs{}, tune.ClusterArgs{}
	}
	cfg, err := LoadClusterConfig(path)
	if err != nil {
		logrus.Fatalf("Failed to load cluster config: %v", err)
	}
	return cfg.Args()
}
