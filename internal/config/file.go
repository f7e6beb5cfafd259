package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// applyFileDefaults reads a flat YAML mapping of environment variable names
// to values and exports every key that is not already set.
//
//	APP_PORT: "3001"
//	WEBHOOK_TIMEOUT_SECONDS: 5
func applyFileDefaults(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	values := map[string]yaml.Node{}
	if err := yaml.Unmarshal(content, &values); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	for key, node := range values {
		if node.Kind != yaml.ScalarNode {
			return fmt.Errorf("config file %s: %s must be a scalar", path, key)
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, node.Value); err != nil {
			return fmt.Errorf("export %s: %w", key, err)
		}
	}
	return nil
}
