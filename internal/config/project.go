package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfig is the optional per-application wam.yml found at the root of
// a fetched source tree. It seeds defaults at create time only: the values
// are copied into the application record once and never re-read implicitly.
type ProjectConfig struct {
	Type         string            `yaml:"type"`
	Port         int               `yaml:"port"`
	BuildCommand string            `yaml:"build_command"`
	StartCommand string            `yaml:"start_command"`
	HealthCheck  string            `yaml:"health_check"`
	Env          map[string]string `yaml:"env"`
}

var projectConfigNames = []string{"wam.yml", "wam.yaml"}

// LoadProject reads the project config from a source tree root. A missing
// file returns (nil, nil); a malformed one is an error so a typo does not
// silently deploy with the wrong commands.
func LoadProject(root string) (*ProjectConfig, error) {
	for _, name := range projectConfigNames {
		data, err := os.ReadFile(filepath.Join(root, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		var pc ProjectConfig
		if err := yaml.Unmarshal(data, &pc); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", name, err)
		}
		if pc.Port < 0 || pc.Port > 65535 {
			return nil, fmt.Errorf("invalid %s: port %d out of range", name, pc.Port)
		}
		return &pc, nil
	}
	return nil, nil
}
