package lumen

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest describes a plugin to the host and to the dev harness. Plugins
// ship it as plugin.yaml or plugin.json next to their entrypoint; YAML
// parsing covers both.
type Manifest struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description,omitempty"`
	Author        string   `yaml:"author,omitempty"`
	Version       string   `yaml:"version,omitempty"`
	Website       string   `yaml:"website,omitempty"`
	Language      string   `yaml:"language,omitempty"`
	Entrypoint    string   `yaml:"entrypoint"`
	IcoPath       string   `yaml:"ico_path,omitempty"`
	ActionKeyword string   `yaml:"action_keyword,omitempty"`
	Keywords      []string `yaml:"keywords,omitempty"`
}

// manifestFilenames are probed in order by LoadManifestDir.
var manifestFilenames = []string{"plugin.yaml", "plugin.yml", "plugin.json"}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", filepath.Base(path), err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", filepath.Base(path), err)
	}
	return &m, nil
}

// LoadManifestDir locates and loads the manifest inside a plugin directory.
func LoadManifestDir(dir string) (*Manifest, error) {
	for _, name := range manifestFilenames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadManifest(path)
		}
	}
	return nil, fmt.Errorf("no plugin manifest found in %s", dir)
}

// Validate checks the fields the harness and host depend on.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("missing required field: id")
	}
	if m.Name == "" {
		return fmt.Errorf("missing required field: name")
	}
	if m.Entrypoint == "" {
		return fmt.Errorf("missing required field: entrypoint")
	}
	return nil
}
