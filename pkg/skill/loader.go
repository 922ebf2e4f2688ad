package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const manifestFile = "skill.yaml"

// Loader discovers skill directories under a configured set of install
// paths and parses each one's manifest. Later paths in the list
// override earlier ones on name collision, generalizing the teacher's
// bundled/plugin/personal/project precedence into an ordered,
// config-declared list (`skills.installPaths`).
type Loader struct{}

// NewLoader constructs a Loader.
func NewLoader() *Loader { return &Loader{} }

// LoadPaths loads every skill found under each of paths, in order,
// into skills. A later path's skill of the same name replaces an
// earlier one.
func (l *Loader) LoadPaths(paths []string, skills map[string]*Manifest) error {
	for _, path := range paths {
		if err := l.loadFromDirectory(path, skills); err != nil {
			return fmt.Errorf("skill: load %s: %w", path, err)
		}
	}
	return nil
}

// loadFromDirectory loads every subdirectory of dir containing a
// skill.yaml into skills, tagging each with dir as its Source.
func (l *Loader) loadFromDirectory(dir string, skills map[string]*Manifest) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		skillDir := filepath.Join(dir, entry.Name())
		manifestPath := filepath.Join(skillDir, manifestFile)
		m, err := l.parseManifestFile(manifestPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("%s: %w", manifestPath, err)
		}
		m.Source = dir
		m.Dir = skillDir
		m.LoadedAt = time.Now()
		if err := m.Validate(); err != nil {
			return err
		}
		skills[m.Name] = m
	}
	return nil
}

func (l *Loader) parseManifestFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &m, nil
}
