package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultMirrorInterval = 30 * time.Second

// DatabaseConfig describes one served database. Exactly one of Directory and
// File is set.
type DatabaseConfig struct {
	Directory string        `yaml:"directory"`
	File      string        `yaml:"file"`
	Watch     bool          `yaml:"watch"`
	HTTPFS    bool          `yaml:"httpfs"`
	Mirror    *MirrorConfig `yaml:"mirror"`
}

// MirrorConfig copies objects under Prefix into the database directory.
type MirrorConfig struct {
	Prefix   string        `yaml:"prefix"`
	Interval time.Duration `yaml:"interval"`
}

type databasesFile struct {
	Databases map[string]DatabaseConfig `yaml:"databases"`
}

var databaseNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// LoadDatabases reads a YAML database map from path.
func LoadDatabases(path string) (map[string]DatabaseConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read databases file: %w", err)
	}
	databases, err := ParseDatabases(raw)
	if err != nil {
		return nil, fmt.Errorf("parse databases file %s: %w", path, err)
	}
	return databases, nil
}

// ParseDatabases decodes and validates a YAML database map.
func ParseDatabases(raw []byte) (map[string]DatabaseConfig, error) {
	var file databasesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if len(file.Databases) == 0 {
		return nil, errors.New("no databases configured")
	}
	for name, database := range file.Databases {
		if !databaseNamePattern.MatchString(name) {
			return nil, fmt.Errorf("invalid database name %q", name)
		}
		if err := database.validate(); err != nil {
			return nil, fmt.Errorf("database %s: %w", name, err)
		}
		if database.Mirror != nil && database.Mirror.Interval == 0 {
			database.Mirror.Interval = defaultMirrorInterval
		}
		file.Databases[name] = database
	}
	return file.Databases, nil
}

func (d DatabaseConfig) validate() error {
	switch {
	case d.Directory == "" && d.File == "":
		return errors.New("one of directory or file is required")
	case d.Directory != "" && d.File != "":
		return errors.New("directory and file are mutually exclusive")
	case d.File != "" && d.Watch:
		return errors.New("watch requires directory mode")
	case d.File != "" && d.Mirror != nil:
		return errors.New("mirror requires directory mode")
	case d.Mirror != nil && d.Mirror.Interval < 0:
		return errors.New("mirror interval must not be negative")
	}
	return nil
}
