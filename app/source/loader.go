package source

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lysyi3m/listing-comb/app/model"
)

// sourceFile is the on-disk shape of sources/<id>.yml. Pointer fields distinguish
// "not set" from zero so a file can override a single attribute of a built-in source.
type sourceFile struct {
	ID        string                `yaml:"id"`
	Name      string                `yaml:"name"`
	Kind      model.SourceKind      `yaml:"kind"`
	RateLimit *int                  `yaml:"rate_limit"`
	Enabled   *bool                 `yaml:"enabled"`
	Patterns  []model.SourcePattern `yaml:"patterns"`
}

type Loader struct {
	sourcesDir string
}

func NewLoader(sourcesDir string) *Loader {
	return &Loader{sourcesDir: sourcesDir}
}

// Run merges every YAML file of the sources directory into the registry and returns
// the number of files applied. A missing directory is not an error.
func (l *Loader) Run(registry *Registry) (int, error) {
	if _, err := os.Stat(l.sourcesDir); os.IsNotExist(err) {
		return 0, nil
	}

	files, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yml"))
	if err != nil {
		return 0, fmt.Errorf("failed to find YML files: %w", err)
	}
	yamlFiles, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yaml"))
	if err != nil {
		return 0, fmt.Errorf("failed to find YAML files: %w", err)
	}
	files = append(files, yamlFiles...)

	for _, file := range files {
		src, err := l.loadFile(file, registry)
		if err != nil {
			return 0, fmt.Errorf("error loading %s: %w", file, err)
		}
		if err := registry.Register(src); err != nil {
			return 0, fmt.Errorf("invalid source %s: %w", file, err)
		}

		slog.Debug("Source loaded", "source", src.ID, "enabled", src.Enabled, "rate_limit", src.RateLimit)
	}

	return len(files), nil
}

func (l *Loader) loadFile(path string, registry *Registry) (model.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Source{}, fmt.Errorf("failed to read file: %w", err)
	}

	var file sourceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return model.Source{}, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if file.ID == "" {
		base := filepath.Base(path)
		file.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}

	src, err := registry.Get(file.ID)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return model.Source{}, err
		}
		src = model.Source{ID: file.ID, Enabled: true, Kind: model.SourceKindProduct}
	}

	if file.Name != "" {
		src.Name = file.Name
	}
	if src.Name == "" {
		src.Name = src.ID
	}
	if file.Kind != "" {
		src.Kind = file.Kind
	}
	if file.RateLimit != nil {
		src.RateLimit = *file.RateLimit
	}
	if file.Enabled != nil {
		src.Enabled = *file.Enabled
	}
	if len(file.Patterns) > 0 {
		src.Patterns = file.Patterns
	}

	return src, nil
}
