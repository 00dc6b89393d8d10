package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/toolscout/agent-tools-rag/internal/core/usecase"
)

//go:embed models.yaml
var modelsYAML []byte

type catalogFile struct {
	Providers map[string]struct {
		Models []string `yaml:"models"`
	} `yaml:"providers"`
}

// ModelCatalog parses the embedded per-provider model lists. The first
// model of each provider is its default.
func ModelCatalog() (map[string]usecase.ProviderModels, error) {
	var file catalogFile
	if err := yaml.Unmarshal(modelsYAML, &file); err != nil {
		return nil, fmt.Errorf("parse model catalog: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("model catalog lists no providers")
	}

	catalog := make(map[string]usecase.ProviderModels, len(file.Providers))
	for name, entry := range file.Providers {
		if len(entry.Models) == 0 {
			return nil, fmt.Errorf("provider %q lists no models", name)
		}
		catalog[name] = usecase.ProviderModels{
			Default: entry.Models[0],
			Allowed: entry.Models,
		}
	}
	return catalog, nil
}
