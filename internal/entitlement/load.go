package entitlement

import (
	"fmt"
	"os"

	"github.com/dimitrije/listshub-api/internal/models"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Plans []models.Plan `yaml:"plans"`
}

// ParseCatalog decodes a YAML plan catalog. Limits accept ".inf" for unlimited.
func ParseCatalog(data []byte) ([]models.Plan, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing plan catalog: %w", err)
	}

	seen := make(map[string]bool, len(f.Plans))
	for i, p := range f.Plans {
		if p.ID == "" {
			return nil, fmt.Errorf("plan %d has no id", i)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate plan id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Perks == nil {
			f.Plans[i].Perks = []string{}
		}
	}
	if !seen[models.PlanFree] {
		return nil, fmt.Errorf("plan catalog must define the %q plan", models.PlanFree)
	}
	return f.Plans, nil
}

func LoadCatalogFile(path string) ([]models.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan catalog: %w", err)
	}
	return ParseCatalog(data)
}
