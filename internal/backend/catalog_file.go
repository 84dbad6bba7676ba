package backend

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Regions map[string][]PlanOffering `yaml:"regions"`
}

// LoadCatalogFile reads regional plan catalogs from a YAML file of the form
//
//	regions:
//	  Delhi:
//	    - name: Premium-199
//	      price: 199
//	      data: 3GB/day
//	      validity: 28 days
func LoadCatalogFile(path string) (map[string][]PlanOffering, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	for region, plans := range f.Regions {
		for i, p := range plans {
			if p.Name == "" {
				return nil, fmt.Errorf("catalog %s entry %d: missing name", region, i)
			}
			if p.Price < 0 {
				return nil, fmt.Errorf("catalog %s plan %s: negative price", region, p.Name)
			}
		}
	}
	return f.Regions, nil
}
