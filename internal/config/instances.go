package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// InstanceSpec is one credential entry in the manifest. The same service may
// appear any number of times; each entry is an independent instance.
type InstanceSpec struct {
	Service string `yaml:"service"`
	Key     string `yaml:"key"`
}

// QuerySpec is one search query in the manifest.
type QuerySpec struct {
	Term     string `yaml:"term"`
	Location string `yaml:"location"`
}

// Manifest is the run input: ordered credential instances, the query list, and
// optional proxy endpoints. It is kept out of the viper config because
// declaration order is part of its meaning, and viper maps would collapse
// repeated service names.
type Manifest struct {
	Providers []InstanceSpec `yaml:"providers"`
	Finders   []InstanceSpec `yaml:"finders"`
	Queries   []QuerySpec    `yaml:"queries"`
	Proxies   []string       `yaml:"proxies"`
}

// LoadManifest reads and validates the instance manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read manifest %s", path)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, eris.Wrapf(err, "config: parse manifest %s", path)
	}

	if len(m.Providers) == 0 {
		return nil, eris.New("config: manifest has no search providers")
	}
	if len(m.Queries) == 0 {
		return nil, eris.New("config: manifest has no queries")
	}
	for i, spec := range append(append([]InstanceSpec{}, m.Providers...), m.Finders...) {
		if spec.Service == "" {
			return nil, eris.Errorf("config: manifest entry %d has no service", i)
		}
		if spec.Key == "" {
			return nil, eris.Errorf("config: manifest entry for %s has no key", spec.Service)
		}
	}

	return &m, nil
}

// Instances converts the manifest entries into provider instances, preserving
// declaration order. Ordinals count per service, so two yelp entries become
// yelp#1 and yelp#2.
func (m *Manifest) Instances() []model.ProviderInstance {
	out := make([]model.ProviderInstance, 0, len(m.Providers)+len(m.Finders))
	out = append(out, buildInstances(model.RoleSearchProvider, m.Providers)...)
	out = append(out, buildInstances(model.RoleEmailFinder, m.Finders)...)
	return out
}

// QueryList converts manifest query specs into model queries.
func (m *Manifest) QueryList() []model.Query {
	out := make([]model.Query, 0, len(m.Queries))
	for _, q := range m.Queries {
		out = append(out, model.Query{Term: q.Term, Location: q.Location})
	}
	return out
}

func buildInstances(role model.Role, specs []InstanceSpec) []model.ProviderInstance {
	ordinals := make(map[string]int)
	out := make([]model.ProviderInstance, 0, len(specs))
	for _, spec := range specs {
		ordinals[spec.Service]++
		out = append(out, model.ProviderInstance{
			Role:       role,
			Service:    spec.Service,
			Credential: spec.Key,
			Ordinal:    ordinals[spec.Service],
		})
	}
	return out
}
