// Package registry loads the set of monitored sources and creators. The
// registry file is the pipeline's systemic precondition: if it cannot be
// read, the run fails outright rather than proceeding with a partial view.
package registry

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/veridexhq/veridex/internal/model"
)

// Registry is one loaded view of the monitored entities. Reloaded at the
// start of every run so edits to the file take effect without a restart.
type Registry struct {
	sources  []model.Source
	creators []model.Creator
}

// registryFile is the YAML shape of the registry file.
type registryFile struct {
	Sources  []sourceEntry  `yaml:"sources"`
	Creators []creatorEntry `yaml:"creators"`
}

type sourceEntry struct {
	ID     string  `yaml:"id"`
	Name   string  `yaml:"name"`
	Kind   string  `yaml:"kind"`
	URL    string  `yaml:"url"`
	Handle string  `yaml:"handle"`
	Weight float64 `yaml:"weight"`
}

type creatorEntry struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Channel string `yaml:"channel"`
	Handle  string `yaml:"handle"`
}

// LoadFile reads and validates the registry YAML.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return Parse(data)
}

// Parse builds a Registry from raw YAML.
func Parse(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}

	reg := &Registry{}
	seen := make(map[string]bool)
	for _, e := range file.Sources {
		if e.ID == "" || e.URL == "" {
			return nil, fmt.Errorf("source entry needs id and url (id=%q)", e.ID)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate source id %q", e.ID)
		}
		seen[e.ID] = true
		kind, err := parseKind(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", e.ID, err)
		}
		weight := e.Weight
		if weight == 0 {
			weight = 1
		}
		reg.sources = append(reg.sources, model.Source{
			ID:     e.ID,
			Name:   e.Name,
			Kind:   kind,
			URL:    e.URL,
			Handle: e.Handle,
			Weight: weight,
		})
	}
	for _, e := range file.Creators {
		if e.ID == "" || e.Channel == "" {
			return nil, fmt.Errorf("creator entry needs id and channel (id=%q)", e.ID)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate creator id %q", e.ID)
		}
		seen[e.ID] = true
		reg.creators = append(reg.creators, model.Creator{
			ID:      e.ID,
			Name:    e.Name,
			Channel: e.Channel,
			Handle:  e.Handle,
		})
	}

	// Stable order for deterministic fan-out and ranking.
	sort.Slice(reg.sources, func(i, j int) bool { return reg.sources[i].ID < reg.sources[j].ID })
	sort.Slice(reg.creators, func(i, j int) bool { return reg.creators[i].ID < reg.creators[j].ID })
	return reg, nil
}

func parseKind(raw string) (model.SourceKind, error) {
	switch model.SourceKind(raw) {
	case model.SourcePublisher, model.SourceRegulator, model.SourceSocial:
		return model.SourceKind(raw), nil
	case "":
		return model.SourcePublisher, nil
	default:
		return "", fmt.Errorf("unknown source kind %q", raw)
	}
}

// Sources returns the monitored sources in id order.
func (r *Registry) Sources() []model.Source {
	out := make([]model.Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Creators returns the tracked creators in id order.
func (r *Registry) Creators() []model.Creator {
	out := make([]model.Creator, len(r.creators))
	copy(out, r.creators)
	return out
}

// Source looks up a source by id.
func (r *Registry) Source(id string) (model.Source, bool) {
	for _, s := range r.sources {
		if s.ID == id {
			return s, true
		}
	}
	return model.Source{}, false
}

// Creator looks up a creator by id.
func (r *Registry) Creator(id string) (model.Creator, bool) {
	for _, c := range r.creators {
		if c.ID == id {
			return c, true
		}
	}
	return model.Creator{}, false
}
