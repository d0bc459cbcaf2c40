package ingest

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/sources.yaml
var sourcesYAML embed.FS

// Registry lists every site the sweep may visit, in sweep order.
type Registry struct {
	Sources []SourceEntry `yaml:"sources"`
}

type SourceEntry struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Client   string `yaml:"client"`
	Enabled  bool   `yaml:"enabled"`
	MaxPages int    `yaml:"max_pages,omitempty"` // 0 means until the listing runs out
	Schedule string `yaml:"schedule,omitempty"`  // extra cron spec for this site alone
}

// LoadRegistry reads the embedded sources.yaml, or path when it is set.
func LoadRegistry(path string) (*Registry, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = sourcesYAML.ReadFile("config/sources.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	seen := make(map[string]bool, len(reg.Sources))
	for _, s := range reg.Sources {
		if s.ID == "" {
			return nil, fmt.Errorf("source without id")
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
	}
	if err := reg.syncClients(GlobalScraperFactory); err != nil {
		return nil, err
	}
	return &reg, nil
}

// syncClients fills an empty client from the registered scraper and rejects
// one that disagrees with it. Saved records always carry the scraper's client.
func (r *Registry) syncClients(f *ScraperFactory) error {
	for i := range r.Sources {
		entry := &r.Sources[i]
		s, err := f.Get(entry.ID)
		if err != nil {
			continue
		}
		switch entry.Client {
		case "":
			entry.Client = s.Client()
		case s.Client():
		default:
			return fmt.Errorf("source %q: client %q does not match scraper client %q", entry.ID, entry.Client, s.Client())
		}
	}
	return nil
}

func (r *Registry) Enabled() []SourceEntry {
	var out []SourceEntry
	for _, s := range r.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

func (r *Registry) Get(id string) (SourceEntry, bool) {
	for _, s := range r.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return SourceEntry{}, false
}
