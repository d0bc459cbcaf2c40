package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/david/procurement-scout/internal/browser"
)

// ScraperFactory maps registry ids to implementations.
type ScraperFactory struct {
	scrapers map[string]Scraper
}

func NewScraperFactory() *ScraperFactory {
	return &ScraperFactory{scrapers: make(map[string]Scraper)}
}

func (f *ScraperFactory) Register(s Scraper) {
	f.scrapers[s.ID()] = s
}

func (f *ScraperFactory) Get(id string) (Scraper, error) {
	s, ok := f.scrapers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
	}
	return s, nil
}

func (f *ScraperFactory) IDs() []string {
	ids := make([]string, 0, len(f.scrapers))
	for id := range f.scrapers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

var GlobalScraperFactory = NewScraperFactory()

func init() {
	for _, s := range []Scraper{
		newWorldBank(),
		newAfDB(),
		newEIB(),
		newAFD(),
		newIsDB(),
		newKfW(),
		newUNDP(),
		newADB(),
		newEBRD(),
		newIFC(),
		newFMO(),
		newMIGA(),
		newIDB(),
		newDeBIT(),
	} {
		GlobalScraperFactory.Register(s)
	}
}

// site carries what every scraper shares. Most sites only add Extract.
type site struct {
	id      string
	client  string
	listing Listing
	rows    string
}

func (s *site) ID() string       { return s.id }
func (s *site) Client() string   { return s.client }
func (s *site) Listing() Listing { return s.listing }

func (s *site) Enumerate(ctx context.Context, d *Deps, page browser.Page) ([]string, error) {
	return enumerateLinks(ctx, d, page, s.rows)
}
