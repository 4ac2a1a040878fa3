// Package catalog answers location queries against the local server snapshot.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"vanish/internal/model"
)

var (
	// ErrNoSnapshot means the snapshot file has not been written yet.
	ErrNoSnapshot = errors.New("no server snapshot, run a status sync first")
	// ErrNoMatchingServers is returned by operations that need a server when
	// the filters leave none.
	ErrNoMatchingServers = errors.New("no servers match the given filters")
)

// Catalog is an immutable, ordered collection of servers. Queries scan
// linearly; the collection holds a few hundred records.
type Catalog struct {
	servers []model.Server
}

func New(servers []model.Server) *Catalog {
	return &Catalog{servers: append([]model.Server(nil), servers...)}
}

// Load reads the snapshot file written by the status sync.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoSnapshot)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var servers []model.Server
	if err := json.Unmarshal(data, &servers); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &Catalog{servers: servers}, nil
}

func (c *Catalog) Len() int { return len(c.servers) }

// Servers returns every server passing f, in snapshot order.
func (c *Catalog) Servers(f Filter) []model.Server {
	out := make([]model.Server, 0, len(c.servers))
	for _, s := range c.servers {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Continents maps continent codes to names.
func (c *Catalog) Continents() map[string]string {
	return firstNames(c.servers, func(s model.Server) (string, string) {
		return s.ContinentCode, s.Continent
	})
}

// Countries maps country codes to names, restricted to the given continents.
func (c *Catalog) Countries(continents []string) map[string]string {
	servers := c.Servers(Filter{Continents: continents})
	return firstNames(servers, func(s model.Server) (string, string) {
		return s.CountryCode, s.Country
	})
}

// Regions maps region codes to names, restricted to the given continents and
// countries.
func (c *Catalog) Regions(continents, countries []string) map[string]string {
	servers := c.Servers(Filter{Continents: continents, Countries: countries})
	return firstNames(servers, func(s model.Server) (string, string) {
		return s.RegionCode, s.Region
	})
}

// Cities returns the distinct city names, in first-seen order, restricted to
// the given continents, countries and regions.
func (c *Catalog) Cities(continents, countries, regions []string) []string {
	servers := c.Servers(Filter{Continents: continents, Countries: countries, Regions: regions})

	seen := make(map[string]struct{})
	var cities []string
	for _, s := range servers {
		if _, ok := seen[s.City]; ok {
			continue
		}
		seen[s.City] = struct{}{}
		cities = append(cities, s.City)
	}
	return cities
}

// Lookup finds a server by its canonical handle, ignoring case.
func (c *Catalog) Lookup(handle string) (model.Server, error) {
	handle = strings.ToLower(strings.TrimSuffix(handle, ".ovpn"))
	for _, s := range c.servers {
		if s.Handle() == handle {
			return s, nil
		}
	}
	return model.Server{}, fmt.Errorf("server %q: %w", handle, ErrNoMatchingServers)
}

// firstNames keeps the first name seen for each code. Upstream data that
// pairs one code with several names resolves to the earliest record.
func firstNames(servers []model.Server, key func(model.Server) (string, string)) map[string]string {
	names := make(map[string]string)
	for _, s := range servers {
		code, name := key(s)
		if _, ok := names[code]; !ok {
			names[code] = name
		}
	}
	return names
}
