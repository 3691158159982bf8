// Package catalog resolves city names to their centre coordinates.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// ErrCityNotFound reports a lookup for a city the catalog doesn't know.
var ErrCityNotFound = errors.New("city not found in catalog")

// City is a named point on the map.
type City struct {
	Name string
	Lat  float64
	Lon  float64
}

// Catalog maps city names to centre coordinates. Load once at startup;
// the value is immutable afterwards.
type Catalog struct {
	cities map[string]City
}

// Load reads a catalog file, a JSON object keyed by city name:
//
//	{"Madrid": {"latitude": 40.4168, "longitude": -3.7038}, ...}
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}

	var raw map[string]struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	cities := make(map[string]City, len(raw))
	for name, c := range raw {
		cities[name] = City{Name: name, Lat: c.Latitude, Lon: c.Longitude}
	}
	return Catalog{cities: cities}, nil
}

// Lookup returns the city with the given name.
func (c Catalog) Lookup(name string) (City, error) {
	city, ok := c.cities[name]
	if !ok {
		return City{}, fmt.Errorf("%q: %w", name, ErrCityNotFound)
	}
	return city, nil
}

// Cities returns every known city name in sorted order.
func (c Catalog) Cities() []string {
	names := make([]string, 0, len(c.cities))
	for name := range c.cities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
