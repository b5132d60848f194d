// Package catalog is the fixed registry of countries and territories the
// collector knows how to fetch. The table is built once at init and never
// mutated; every accessor returns copies.
package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Continent groups countries for filtering and display.
type Continent string

const (
	Africa       Continent = "Africa"
	Asia         Continent = "Asia"
	Europe       Continent = "Europe"
	NorthAmerica Continent = "North America"
	SouthAmerica Continent = "South America"
	Oceania      Continent = "Oceania"
)

// Continents lists every continent in display order.
var Continents = []Continent{Africa, Asia, Europe, NorthAmerica, SouthAmerica, Oceania}

// ParseContinent matches a continent name case-insensitively. Underscores
// and hyphens stand for spaces, so "north_america" is accepted.
func ParseContinent(s string) (Continent, error) {
	norm := strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSpace(s))
	for _, c := range Continents {
		if strings.EqualFold(string(c), norm) {
			return c, nil
		}
	}
	return "", fmt.Errorf("catalog: unknown continent %q", s)
}

// Country is one collectable country or territory.
type Country struct {
	ID          string    `json:"id"` // ISO 3166-1 alpha-2
	Name        string    `json:"name"`
	Continent   Continent `json:"continent"`
	UpstreamKey string    `json:"upstream_key"` // path segment sent to the statistics API
}

var (
	entries []Country
	byID    map[string]int
)

// aliases maps informal or legacy codes onto catalog IDs.
var aliases = map[string]string{
	"UK":  "GB",
	"EL":  "GR", // Eurostat code for Greece
	"USA": "US",
	"UAE": "AE",
	"KOS": "XK",
}

func init() {
	entries = make([]Country, 0, len(table))
	byID = make(map[string]int, len(table))
	for _, r := range table {
		c := Country{ID: r.id, Name: r.name, Continent: r.continent, UpstreamKey: r.upstream}
		if c.UpstreamKey == "" {
			c.UpstreamKey = c.ID
		}
		byID[c.ID] = len(entries)
		entries = append(entries, c)
	}
}

// Entries returns all countries in registration order.
func Entries() []Country {
	out := make([]Country, len(entries))
	copy(out, entries)
	return out
}

// Len is the number of registered countries.
func Len() int { return len(entries) }

// Lookup finds a country by ID (case-insensitive) or by a known alias.
func Lookup(id string) (Country, bool) {
	key := strings.ToUpper(strings.TrimSpace(id))
	if a, ok := aliases[key]; ok {
		key = a
	}
	i, ok := byID[key]
	if !ok {
		return Country{}, false
	}
	return entries[i], true
}

// ByContinent returns the countries of continent in registration order.
func ByContinent(continent Continent) []Country {
	var out []Country
	for _, c := range entries {
		if c.Continent == continent {
			out = append(out, c)
		}
	}
	return out
}

// Filter returns the countries named by ids in registration order, each at
// most once. An empty ids slice selects every country. Unknown IDs are an
// error listing all of them.
func Filter(ids []string) ([]Country, error) {
	if len(ids) == 0 {
		return Entries(), nil
	}
	want := make(map[string]bool, len(ids))
	var unknown []string
	for _, id := range ids {
		c, ok := Lookup(id)
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		want[c.ID] = true
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("catalog: unknown country id(s): %s", strings.Join(unknown, ", "))
	}
	out := make([]Country, 0, len(want))
	for _, c := range entries {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out, nil
}
