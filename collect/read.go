package collect

import (
	"context"
	"fmt"

	"github.com/striezel/corona-sub001/catalog"
)

// Read access for downstream renderers and the HTTP and MCP surfaces. All
// of it is read-only.

// Records returns the stored series of a country in date order. id may be
// any form catalog.Lookup accepts.
func (c *Collector) Records(ctx context.Context, id string) ([]DailyRecord, error) {
	co, ok := catalog.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCountry, id)
	}
	return c.store.Records(ctx, co.ID)
}

// Anomalies returns the flagged merges of a country, oldest first.
func (c *Collector) Anomalies(ctx context.Context, id string) ([]Anomaly, error) {
	co, ok := catalog.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCountry, id)
	}
	return c.store.Anomalies(ctx, co.ID)
}

// StoredCountries returns the countries registered in the store.
func (c *Collector) StoredCountries(ctx context.Context) ([]catalog.Country, error) {
	return c.store.Countries(ctx)
}

// Stats summarises the store.
func (c *Collector) Stats(ctx context.Context) (*Stats, error) {
	return c.store.Stats(ctx)
}

func parseContinent(s string) (catalog.Continent, error) {
	cont, err := catalog.ParseContinent(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnknownCountry, err)
	}
	return cont, nil
}

func filterContinent(list []catalog.Country, cont catalog.Continent) []catalog.Country {
	out := []catalog.Country{}
	for _, co := range list {
		if co.Continent == cont {
			out = append(out, co)
		}
	}
	return out
}
