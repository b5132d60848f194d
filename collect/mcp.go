package collect

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/striezel/corona-sub001/kit"
)

// RegisterMCP registers the collector tools on an MCP server.
func (c *Collector) RegisterMCP(srv *mcp.Server) {
	c.registerCollectTool(srv)
	c.registerListCountriesTool(srv)
	c.registerCountryRecordsTool(srv)
	c.registerStatsTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (c *Collector) tool(srv *mcp.Server, tool *mcp.Tool, ep kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	kit.RegisterMCPTool(srv, tool, kit.Logging(c.logger, tool.Name)(ep), decode)
}

// --- collect ---

type collectRequest struct {
	Mode string `json:"mode"`
}

func (c *Collector) registerCollectTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "corona_collect",
		Description: "Run a collection over the configured countries and return the run report.",
		InputSchema: inputSchema(map[string]any{
			"mode": map[string]any{"type": "string", "enum": []any{"recent", "all"}, "description": "recent (default) catches up from the stored history, all refetches everything"},
		}, nil),
	}
	c.tool(srv, tool, func(ctx context.Context, req any) (any, error) {
		raw := req.(*collectRequest).Mode
		if raw == "" {
			raw = Recent.String()
		}
		mode, err := ParseMode(raw)
		if err != nil {
			return nil, err
		}
		return c.Collect(ctx, mode)
	}, kit.DecodeArgs[collectRequest])
}

// --- list countries ---

type listCountriesRequest struct {
	Continent string `json:"continent,omitempty"`
	Stored    bool   `json:"stored,omitempty"`
}

func (c *Collector) registerListCountriesTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "corona_list_countries",
		Description: "List the countries the collector covers, or those registered in the store.",
		InputSchema: inputSchema(map[string]any{
			"continent": map[string]any{"type": "string", "description": "Filter by continent, e.g. Africa"},
			"stored":    map[string]any{"type": "boolean", "description": "List countries registered in the store instead of the configured set"},
		}, nil),
	}
	c.tool(srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*listCountriesRequest)
		list := c.Countries()
		if r.Stored {
			var err error
			if list, err = c.StoredCountries(ctx); err != nil {
				return nil, err
			}
		}
		if r.Continent == "" {
			return list, nil
		}
		cont, err := parseContinent(r.Continent)
		if err != nil {
			return nil, err
		}
		return filterContinent(list, cont), nil
	}, kit.DecodeArgs[listCountriesRequest])
}

// --- country records ---

type countryRecordsRequest struct {
	CountryID string `json:"country_id"`
	Anomalies bool   `json:"anomalies,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type countryRecordsResponse struct {
	CountryID string        `json:"country_id"`
	Records   []DailyRecord `json:"records"`
	Anomalies []Anomaly     `json:"anomalies,omitempty"`
}

func (c *Collector) registerCountryRecordsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "corona_country_records",
		Description: "Return the stored daily records of one country, newest last.",
		InputSchema: inputSchema(map[string]any{
			"country_id": map[string]any{"type": "string", "description": "ISO 3166-1 alpha-2 code, e.g. BJ"},
			"anomalies":  map[string]any{"type": "boolean", "description": "Include flagged decreases"},
			"limit":      map[string]any{"type": "integer", "description": "Only the last N records (default all)"},
		}, []string{"country_id"}),
	}
	c.tool(srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*countryRecordsRequest)
		recs, err := c.Records(ctx, r.CountryID)
		if err != nil {
			return nil, err
		}
		if r.Limit > 0 && len(recs) > r.Limit {
			recs = recs[len(recs)-r.Limit:]
		}
		if recs == nil {
			recs = []DailyRecord{}
		}
		resp := &countryRecordsResponse{CountryID: r.CountryID, Records: recs}
		if len(recs) > 0 {
			resp.CountryID = recs[0].CountryID
		}
		if r.Anomalies {
			if resp.Anomalies, err = c.Anomalies(ctx, r.CountryID); err != nil {
				return nil, err
			}
		}
		return resp, nil
	}, kit.DecodeArgs[countryRecordsRequest])
}

// --- stats ---

func (c *Collector) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "corona_stats",
		Description: "Summarise the records store: countries, records, anomalies, per-country date ranges.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	c.tool(srv, tool, func(ctx context.Context, _ any) (any, error) {
		return c.Stats(ctx)
	}, kit.DecodeArgs[struct{}])
}
