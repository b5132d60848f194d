package collect

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func mcpSession(t *testing.T, c *Collector) *mcp.ClientSession {
	t.Helper()
	impl := &mcp.Implementation{Name: "corona-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	c.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	session, err := mcp.NewClient(impl, nil).Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, s *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if out != nil && !res.IsError {
		text := res.Content[0].(*mcp.TextContent).Text
		if err := json.Unmarshal([]byte(text), out); err != nil {
			t.Fatalf("%s: decode %q: %v", name, text, err)
		}
	}
	return res
}

func TestMCP_Tools(t *testing.T) {
	up := newUpstream(t, "BJ", "TD", "DE")
	clk := newClock()
	c := newCollector(t, testConfig(up.URL, "BJ", "TD", "DE"), openStore(t, clk), clk)
	s := mcpSession(t, c)

	tools, err := s.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tools.Tools) != 4 {
		t.Fatalf("tools = %d, want 4", len(tools.Tools))
	}

	var report struct {
		Succeeded           int `json:"succeeded"`
		TotalRecordsWritten int `json:"total_records_written"`
	}
	callTool(t, s, "corona_collect", map[string]any{"mode": "recent"}, &report)
	if report.Succeeded != 3 || report.TotalRecordsWritten != 30 {
		t.Fatalf("report = %+v", report)
	}

	var countries []struct {
		ID string `json:"id"`
	}
	callTool(t, s, "corona_list_countries", map[string]any{"continent": "Africa", "stored": true}, &countries)
	if len(countries) != 2 || countries[0].ID != "BJ" {
		t.Fatalf("countries = %+v", countries)
	}

	var records countryRecordsResponse
	callTool(t, s, "corona_country_records", map[string]any{"country_id": "td", "limit": 3, "anomalies": true}, &records)
	if records.CountryID != "TD" || len(records.Records) != 3 || len(records.Anomalies) != 0 {
		t.Fatalf("records = %+v", records)
	}
	if got := records.Records[2].Date.Format("2006-01-02"); got != "2021-03-10" {
		t.Fatalf("last record date = %s", got)
	}

	var st Stats
	callTool(t, s, "corona_stats", nil, &st)
	if st.Records != 30 || st.CountriesWithData != 3 {
		t.Fatalf("stats = %+v", st)
	}

	// WHAT: omitting mode runs a recent collection.
	var again struct {
		Mode string `json:"mode"`
	}
	if res := callTool(t, s, "corona_collect", map[string]any{}, &again); res.IsError || again.Mode != "recent" {
		t.Fatalf("collect without mode: error=%v mode=%q", res.IsError, again.Mode)
	}
}

func TestMCP_ToolErrors(t *testing.T) {
	clk := newClock()
	c := newCollector(t, testConfig("http://203.0.113.1", "BJ"), openStore(t, clk), clk)
	s := mcpSession(t, c)

	if res := callTool(t, s, "corona_collect", map[string]any{"mode": "weekly"}, nil); !res.IsError {
		t.Fatal("invalid mode accepted")
	}
	if res := callTool(t, s, "corona_collect", map[string]any{"mode": "full"}, nil); !res.IsError {
		t.Fatal("mode alias accepted")
	}
	if res := callTool(t, s, "corona_country_records", map[string]any{"country_id": "ZZ"}, nil); !res.IsError {
		t.Fatal("unknown country accepted")
	}
	if res := callTool(t, s, "corona_list_countries", map[string]any{"continent": "atlantis"}, nil); !res.IsError {
		t.Fatal("unknown continent accepted")
	}
}
