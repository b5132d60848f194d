package kit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+">")
				resp, err := next(ctx, req)
				order = append(order, "<"+name)
				return resp, err
			}
		}
	}
	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	resp, err := Chain(mw("outer"), mw("inner"))(base)(context.Background(), nil)
	if err != nil || resp != "ok" {
		t.Fatalf("resp=%v err=%v", resp, err)
	}
	want := []string{"outer>", "inner>", "endpoint", "<inner", "<outer"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestLogging_PropagatesError(t *testing.T) {
	errFail := errors.New("fail")
	ep := Logging(nil, "x")(func(context.Context, any) (any, error) { return nil, errFail })
	if _, err := ep(context.Background(), nil); !errors.Is(err, errFail) {
		t.Fatalf("err = %v, want %v", err, errFail)
	}
}

func TestContext_RunID(t *testing.T) {
	ctx := context.Background()
	if v := GetRunID(ctx); v != "" {
		t.Fatalf("empty context: got %q", v)
	}
	ctx = WithRunID(ctx, "run_1")
	if v := GetRunID(ctx); v != "run_1" {
		t.Fatalf("after set: got %q", v)
	}
}

func TestContext_TransportDefault(t *testing.T) {
	if v := GetTransport(context.Background()); v != "cli" {
		t.Fatalf("default transport: got %q", v)
	}
	if v := GetTransport(WithTransport(context.Background(), "http")); v != "http" {
		t.Fatalf("transport: got %q", v)
	}
}

type echoRequest struct {
	Word string `json:"word"`
}

func mcpSession(t *testing.T, register func(*mcp.Server)) *mcp.ClientSession {
	t.Helper()
	impl := &mcp.Implementation{Name: "kit-test", Version: "0.1.0"}
	srv := mcp.NewServer(impl, nil)
	register(srv)

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

func TestRegisterMCPTool(t *testing.T) {
	session := mcpSession(t, func(srv *mcp.Server) {
		tool := &mcp.Tool{
			Name: "echo",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"word": map[string]any{"type": "string"}},
			},
		}
		RegisterMCPTool(srv, tool, func(ctx context.Context, req any) (any, error) {
			r := req.(*echoRequest)
			if r.Word == "" {
				return nil, errors.New("word required")
			}
			return map[string]string{"word": r.Word, "transport": GetTransport(ctx)}, nil
		}, DecodeArgs[echoRequest])
	})

	// WHAT: successful call returns the endpoint result as JSON text.
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{"word": "hi"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(res.Content[0].(*mcp.TextContent).Text), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["word"] != "hi" || out["transport"] != "mcp" {
		t.Fatalf("out = %v", out)
	}

	// WHAT: endpoint errors surface as tool errors.
	// WHY: the client must see the failure without the session breaking.
	res, err = session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "echo",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error for empty word")
	}
}
