package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/striezel/corona-sub001/collect/internal/store"
	"github.com/striezel/corona-sub001/dbopen"
	"github.com/striezel/corona-sub001/idgen"

	_ "modernc.org/sqlite"
)

var day0 = time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

// clock is a settable test clock.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: time.Date(2021, 3, 10, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// upstream is a fake disease.sh serving ten days (03-01..03-10) per country.
type upstream struct {
	*httptest.Server

	mu       sync.Mutex
	cases    map[string][]int64 // per upstream key, index = day offset
	hits     map[string]int
	queries  map[string][]string
	failures map[string][]int // status codes returned before succeeding
}

func newUpstream(t *testing.T, keys ...string) *upstream {
	t.Helper()
	u := &upstream{
		cases:    map[string][]int64{},
		hits:     map[string]int{},
		queries:  map[string][]string{},
		failures: map[string][]int{},
	}
	for i, k := range keys {
		series := make([]int64, 10)
		for d := range series {
			series[d] = int64(100*(i+1) + 10*d)
		}
		u.cases[k] = series
	}
	u.Server = httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) serve(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/historical/")

	u.mu.Lock()
	u.hits[key]++
	u.queries[key] = append(u.queries[key], r.URL.Query().Get("lastdays"))
	if f := u.failures[key]; len(f) > 0 {
		u.failures[key] = f[1:]
		u.mu.Unlock()
		w.WriteHeader(f[0])
		w.Write([]byte(`{"message":"failure"}`))
		return
	}
	series, ok := u.cases[key]
	series = append([]int64(nil), series...)
	u.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Country not found or doesn't have any historical data"}`))
		return
	}

	from := 0
	if n, err := strconv.Atoi(r.URL.Query().Get("lastdays")); err == nil && n < len(series) {
		from = len(series) - n
	}
	var cases, deaths []string
	for d := from; d < len(series); d++ {
		k := day0.AddDate(0, 0, d).Format("1/2/06")
		cases = append(cases, fmt.Sprintf("%q:%d", k, series[d]))
		deaths = append(deaths, fmt.Sprintf("%q:%d", k, series[d]/100))
	}
	fmt.Fprintf(w, `{"country":%q,"timeline":{"cases":{%s},"deaths":{%s},"recovered":{}}}`,
		key, strings.Join(cases, ","), strings.Join(deaths, ","))
}

func (u *upstream) setCases(key string, dayOffset int, v int64) {
	u.mu.Lock()
	u.cases[key][dayOffset] = v
	u.mu.Unlock()
}

func (u *upstream) failFirst(key string, codes ...int) {
	u.mu.Lock()
	u.failures[key] = codes
	u.mu.Unlock()
}

func (u *upstream) hitCount(key string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[key]
}

func (u *upstream) lastQuery(key string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	q := u.queries[key]
	if len(q) == 0 {
		return ""
	}
	return q[len(q)-1]
}

func testConfig(baseURL string, countries ...string) *Config {
	return &Config{
		DBPath:      ":memory:",
		Countries:   countries,
		Concurrency: 2,
		API: APIConfig{
			BaseURL:           baseURL,
			AllowPrivate:      true,
			BaseBackoff:       time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			RequestsPerSecond: -1,
		},
	}
}

func openStore(t *testing.T, clk *clock) *store.Store {
	t.Helper()
	s := store.New(dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema)))
	s.Now = clk.Now
	return s
}

func newCollector(t *testing.T, cfg *Config, st Store, clk *clock, opts ...Option) *Collector {
	t.Helper()
	all := append([]Option{
		WithStore(st),
		WithClock(clk.Now),
		WithIDGenerator(idgen.Sequence("run_")),
	}, opts...)
	c, err := New(cfg, nil, all...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// faultyStore injects errors into Upsert for chosen countries.
type faultyStore struct {
	*store.Store
	fail map[string]error

	mu       sync.Mutex
	upserted []string
}

func (f *faultyStore) Upsert(ctx context.Context, countryID string, records []store.DailyRecord) (*store.MergeResult, error) {
	f.mu.Lock()
	f.upserted = append(f.upserted, countryID)
	f.mu.Unlock()
	if err, ok := f.fail[countryID]; ok {
		return nil, err
	}
	return f.Store.Upsert(ctx, countryID, records)
}
