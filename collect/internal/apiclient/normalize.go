package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/striezel/corona-sub001/collect/internal/store"
)

// historical is one element of the upstream /historical response.
type historical struct {
	Country  string    `json:"country"`
	Timeline *timeline `json:"timeline"`
}

type timeline struct {
	Cases     map[string]json.RawMessage `json:"cases"`
	Deaths    map[string]json.RawMessage `json:"deaths"`
	Recovered map[string]json.RawMessage `json:"recovered"`
}

var errNoTimeline = errors.New("response has no timeline")

// dayCounts accumulates one date across province elements.
type dayCounts struct {
	confirmed, deaths int64
	recovered         int64
	recoveredKnown    bool
	recoveredMissing  bool
	provinces         int // elements contributing valid cases and deaths
}

// normalize turns a response body into date-sorted records, one per date.
// The body is either a single object or an array of per-province objects,
// which are summed per date. Unknown fields are ignored. A date whose cases
// or deaths are missing or malformed in any province is skipped; a
// malformed recovered value becomes unknown.
func normalize(countryID string, body []byte) ([]store.DailyRecord, error) {
	body = bytes.TrimSpace(body)
	var elems []historical
	switch {
	case len(body) > 0 && body[0] == '[':
		if err := json.Unmarshal(body, &elems); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
	default:
		var h historical
		if err := json.Unmarshal(body, &h); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		elems = []historical{h}
	}

	days := make(map[time.Time]*dayCounts)
	withTimeline := 0
	for _, h := range elems {
		if h.Timeline == nil {
			continue
		}
		withTimeline++
		for key, rawCases := range h.Timeline.Cases {
			date, ok := parseDate(key)
			if !ok {
				continue
			}
			dc := days[date]
			if dc == nil {
				dc = &dayCounts{}
				days[date] = dc
			}
			cases, ok := parseCount(rawCases)
			if !ok {
				continue
			}
			deaths, ok := parseCount(h.Timeline.Deaths[key])
			if !ok {
				continue
			}
			dc.provinces++
			dc.confirmed += cases
			dc.deaths += deaths
			if rec, ok := parseCount(h.Timeline.Recovered[key]); ok {
				dc.recovered += rec
				dc.recoveredKnown = true
			} else {
				dc.recoveredMissing = true
			}
		}
	}
	if withTimeline == 0 {
		return nil, errNoTimeline
	}

	out := make([]store.DailyRecord, 0, len(days))
	for date, dc := range days {
		// A partial provincial sum would understate the total.
		if dc.provinces < withTimeline {
			continue
		}
		r := store.DailyRecord{CountryID: countryID, Date: date, Confirmed: dc.confirmed, Deaths: dc.deaths}
		if dc.recoveredKnown && !dc.recoveredMissing {
			v := dc.recovered
			r.Recovered = &v
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// parseDate accepts the upstream "M/D/YY" keys and ISO dates.
func parseDate(key string) (time.Time, bool) {
	key = strings.TrimSpace(key)
	for _, layout := range []string{"1/2/06", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, key, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseCount reads a non-negative integer from a JSON number or numeric
// string. null, negatives, fractions and anything else are unknown.
func parseCount(raw json.RawMessage) (int64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, false
		}
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f > math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// upstreamMessage extracts {"message": "..."} from an error body.
func upstreamMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &m) == nil && m.Message != "" {
		return m.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
