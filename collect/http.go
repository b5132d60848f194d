package collect

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/striezel/corona-sub001/catalog"
	"github.com/striezel/corona-sub001/collect/internal/precheck"
	"github.com/striezel/corona-sub001/kit"
	"github.com/striezel/corona-sub001/shield"
)

// Handler exposes the store read-only over HTTP, plus a collect trigger:
//
//	GET  /health
//	GET  /api/countries                 configured countries
//	GET  /api/countries/{id}/records    stored series
//	GET  /api/countries/{id}/anomalies  flagged merges
//	GET  /api/stats
//	POST /api/collect?mode=recent|all   runs synchronously, returns the RunReport
func (c *Collector) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	for _, mw := range shield.APIStack(c.logger) {
		r.Use(mw)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		st := c.Precheck(r.Context())
		code := http.StatusOK
		if st.Level == precheck.LevelFatal {
			code = http.StatusServiceUnavailable
		}
		body := map[string]any{
			"status":    st.Level,
			"sqlite":    st.Version,
			"message":   st.Message,
			"countries": len(c.countries),
			"catalog":   catalog.Len(),
		}
		if up := c.UpstreamState(); up != "" {
			body["upstream"] = up
		}
		writeJSON(w, code, body)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/countries", func(w http.ResponseWriter, r *http.Request) {
			list := c.Countries()
			if q := r.URL.Query().Get("continent"); q != "" {
				cont, err := parseContinent(q)
				if err != nil {
					writeError(w, http.StatusBadRequest, err)
					return
				}
				list = filterContinent(list, cont)
			}
			writeJSON(w, http.StatusOK, list)
		})

		r.Get("/countries/{id}/records", func(w http.ResponseWriter, r *http.Request) {
			recs, err := c.Records(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			if recs == nil {
				recs = []DailyRecord{}
			}
			writeJSON(w, http.StatusOK, recs)
		})

		r.Get("/countries/{id}/anomalies", func(w http.ResponseWriter, r *http.Request) {
			list, err := c.Anomalies(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			if list == nil {
				list = []Anomaly{}
			}
			writeJSON(w, http.StatusOK, list)
		})

		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			st, err := c.Stats(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, st)
		})

		r.Post("/collect", func(w http.ResponseWriter, r *http.Request) {
			raw := r.URL.Query().Get("mode")
			if raw == "" {
				raw = Recent.String()
			}
			mode, err := ParseMode(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			ctx := kit.WithTransport(r.Context(), "http")
			report, err := c.Collect(ctx, mode)
			if err != nil {
				writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "report": report})
				return
			}
			writeJSON(w, http.StatusOK, report)
		})
	})
	return r
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnknownCountry):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidMode):
		return http.StatusBadRequest
	case errors.Is(err, ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrPrecheckFatal):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
