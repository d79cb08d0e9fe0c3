package api

import (
	"net/http"
	"strconv"

	"github.com/lox/stockcast/internal/accuracy"
	"github.com/lox/stockcast/internal/chart"
	"github.com/lox/stockcast/internal/htmlutil"
)

// handleChart renders the trend chart for the filter in the query string. It
// does not read or update the session so chart URLs stay cacheable.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query(), accuracy.Filter{})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	key := query(f)
	if data, ok := s.charts.Get(key); ok {
		writePNG(w, data)
		return
	}

	done := recompute("chart")
	series := chart.FromTrend(accuracy.Trend(f.Apply(s.dataset.Records)))
	done()

	title := "All warehouses"
	if f.Location != "" {
		title = htmlutil.DisplayName(f.Location)
	}
	if f.Model != "" {
		title += " / " + f.Model
	}

	data, err := chart.Render(series, chart.Options{Title: title})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.charts.Set(key, data)
	writePNG(w, data)
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(data)
}
