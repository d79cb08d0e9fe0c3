package api

import (
	"bytes"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/lox/stockcast/internal/accuracy"
	"github.com/lox/stockcast/internal/export"
	"github.com/lox/stockcast/internal/metrics"
)

// handleExport serves the performance table for the session's current filters.
// The format comes from the path extension.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(strings.TrimPrefix(path.Ext(r.URL.Path), "."))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	f, err := s.sessionFilter(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	summaries := accuracy.Summarize(f.Apply(s.dataset.Records), s.cfg.Bands)

	var buf bytes.Buffer
	if err := export.Write(&buf, format, summaries); err != nil {
		s.fail(w, r, fmt.Errorf("export %s: %w", format, err))
		return
	}
	metrics.ExportsTotal.WithLabelValues(string(format)).Inc()

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", format.Filename()))
	buf.WriteTo(w)
}
