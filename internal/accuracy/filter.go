package accuracy

import (
	"sort"
	"strings"
	"time"

	"github.com/lox/stockcast/internal/models"
)

// All is the dropdown value meaning "no constraint".
const All = "All"

// Filter narrows reconciled records. Empty or "All" selectors and zero dates
// impose no constraint. Date bounds are inclusive.
type Filter struct {
	Location string
	Model    string
	Start    time.Time
	End      time.Time
}

func unconstrained(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, All)
}

func (f Filter) Match(r models.ReconciledRecord) bool {
	if !unconstrained(f.Location) && models.NormalizeLocation(f.Location) != r.Location {
		return false
	}
	if !unconstrained(f.Model) && models.NormalizeName(f.Model) != r.Model {
		return false
	}
	if !f.Start.IsZero() && r.Period.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && r.Period.After(f.End) {
		return false
	}
	return true
}

// Apply returns the matching records in input order. The result is never nil.
func (f Filter) Apply(records []models.ReconciledRecord) []models.ReconciledRecord {
	out := make([]models.ReconciledRecord, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Locations returns the sorted distinct locations in records.
func Locations(records []models.ReconciledRecord) []string {
	return distinct(records, func(r models.ReconciledRecord) string { return r.Location })
}

// Models returns the sorted distinct non-empty model names in records.
func Models(records []models.ReconciledRecord) []string {
	return distinct(records, func(r models.ReconciledRecord) string { return r.Model })
}

func distinct(records []models.ReconciledRecord, key func(models.ReconciledRecord) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		k := key(r)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DateRange returns the earliest and latest period in records.
func DateRange(records []models.ReconciledRecord) (start, end time.Time, ok bool) {
	for i, r := range records {
		if i == 0 || r.Period.Before(start) {
			start = r.Period
		}
		if i == 0 || r.Period.After(end) {
			end = r.Period
		}
	}
	return start, end, len(records) > 0
}
