package ingest

import (
	"github.com/lox/stockcast/internal/models"
)

type field string

const (
	fieldLocation field = "location"
	fieldPeriod   field = "period"
	fieldQuantity field = "quantity"
	fieldModel    field = "model"
	fieldPoint    field = "point"
	fieldLower    field = "lower"
	fieldUpper    field = "upper"
	fieldActual   field = "actual"
)

// aliases maps each canonical field to the header names it is known by.
// Headers are compared after trimming and lower-casing.
var aliases = map[field][]string{
	fieldLocation: {"nearest_warehouse", "warehouse", "location"},
	fieldPeriod:   {"date", "week", "period"},
	fieldQuantity: {"total_quantity", "quantity", "qty", "sales"},
	fieldModel:    {"model", "model_variant"},
	fieldPoint:    {"forecast", "yhat", "point"},
	fieldLower:    {"lower_95", "lower", "yhat_lower"},
	fieldUpper:    {"upper_95", "upper", "yhat_upper"},
	fieldActual:   {"actual", "y"},
}

var aliasIndex = func() map[string]field {
	idx := make(map[string]field)
	for f, names := range aliases {
		for _, n := range names {
			idx[n] = f
		}
	}
	return idx
}()

// header records the column index of each canonical field found in a header
// row. When two columns alias the same field, the first one wins.
type header struct {
	cols  map[field]int
	names map[field]string
}

func mapHeader(row []string) header {
	h := header{cols: make(map[field]int), names: make(map[field]string)}
	for i, raw := range row {
		name := models.NormalizeName(stripBOM(raw))
		f, ok := aliasIndex[name]
		if !ok {
			continue
		}
		if _, seen := h.cols[f]; seen {
			continue
		}
		h.cols[f] = i
		h.names[f] = name
	}
	return h
}

func (h header) has(f field) bool {
	_, ok := h.cols[f]
	return ok
}

// value returns the cell for f, or "" when the column is absent or the row is short.
func (h header) value(row []string, f field) string {
	i, ok := h.cols[f]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// column returns the header name used for f, for error messages.
func (h header) column(f field) string {
	if n, ok := h.names[f]; ok {
		return n
	}
	return aliases[f][0]
}

func stripBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}
