package ingest

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lox/stockcast/internal/models"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

var errMissingColumn = errors.New("required column not found")

// ParseStats counts rows seen while parsing one source.
type ParseStats struct {
	Rows    int            // data rows kept
	Skipped int            // rows dropped because a required value was empty
	Flagged int            // kept rows carrying at least one quality flag
	Flags   map[string]int // count per flag
}

func (s *ParseStats) flag(flags []string) {
	if len(flags) == 0 {
		return
	}
	s.Flagged++
	if s.Flags == nil {
		s.Flags = make(map[string]int)
	}
	for _, f := range flags {
		s.Flags[f]++
	}
}

// ParseDate accepts ISO dates, slash dates (day first when the year is last)
// and RFC3339 timestamps. The result is the UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return cr
}

func readHeader(cr *csv.Reader, source string) (header, error) {
	row, err := cr.Read()
	if err == io.EOF {
		return header{}, fmt.Errorf("read %s header: %w", source, ErrNoData)
	}
	if err != nil {
		return header{}, fmt.Errorf("read %s header: %w", source, err)
	}
	return mapHeader(row), nil
}

func requireColumns(h header, source string, fields ...field) error {
	for _, f := range fields {
		if !h.has(f) {
			return &models.MalformedInputError{Source: source, Column: aliases[f][0], Err: errMissingColumn}
		}
	}
	return nil
}

// ParseObservations reads weekly sales rows. Rows with an empty quantity are
// skipped; unparseable values fail the whole source.
func ParseObservations(r io.Reader, source string) ([]models.Observation, ParseStats, error) {
	var stats ParseStats

	cr := newCSVReader(r)
	h, err := readHeader(cr, source)
	if err != nil {
		return nil, stats, err
	}
	if err := requireColumns(h, source, fieldLocation, fieldPeriod, fieldQuantity); err != nil {
		return nil, stats, err
	}

	var out []models.Observation
	for rowNum := 1; ; rowNum++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("read %s row %d: %w", source, rowNum, err)
		}

		period, err := parsePeriod(h, row, source, rowNum)
		if err != nil {
			return nil, stats, err
		}
		qty, err := parseNumber(h, row, fieldQuantity, source, rowNum)
		if err != nil {
			return nil, stats, err
		}
		if !qty.Valid {
			stats.Skipped++
			continue
		}

		obs := models.Observation{
			Location: models.NormalizeLocation(h.value(row, fieldLocation)),
			Period:   period,
			Quantity: int64(math.Round(qty.Float64)),
		}
		stats.flag(ValidateObservation(&obs))
		stats.Rows++
		out = append(out, obs)
	}
	return out, stats, nil
}

// ParseForecasts reads forecast rows. Only period and model columns are
// required: missing point or bound columns leave those values null, and a file
// without a location column is assigned to models.UnknownLocation. When the
// file carries an actual column its values are returned as embedded
// observations, first value per (location, period) winning.
func ParseForecasts(r io.Reader, source string) ([]models.ForecastPoint, []models.Observation, ParseStats, error) {
	var stats ParseStats

	cr := newCSVReader(r)
	h, err := readHeader(cr, source)
	if err != nil {
		return nil, nil, stats, err
	}
	if err := requireColumns(h, source, fieldPeriod, fieldModel); err != nil {
		return nil, nil, stats, err
	}

	var (
		out      []models.ForecastPoint
		embedded []models.Observation
		seen     = make(map[models.SeriesKey]bool)
	)
	for rowNum := 1; ; rowNum++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, stats, fmt.Errorf("read %s row %d: %w", source, rowNum, err)
		}

		period, err := parsePeriod(h, row, source, rowNum)
		if err != nil {
			return nil, nil, stats, err
		}

		fp := models.ForecastPoint{
			Location: models.NormalizeLocation(h.value(row, fieldLocation)),
			Period:   period,
			Model:    models.NormalizeName(h.value(row, fieldModel)),
		}
		if fp.Model == "" {
			stats.Skipped++
			continue
		}
		for _, c := range []struct {
			f   field
			dst *sql.NullFloat64
		}{{fieldPoint, &fp.Point}, {fieldLower, &fp.Lower}, {fieldUpper, &fp.Upper}} {
			v, err := parseNumber(h, row, c.f, source, rowNum)
			if err != nil {
				return nil, nil, stats, err
			}
			*c.dst = v
		}

		if h.has(fieldActual) {
			actual, err := parseNumber(h, row, fieldActual, source, rowNum)
			if err != nil {
				return nil, nil, stats, err
			}
			key := models.SeriesKey{Location: fp.Location, Period: fp.Period}
			if actual.Valid && !seen[key] {
				seen[key] = true
				embedded = append(embedded, models.Observation{
					Location: fp.Location,
					Period:   fp.Period,
					Quantity: int64(math.Round(actual.Float64)),
				})
			}
		}

		stats.flag(ValidateForecast(&fp))
		stats.Rows++
		out = append(out, fp)
	}
	return out, embedded, stats, nil
}

func parsePeriod(h header, row []string, source string, rowNum int) (time.Time, error) {
	raw := h.value(row, fieldPeriod)
	t, err := ParseDate(raw)
	if err != nil {
		return time.Time{}, &models.MalformedInputError{Source: source, Column: "date", Row: rowNum, Value: raw, Err: err}
	}
	return t, nil
}

func parseNumber(h header, row []string, f field, source string, rowNum int) (sql.NullFloat64, error) {
	raw := strings.TrimSpace(h.value(row, f))
	if raw == "" || strings.EqualFold(raw, "nan") || strings.EqualFold(raw, "null") {
		return sql.NullFloat64{}, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		if err == nil {
			err = errors.New("not a finite number")
		}
		return sql.NullFloat64{}, &models.MalformedInputError{Source: source, Column: h.column(f), Row: rowNum, Value: raw, Err: err}
	}
	return sql.NullFloat64{Float64: v, Valid: true}, nil
}
