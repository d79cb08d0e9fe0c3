// Package export writes metric summaries and recommendations as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/xuri/excelize/v2"

	"github.com/lox/stockcast/internal/htmlutil"
	"github.com/lox/stockcast/internal/models"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV, "":
		return FormatCSV, nil
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ContentType returns the MIME type for a download in this format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Filename is the suggested download name.
func (f Format) Filename() string {
	return "model_performance_summary." + string(f)
}

var summaryHeaders = []string{"Warehouse", "Model", "MAE", "RMSE", "Bias", "Interpretation"}

func summaryRow(s models.MetricSummary) []string {
	return []string{
		htmlutil.DisplayName(s.Location),
		s.Model,
		fmt.Sprintf("%.2f", s.MAE),
		fmt.Sprintf("%.2f", s.RMSE),
		fmt.Sprintf("%.2f", s.Bias),
		s.Interpretation,
	}
}

// Write dispatches on format.
func Write(w io.Writer, format Format, summaries []models.MetricSummary) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(w, summaries)
	default:
		return WriteCSV(w, summaries)
	}
}

// WriteCSV writes the summary table with numbers at two decimal places.
// Identical input gives byte-identical output.
func WriteCSV(w io.Writer, summaries []models.MetricSummary) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(summaryHeaders); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	for _, s := range summaries {
		if err := writer.Write(summaryRow(s)); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes the summary table to a single-sheet workbook.
func WriteXLSX(w io.Writer, summaries []models.MetricSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Model Performance"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	numFmt := "0.00"
	numberStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return fmt.Errorf("create number style: %w", err)
	}

	for i, header := range summaryHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, s := range summaries {
		row := rowIdx + 2
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), htmlutil.DisplayName(s.Location))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), s.Model)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), models.Round2(s.MAE))
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), models.Round2(s.RMSE))
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), models.Round2(s.Bias))
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), s.Interpretation)
	}
	if len(summaries) > 0 {
		last := fmt.Sprintf("E%d", len(summaries)+1)
		if err := f.SetCellStyle(sheetName, "C2", last, numberStyle); err != nil {
			return fmt.Errorf("style numbers: %w", err)
		}
	}

	for i := range summaryHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 18)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteRecommendationsCSV writes one row per recommendation. Rule text may
// contain HTML; it is flattened to plain text.
func WriteRecommendationsCSV(w io.Writer, recs []models.Recommendation) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"Warehouse", "Forecast Condition", "Priority Action", "Next Step"}); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	for _, r := range recs {
		record := []string{
			htmlutil.DisplayName(r.Location),
			r.Condition.String(),
			htmlutil.ToLine(r.PriorityAction),
			htmlutil.ToLine(r.NextStep),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// ImpactFilename is the suggested download name for WriteProfilesCSV.
const ImpactFilename = "business_impact_summary.csv"

// WriteProfilesCSV writes the business impact table. Money columns are labelled
// with currency; values are written unformatted so spreadsheets read them as
// numbers.
func WriteProfilesCSV(w io.Writer, profiles []models.Profile, currency string) error {
	writer := csv.NewWriter(w)

	headers := []string{
		"Warehouse",
		"As Of",
		"Forecast Accuracy (%)",
		"FCR (%)",
		fmt.Sprintf("CPO (%s)", currency),
		fmt.Sprintf("Monthly Cost (%s)", currency),
		"Model ROI (%)",
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	for _, p := range profiles {
		asOf := ""
		if !p.AsOf.IsZero() {
			asOf = p.AsOf.Format("2006-01-02")
		}
		record := []string{
			htmlutil.DisplayName(p.Location),
			asOf,
			plainNumber(p.AccuracyPct),
			plainNumber(p.FCRPct),
			plainNumber(p.CPO),
			plainNumber(p.MonthlyCost),
			plainNumber(p.ROIPct),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func plainNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Diff returns a unified diff between two exports, or "" when they match.
func Diff(old, new []byte, fromFile, toFile string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(old)),
		B:        difflib.SplitLines(string(new)),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("diff %s: %w", toFile, err)
	}
	return text, nil
}
