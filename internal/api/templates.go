package api

import (
	"database/sql"
	"embed"
	"fmt"
	"html/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lox/stockcast/internal/htmlutil"
)

//go:embed templates/*
var templateFS embed.FS

const dateLayout = "2006-01-02"

var printer = message.NewPrinter(language.English)

// formatMoney groups thousands and prefixes the currency label.
func formatMoney(currency string, f float64) string {
	return printer.Sprintf("%s%.0f", currency, f)
}

// newTemplates creates and parses the HTML templates with custom functions.
// Money values are labelled with currency.
func newTemplates(currency string) *template.Template {
	funcs := template.FuncMap{
		"display": htmlutil.DisplayName,
		"plain":   htmlutil.ToLine,
		"num2": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"null2": func(v sql.NullFloat64) string {
			if !v.Valid {
				return "-"
			}
			return fmt.Sprintf("%.2f", v.Float64)
		},
		"grouped": func(f float64) string {
			return printer.Sprintf("%.0f", f)
		},
		"money": func(f float64) string {
			return formatMoney(currency, f)
		},
		"pct": func(f float64) string {
			return fmt.Sprintf("%.1f%%", f)
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(dateLayout)
		},
		"when": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.Local().Format("Jan 2, 3:04 PM")
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
