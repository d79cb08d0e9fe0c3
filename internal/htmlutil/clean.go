package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ToText converts HTML to plain text using a proper HTML parser.
// Handles entities, strips tags, and preserves readable text.
func ToText(s string) string {
	return html2text.HTML2Text(s)
}

// ToLine is ToText collapsed onto a single line, for CSV cells and terminal
// tables.
func ToLine(s string) string {
	return strings.Join(strings.Fields(ToText(s)), " ")
}

// DisplayName title-cases a normalized identifier such as "nickolson" or
// "model_variant_b" for presentation.
func DisplayName(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", " ")
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(s)
}
