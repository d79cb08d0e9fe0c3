package htmlutil

import "testing"

func TestToLine(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"<b>Tighten</b> procurement", "Tighten procurement"},
		{"Audit SKU-level performance &amp; reduce slow movers", "Audit SKU-level performance & reduce slow movers"},
		{"  spread \n over   lines ", "spread over lines"},
	}
	for _, tt := range tests {
		if got := ToLine(tt.in); got != tt.want {
			t.Errorf("ToLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"nickolson", "Nickolson"},
		{"model_variant_b", "Model Variant B"},
		{"", ""},
		{"unknown", "Unknown"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.in); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
