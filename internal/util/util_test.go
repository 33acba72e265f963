package util

import "testing"

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"clean name", "A01-Race.Challenge.Gbx", "A01-Race.Challenge.Gbx"},
		{"path separators", `maps/winter\dash.Gbx`, "maps_winter_dash.Gbx"},
		{"windows specials", `wh?at:is*this`, "wh_at_is_this"},
		{"quotes and brackets", `"speedy" <final>`, "_speedy_ _final_"},
		{"control chars", "tab\there", "tab_here"},
		{"surrounding space", "  padded  ", "padded"},
		{"unicode kept", "Jäger-Straße.Gbx", "Jäger-Straße.Gbx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeFileName(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestTrimQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"no quotes", "hello", "hello"},
		{"double quoted", `"hello"`, "hello"},
		{"single quotes only", "'hello'", "'hello'"},
		{"quotes in middle", `he"llo`, `he"llo`},
		{"only quotes", `""`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrimQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("TrimQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFileNameFromDisposition(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty header", "", ""},
		{"plain attachment", "attachment", ""},
		{"quoted filename", `attachment; filename="B05-Dirt.Challenge.Gbx"`, "B05-Dirt.Challenge.Gbx"},
		{"unquoted filename", "attachment; filename=track.Gbx", "track.Gbx"},
		{"malformed header", `attachment; filename="broken`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FileNameFromDisposition(tt.input)
			if result != tt.expected {
				t.Errorf("FileNameFromDisposition(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestLastPathSegment(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"track redirect", "/trackshow/4912398", "4912398"},
		{"trailing slash", "/trackshow/4912398/", "4912398"},
		{"no slash", "4912398", "4912398"},
		{"root", "/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := LastPathSegment(tt.input)
			if result != tt.expected {
				t.Errorf("LastPathSegment(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
