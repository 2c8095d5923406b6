package assistant_test

import (
	"strings"
	"testing"

	"pipewatch/internal/assistant"
)

func TestRespond(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{"pressure keyword", "why is the pressure high?", "Max Pressure (psi)"},
		{"temperature keyword", "explain the Temperature graph", "pipe integrity"},
		{"temp shorthand", "what does temp mean here", "pipe integrity"},
		{"corrosion keyword", "corrosion impact?", "material degradation"},
		{"threshold keyword", "how do thresholds work", "safety limits"},
		{"alert keyword", "who receives alerts", "safety limits"},
		{"case insensitive", "PRESSURE STATUS", "Max Pressure (psi)"},
		{"unknown topic falls back", "what is the weather", "I can provide insights"},
		{"empty input falls back", "", "I can provide insights"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := assistant.Respond(tt.input)
			if !strings.Contains(got, tt.contains) {
				t.Errorf("Respond(%q) = %q, want it to contain %q", tt.input, got, tt.contains)
			}
		})
	}
}

// Earlier rules win when an input matches several keywords
func TestRespondFirstMatchWins(t *testing.T) {
	got := assistant.Respond("pressure threshold breach")
	if !strings.Contains(got, "Max Pressure (psi)") {
		t.Errorf("Respond() = %q, want the pressure response", got)
	}
}

func TestGreeting(t *testing.T) {
	if !strings.Contains(assistant.Greeting, "P2SD") {
		t.Errorf("Greeting = %q, want it to name the P2SD assistant", assistant.Greeting)
	}
}
