// Package assistant is the dashboard's conversational helper: a static
// keyword-to-response lookup with a default fallback. No dialogue state, no
// learning; first matching keyword wins.
package assistant

import "strings"

type rule struct {
	keywords []string
	response string
}

// Responses are checked in order; earlier rules win when several match.
var rules = []rule{
	{
		keywords: []string{"pressure"},
		response: "Max Pressure (psi) indicates the maximum operating pressure in the pipe. Values above 1400 psi trigger warnings. Current reading shows elevated pressure requiring monitoring.",
	},
	{
		keywords: []string{"temperature", "temp"},
		response: "Temperature monitoring is critical for pipe integrity. High temperatures can accelerate corrosion. The system alerts when temperature exceeds 80°C.",
	},
	{
		keywords: []string{"corrosion"},
		response: "Corrosion Impact measures the percentage of material degradation. It's calculated based on thickness loss and material properties. Values above 14% require immediate attention.",
	},
	{
		keywords: []string{"threshold", "alert"},
		response: "Thresholds are safety limits for each metric. When exceeded, the system sends alerts to designated recipients and logs the event for compliance.",
	},
}

const defaultResponse = "I can provide insights on pressure, temperature, corrosion metrics, and threshold management. Ask me about any KPI or safety concern!"

// Greeting is the opening assistant message shown before any user input
const Greeting = "Hello! I'm your P2SD assistant. I can help explain KPIs, graphs, threshold breaches, and safety insights. How can I help you today?"

// Respond returns the canned response for the first keyword found in the
// input, or the default fallback
func Respond(input string) string {
	lower := strings.ToLower(input)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.response
			}
		}
	}
	return defaultResponse
}
