package llm

import "strings"

const defaultErrorMessage = "Failed to generate response"

type errorRule struct {
	patterns []string
	message  string
}

// errorRules are matched in order against the upstream error text. They are
// heuristics over free-form text; replace them with status codes once the
// client library exposes structured errors.
var errorRules = []errorRule{
	{
		patterns: []string{"api key", "api_key"},
		message:  "Invalid API key. Please check your Google API key in Google Cloud Console.",
	},
	{
		patterns: []string{"quota", "resource_exhausted", "resource exhausted"},
		message:  "API quota exceeded. Please check your Google Cloud Console.",
	},
	{
		patterns: []string{"404", "not found"},
		message:  "Model not available. Please enable the Generative Language API in Google Cloud Console and ensure your API key has access to Gemini models.",
	},
	{
		patterns: []string{"network", "connection refused", "no such host"},
		message:  "Network error. Please check your internet connection.",
	},
}

// ClassifyError maps a generation failure to the message shown to the user.
// Unmatched errors surface their own text.
func ClassifyError(err error) string {
	if err == nil {
		return defaultErrorMessage
	}
	text := err.Error()
	lower := strings.ToLower(text)
	for _, rule := range errorRules {
		for _, p := range rule.patterns {
			if strings.Contains(lower, p) {
				return rule.message
			}
		}
	}
	if text == "" {
		return defaultErrorMessage
	}
	return text
}
