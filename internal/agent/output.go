package agent

import "strings"

// DefaultShareLinkPrefix marks session share links in run output.
const DefaultShareLinkPrefix = "https://opencode.ai/s/"

// HasCompletionSignal reports whether the output contains the completion
// phrase. An empty signal never matches.
func HasCompletionSignal(output, signal string) bool {
	if signal == "" {
		return false
	}
	return strings.Contains(output, signal)
}

// ExtractShareLink returns the first whitespace-delimited token in output that
// carries the share-link prefix, or an empty string when there is none.
func ExtractShareLink(output, prefix string) string {
	if prefix == "" {
		return ""
	}
	for _, token := range strings.Fields(output) {
		if strings.HasPrefix(token, prefix) {
			return token
		}
	}
	return ""
}
