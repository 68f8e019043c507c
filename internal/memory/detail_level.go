// detail_level.go provides the detail_level parameter of recall_context.
//
//   - summary: ids, type and category only
//   - standard: document text truncated to StandardTextLimit runes
//   - full: complete text
package memory

import "fmt"

// Detail level constants.
const (
	DetailSummary  = "summary"
	DetailStandard = "standard"
	DetailFull     = "full"
)

// StandardTextLimit caps document text at the standard detail level.
const StandardTextLimit = 300

// DetailLevelValues returns the enum values for MCP tool definitions.
func DetailLevelValues() []string {
	return []string{DetailSummary, DetailStandard, DetailFull}
}

// ParseDetailLevel normalizes a detail_level string, defaulting to "standard"
// for empty or unrecognized values.
func ParseDetailLevel(s string) string {
	switch s {
	case DetailSummary, DetailFull:
		return s
	default:
		return DetailStandard
	}
}

// TextForLevel returns the document text as shown at the given level.
func TextForLevel(text, level string) string {
	switch level {
	case DetailSummary:
		return ""
	case DetailFull:
		return text
	}
	runes := []rune(text)
	if len(runes) <= StandardTextLimit {
		return text
	}
	return string(runes[:StandardTextLimit]) + "..."
}

// NavigationHint returns a one-line footer when results are capped by a limit.
// Returns an empty string when all results fit or total is 0.
func NavigationHint(showing, total int) string {
	if total <= 0 || showing >= total {
		return ""
	}
	return fmt.Sprintf("Showing %d of %d. Raise limit for more.", showing, total)
}
