package analyzer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DriftFinding is a (file, rule) pair where file content contradicts the rule.
type DriftFinding struct {
	File      string `json:"file"`
	RuleID    string `json:"rule_id"`
	RuleText  string `json:"rule_text"`
	DriftType string `json:"drift_type"`
	Evidence  string `json:"evidence"`
}

// SourceFile is the file view handed to heuristics.
type SourceFile struct {
	Path  string // relative, slash-separated
	Ext   string
	Lines []string
}

// NewSourceFile splits content into lines.
func NewSourceFile(path string, content []byte) SourceFile {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}
	return SourceFile{Path: path, Ext: extOf(path), Lines: lines}
}

// Heuristic is one drift-detection strategy. Check returns evidence and true
// when rule applies to the file and the file violates it; rules a heuristic
// does not understand are simply not violated.
type Heuristic interface {
	Name() string
	Check(f SourceFile, r Rule) (evidence string, violated bool)
}

// DefaultHeuristics returns the shipped strategies.
func DefaultHeuristics() []Heuristic {
	return []Heuristic{
		ForbiddenUsage{},
		NamingConvention{},
		Indentation{},
		FileLength{},
	}
}

// DetectDrift applies every heuristic to file for each architectural rule.
func (a *Analyzer) DetectDrift(f SourceFile, rules []Rule) []DriftFinding {
	var out []DriftFinding
	for _, r := range rules {
		if !ArchitecturalCategories[r.Category] {
			continue
		}
		for _, h := range a.heuristics {
			if ev, bad := h.Check(f, r); bad {
				out = append(out, DriftFinding{
					File:      f.Path,
					RuleID:    r.ID,
					RuleText:  r.Text,
					DriftType: h.Name(),
					Evidence:  ev,
				})
			}
		}
	}
	return out
}

// ─── forbidden_usage ─────────────────────────────────────────────────────────

var (
	negationRe = regexp.MustCompile(`(?i)\b(never|don't|dont|do not|avoid|must not|no|forbid|forbidden|ban|banned)\b`)
	quotedRe   = regexp.MustCompile("`([^`]+)`|\"([^\"]+)\"")
)

// ForbiddenUsage flags files containing a quoted token that a negated rule
// forbids, e.g. "Never use `print` in library code".
type ForbiddenUsage struct{}

func (ForbiddenUsage) Name() string { return "forbidden_usage" }

func (ForbiddenUsage) Check(f SourceFile, r Rule) (string, bool) {
	loc := negationRe.FindStringIndex(r.Text)
	if loc == nil {
		return "", false
	}
	for _, m := range quotedRe.FindAllStringSubmatch(r.Text[loc[1]:], -1) {
		token := m[1]
		if token == "" {
			token = m[2]
		}
		if strings.TrimSpace(token) == "" {
			continue
		}
		for i, line := range f.Lines {
			if strings.Contains(line, token) {
				return fmt.Sprintf("line %d uses `%s`: %s", i+1, token, clip(strings.TrimSpace(line))), true
			}
		}
	}
	return "", false
}

// ─── naming_convention ───────────────────────────────────────────────────────

var (
	snakeRuleRe  = regexp.MustCompile(`(?i)snake[_ ]?case`)
	camelRuleRe  = regexp.MustCompile(`(?i)camel[_ ]?case`)
	pascalRuleRe = regexp.MustCompile(`(?i)pascal[_ ]?case`)

	// Declarations of functions and variables, per extension.
	valueDeclRe = map[string][]*regexp.Regexp{
		".py": {regexp.MustCompile(`^\s*def\s+([A-Za-z_]\w*)`), regexp.MustCompile(`^\s*([A-Za-z_]\w*)\s*=[^=]`)},
		".js": {regexp.MustCompile(`\b(?:function|const|let|var)\s+([A-Za-z_$][\w$]*)`)},
		".ts": {regexp.MustCompile(`\b(?:function|const|let|var)\s+([A-Za-z_$][\w$]*)`)},
		".go": {regexp.MustCompile(`\bfunc\s+(?:\([^)]*\)\s*)?([A-Za-z_]\w*)`), regexp.MustCompile(`\b([A-Za-z_]\w*)\s*:=`), regexp.MustCompile(`\bvar\s+([A-Za-z_]\w*)`)},
		".rs": {regexp.MustCompile(`\bfn\s+([A-Za-z_]\w*)`), regexp.MustCompile(`\blet\s+(?:mut\s+)?([A-Za-z_]\w*)`)},
	}
	// Declarations of types and classes, per extension.
	typeDeclRe = map[string][]*regexp.Regexp{
		".py": {regexp.MustCompile(`^\s*class\s+([A-Za-z_]\w*)`)},
		".js": {regexp.MustCompile(`\bclass\s+([A-Za-z_$][\w$]*)`)},
		".ts": {regexp.MustCompile(`\b(?:class|interface|type)\s+([A-Za-z_$][\w$]*)`)},
		".go": {regexp.MustCompile(`\btype\s+([A-Za-z_]\w*)`)},
		".rs": {regexp.MustCompile(`\b(?:struct|enum|trait)\s+([A-Za-z_]\w*)`)},
	}
)

// NamingConvention flags declarations that break a snake_case, camelCase or
// PascalCase rule. PascalCase rules apply to type declarations only.
type NamingConvention struct{}

func (NamingConvention) Name() string { return "naming_convention" }

func (NamingConvention) Check(f SourceFile, r Rule) (string, bool) {
	var (
		convention string
		decls      []*regexp.Regexp
		ok         func(string) bool
	)
	switch {
	case pascalRuleRe.MatchString(r.Text):
		convention, decls, ok = "PascalCase", typeDeclRe[f.Ext], isPascal
	case snakeRuleRe.MatchString(r.Text):
		convention, decls, ok = "snake_case", valueDeclRe[f.Ext], isSnakeish
	case camelRuleRe.MatchString(r.Text):
		convention, decls, ok = "camelCase", valueDeclRe[f.Ext], isCamelish
	default:
		return "", false
	}

	for i, line := range f.Lines {
		for _, re := range decls {
			for _, m := range re.FindAllStringSubmatch(line, -1) {
				if name := m[1]; !ok(name) {
					return fmt.Sprintf("line %d declares `%s`, which is not %s", i+1, name, convention), true
				}
			}
		}
	}
	return "", false
}

// isSnakeish accepts snake_case and SCREAMING_CASE; only mixed case fails.
func isSnakeish(name string) bool {
	return strings.ToLower(name) == name || strings.ToUpper(name) == name
}

// isCamelish rejects inner underscores, except in SCREAMING_CASE constants.
func isCamelish(name string) bool {
	trimmed := strings.Trim(name, "_")
	return !strings.Contains(trimmed, "_") || strings.ToUpper(name) == name
}

func isPascal(name string) bool {
	trimmed := strings.TrimLeft(name, "_$")
	return trimmed == "" || (trimmed[0] >= 'A' && trimmed[0] <= 'Z' && !strings.Contains(trimmed, "_"))
}

// ─── indentation ─────────────────────────────────────────────────────────────

var (
	indentRuleRe = regexp.MustCompile(`(?i)indent`)
	spacesRuleRe = regexp.MustCompile(`(?i)\b(\d+)[- ]spaces?\b`)
	tabsRuleRe   = regexp.MustCompile(`(?i)\btabs?\b`)
)

// Indentation flags files indented differently from an indentation rule
// ("indent with tabs", "use 4 spaces for indentation").
type Indentation struct{}

func (Indentation) Name() string { return "indentation" }

func (Indentation) Check(f SourceFile, r Rule) (string, bool) {
	if !indentRuleRe.MatchString(r.Text) {
		return "", false
	}
	tabs, spaceLines, unit := 0, 0, 0
	for _, line := range f.Lines {
		switch {
		case strings.HasPrefix(line, "\t"):
			tabs++
		case strings.HasPrefix(line, "  "):
			spaceLines++
			n := len(line) - len(strings.TrimLeft(line, " "))
			if unit == 0 || n < unit {
				unit = n
			}
		}
	}

	if m := spacesRuleRe.FindStringSubmatch(r.Text); m != nil {
		want, _ := strconv.Atoi(m[1])
		if tabs > spaceLines {
			return fmt.Sprintf("%d lines indented with tabs, rule wants %d spaces", tabs, want), true
		}
		if unit > 0 && unit != want {
			return fmt.Sprintf("indentation unit is %d spaces, rule wants %d", unit, want), true
		}
		return "", false
	}
	if tabsRuleRe.MatchString(r.Text) && spaceLines > tabs {
		return fmt.Sprintf("%d lines indented with spaces, rule wants tabs", spaceLines), true
	}
	return "", false
}

// ─── file_length ─────────────────────────────────────────────────────────────

var lengthRuleRe = regexp.MustCompile(`(?i)\b(at most|no more than|max(?:imum)?(?: of)?|under|fewer than|less than)\s+(\d+)\s+lines\b`)

// FileLength flags files longer than a rule's line limit
// ("files must be at most 300 lines").
type FileLength struct{}

func (FileLength) Name() string { return "file_length" }

func (FileLength) Check(f SourceFile, r Rule) (string, bool) {
	m := lengthRuleRe.FindStringSubmatch(r.Text)
	if m == nil {
		return "", false
	}
	limit, err := strconv.Atoi(m[2])
	if err != nil {
		return "", false
	}
	switch strings.ToLower(m[1]) {
	case "under", "fewer than", "less than":
		limit--
	}
	if n := len(f.Lines); n > limit {
		return fmt.Sprintf("file has %d lines, limit is %d", n, limit), true
	}
	return "", false
}

func clip(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
