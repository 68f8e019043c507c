package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func src(path string, lines ...string) SourceFile {
	return NewSourceFile(path, []byte(strings.Join(lines, "\n")+"\n"))
}

func TestForbiddenUsage(t *testing.T) {
	h := ForbiddenUsage{}
	f := src("a.js", "const x = 1", "eval(input)")

	ev, bad := h.Check(f, Rule{Text: "Never call `eval` on user input"})
	assert.True(t, bad)
	assert.Contains(t, ev, "line 2")

	_, bad = h.Check(f, Rule{Text: "Use `eval` sparingly"})
	assert.False(t, bad, "no negation, no violation")

	_, bad = h.Check(f, Rule{Text: "Avoid \"exec\" calls"})
	assert.False(t, bad)

	_, bad = h.Check(f, Rule{Text: "Do not import \"eval\""})
	assert.True(t, bad, "double quotes work too")
}

func TestNamingConvention(t *testing.T) {
	h := NamingConvention{}

	tests := []struct {
		name string
		file SourceFile
		rule string
		bad  bool
	}{
		{"python camel under snake rule", src("a.py", "def loadUser(id):", "    pass"), "Functions use snake_case", true},
		{"python snake under snake rule", src("a.py", "def load_user(id):", "MAX_SIZE = 3"), "Functions use snake_case", false},
		{"js snake under camel rule", src("a.js", "const user_name = 1"), "variables are camelCase", true},
		{"js constant under camel rule", src("a.js", "const MAX_USERS = 1", "let userName = 2"), "variables are camelCase", false},
		{"go receiver method", src("a.go", "func (s *Store) loadAll() {}"), "use camel case", false},
		{"go snake var under camel", src("a.go", "    user_id := 3"), "use camel case", true},
		{"ts lower class under pascal", src("a.ts", "class userService {}"), "classes use PascalCase", true},
		{"rust struct pascal", src("a.rs", "struct UserService {}", "fn load_user() {}"), "types use PascalCase", false},
		{"unrelated rule", src("a.py", "def loadUser(): pass"), "keep modules small", false},
		{"unknown extension", src("a.rb", "def loadUser; end"), "use snake_case", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, bad := h.Check(tt.file, Rule{Text: tt.rule})
			assert.Equal(t, tt.bad, bad, ev)
			if bad {
				assert.Contains(t, ev, "line 1")
			}
		})
	}
}

func TestIndentation(t *testing.T) {
	h := Indentation{}
	twoSpaces := src("a.py", "def f():", "  return 1")
	fourSpaces := src("a.py", "def f():", "    if x:", "        return 1")
	tabs := src("a.go", "func f() {", "\treturn", "}")

	_, bad := h.Check(fourSpaces, Rule{Text: "Indent with 4 spaces"})
	assert.False(t, bad)

	ev, bad := h.Check(twoSpaces, Rule{Text: "Indent with 4 spaces"})
	assert.True(t, bad)
	assert.Contains(t, ev, "2 spaces")

	_, bad = h.Check(tabs, Rule{Text: "use 4-space indentation"})
	assert.True(t, bad)

	_, bad = h.Check(tabs, Rule{Text: "indent with tabs"})
	assert.False(t, bad)

	_, bad = h.Check(fourSpaces, Rule{Text: "indent with tabs"})
	assert.True(t, bad)

	_, bad = h.Check(twoSpaces, Rule{Text: "use tabs for alignment tables"})
	assert.False(t, bad, "rules that do not talk about indentation are ignored")
}

func TestFileLength(t *testing.T) {
	h := FileLength{}
	f := src("a.go", strings.Split(strings.Repeat("x\n", 10), "\n")[:10]...)

	_, bad := h.Check(f, Rule{Text: "files must be at most 10 lines"})
	assert.False(t, bad)

	_, bad = h.Check(f, Rule{Text: "keep files under 10 lines"})
	assert.True(t, bad)

	ev, bad := h.Check(f, Rule{Text: "No more than 5 lines per file"})
	assert.True(t, bad)
	assert.Equal(t, "file has 10 lines, limit is 5", ev)

	_, bad = h.Check(f, Rule{Text: "short files please"})
	assert.False(t, bad)
}

type alwaysDrift struct{}

func (alwaysDrift) Name() string                          { return "always" }
func (alwaysDrift) Check(SourceFile, Rule) (string, bool) { return "because", true }

func TestDetectDrift_PluggableAndCategoryFiltered(t *testing.T) {
	a := newTestAnalyzer(Options{Heuristics: []Heuristic{alwaysDrift{}}})
	rules := []Rule{
		{ID: "a", Text: "A", Category: "architecture"},
		{ID: "b", Text: "B", Category: "documentation"},
		{ID: "c", Text: "C", Category: "coding_style"},
	}

	got := a.DetectDrift(src("x.py", "pass"), rules)
	assert.Equal(t, []DriftFinding{
		{File: "x.py", RuleID: "a", RuleText: "A", DriftType: "always", Evidence: "because"},
		{File: "x.py", RuleID: "c", RuleText: "C", DriftType: "always", Evidence: "because"},
	}, got)
}

func TestNewSourceFile(t *testing.T) {
	f := NewSourceFile("dir/A.PY", []byte("a\r\nb\n"))
	assert.Equal(t, ".py", f.Ext)
	assert.Equal(t, []string{"a", "b"}, f.Lines)
	assert.Empty(t, NewSourceFile("e.go", nil).Lines)
}
