// Package analyzer inspects a project directory: a bounded structure tree,
// a coarse style fingerprint, and heuristic drift findings against stored
// rules. It is a triage tool, not a static analyzer.
package analyzer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/HendryAvila/mybrain/internal/memory"
)

// ErrInvalidPath is returned for paths that do not exist or are not directories.
var ErrInvalidPath = errors.New("analyzer: invalid path")

// IgnoredDirs are never descended into.
var IgnoredDirs = map[string]bool{
	"node_modules": true, ".git": true, "__pycache__": true, "venv": true, ".venv": true,
	".env": true, "dist": true, "build": true, ".idea": true, ".vscode": true,
	"vendor": true, "target": true, "coverage": true, ".cache": true, ".next": true,
	".terraform": true,
}

// SourceExtensions are sampled for style and checked for drift.
var SourceExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".go": true, ".rs": true,
}

// treeExtensions is the allow-list of files shown in the structure tree.
var treeExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".go": true, ".rs": true, ".java": true, ".kt": true, ".scala": true, ".rb": true, ".php": true,
	".c": true, ".h": true, ".cc": true, ".cpp": true, ".hpp": true, ".cs": true, ".swift": true,
	".m": true, ".dart": true, ".lua": true, ".ex": true, ".exs": true, ".erl": true, ".hs": true,
	".vue": true, ".svelte": true, ".html": true, ".css": true, ".scss": true, ".sass": true,
	".sh": true, ".bash": true, ".zsh": true, ".ps1": true, ".sql": true, ".proto": true,
	".graphql": true, ".md": true, ".rst": true, ".txt": true, ".json": true, ".yaml": true,
	".yml": true, ".toml": true, ".ini": true, ".cfg": true, ".xml": true, ".tf": true,
	".mod": true, ".sum": true, ".lock": true,
}

// treeNames are extension-less files shown in the structure tree.
var treeNames = map[string]bool{
	"Makefile": true, "Dockerfile": true, "Procfile": true, "Gemfile": true, "Rakefile": true,
	".gitignore": true, ".dockerignore": true, ".editorconfig": true,
}

// ArchitecturalCategories are the rule categories drift checks consider.
var ArchitecturalCategories = map[string]bool{
	"architecture": true, "constraints": true, "coding_style": true,
}

// Options bounds the analyzer's work.
type Options struct {
	MaxTreeLines     int
	MaxFileSizeBytes int64
	MaxSampleFiles   int
	// Heuristics replaces the default drift strategies when non-nil.
	Heuristics []Heuristic
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{MaxTreeLines: 200, MaxFileSizeBytes: 1_000_000, MaxSampleFiles: 3}
}

// Analyzer scans project trees.
type Analyzer struct {
	opts       Options
	heuristics []Heuristic
	log        zerolog.Logger
}

// New creates an Analyzer. Zero limits fall back to DefaultOptions.
func New(opts Options, log zerolog.Logger) *Analyzer {
	def := DefaultOptions()
	if opts.MaxTreeLines <= 0 {
		opts.MaxTreeLines = def.MaxTreeLines
	}
	if opts.MaxFileSizeBytes <= 0 {
		opts.MaxFileSizeBytes = def.MaxFileSizeBytes
	}
	if opts.MaxSampleFiles <= 0 {
		opts.MaxSampleFiles = def.MaxSampleFiles
	}
	h := opts.Heuristics
	if h == nil {
		h = DefaultHeuristics()
	}
	return &Analyzer{
		opts:       opts,
		heuristics: h,
		log:        log.With().Str("component", "analyzer").Logger(),
	}
}

// NormalizePath expands "~", makes path absolute and resolves symlinks.
// It fails with ErrInvalidPath when the result is missing or not a directory.
func NormalizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: path does not exist: %s", ErrInvalidPath, abs)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: path is not a directory: %s", ErrInvalidPath, resolved)
	}
	return resolved, nil
}

// Rule is a stored rule as drift checks see it.
type Rule struct {
	ID       string
	Text     string
	Category string
}

// RulesFromRecords converts stored records to rules.
func RulesFromRecords(recs []memory.Record) []Rule {
	out := make([]Rule, 0, len(recs))
	for _, r := range recs {
		out = append(out, Rule{ID: r.ID, Text: r.Document, Category: r.Metadata.Category})
	}
	return out
}

// ArchitecturalRules keeps the rules drift checks apply to.
func ArchitecturalRules(rules []Rule) []Rule {
	var out []Rule
	for _, r := range rules {
		if ArchitecturalCategories[r.Category] {
			out = append(out, r)
		}
	}
	return out
}
