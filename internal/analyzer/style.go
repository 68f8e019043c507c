package analyzer

import (
	"bytes"
	"strconv"
	"strings"
	"unicode"
)

// Unknown is reported when there is nothing to infer from.
const Unknown = "unknown"

// Style is a coarse fingerprint of a codebase.
type Style struct {
	Indentation string `json:"indentation"`
	Naming      string `json:"naming"`
}

// DetectStyle samples up to MaxSampleFiles source files and takes a majority
// vote on indentation and naming. Ties go to the value seen first.
func (a *Analyzer) DetectStyle(root string) (Style, error) {
	root, err := NormalizePath(root)
	if err != nil {
		return Style{}, err
	}

	w := newWalker(root)
	var samples [][]byte
	err = w.walk(func(e entry) error {
		if e.isDir || e.ignored || !SourceExtensions[extOf(e.name)] || e.size > a.opts.MaxFileSizeBytes {
			return nil
		}
		data, err := w.readFile(e.rel)
		if err != nil {
			a.log.Debug().Err(err).Str("file", e.rel).Msg("skipping unreadable sample")
			return nil
		}
		samples = append(samples, data)
		if len(samples) >= a.opts.MaxSampleFiles {
			return errStopWalk
		}
		return nil
	})
	if err != nil {
		return Style{}, err
	}
	return styleOf(samples), nil
}

func styleOf(samples [][]byte) Style {
	st := Style{Indentation: Unknown, Naming: Unknown}
	if len(samples) == 0 {
		return st
	}

	indent := newTally()
	naming := newTally()
	for _, data := range samples {
		for _, line := range strings.Split(string(data), "\n") {
			if k := indentKey(line); k != "" {
				indent.add(k)
			}
		}
		hasUnderscore := bytes.IndexByte(data, '_') >= 0
		if hasUnderscore {
			naming.add("snake_case")
		}
		if !hasUnderscore && bytes.IndexFunc(data, unicode.IsUpper) >= 0 {
			naming.add("camelCase")
		}
	}

	if k, ok := indent.top(); ok {
		if k == "tab" {
			st.Indentation = "tabs"
		} else {
			st.Indentation = k + " spaces"
		}
	}
	if k, ok := naming.top(); ok {
		st.Naming = k
	}
	return st
}

// indentKey returns the number of leading spaces for lines starting with at
// least two spaces, "tab" for tab-indented lines and "" otherwise.
func indentKey(line string) string {
	switch {
	case strings.HasPrefix(line, "  "):
		return strconv.Itoa(len(line) - len(strings.TrimLeft(line, " ")))
	case strings.HasPrefix(line, "\t"):
		return "tab"
	}
	return ""
}

// tally counts keys and remembers first-seen order for tie breaks.
type tally struct {
	counts map[string]int
	order  []string
}

func newTally() *tally { return &tally{counts: map[string]int{}} }

func (t *tally) add(k string) {
	if _, ok := t.counts[k]; !ok {
		t.order = append(t.order, k)
	}
	t.counts[k]++
}

func (t *tally) top() (string, bool) {
	best, bestN := "", 0
	for _, k := range t.order {
		if t.counts[k] > bestN {
			best, bestN = k, t.counts[k]
		}
	}
	return best, bestN > 0
}
