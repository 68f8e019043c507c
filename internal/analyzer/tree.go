package analyzer

import (
	"strings"
)

// ScanStructure renders a deterministic, indented tree of root: one line per
// directory ("name/") and one per allow-listed file under the size ceiling.
// Output stops at MaxTreeLines lines. Unreadable entries are skipped.
func (a *Analyzer) ScanStructure(root string) (string, error) {
	root, err := NormalizePath(root)
	if err != nil {
		return "", err
	}

	w := newWalker(root)
	w.dirErr = func(rel string, err error) {
		a.log.Debug().Err(err).Str("dir", rel).Msg("skipping unreadable directory")
	}

	lines := make([]string, 0, min(a.opts.MaxTreeLines, 64))
	err = w.walk(func(e entry) error {
		switch {
		case e.isDir:
			lines = append(lines, strings.Repeat("  ", e.depth)+e.name+"/")
		case e.ignored || e.size > a.opts.MaxFileSizeBytes || !inTree(e.name):
			return nil
		default:
			lines = append(lines, strings.Repeat("  ", e.depth)+e.name)
		}
		if len(lines) >= a.opts.MaxTreeLines {
			return errStopWalk
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func inTree(name string) bool {
	return treeNames[name] || treeExtensions[extOf(name)]
}
