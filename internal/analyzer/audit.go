package analyzer

import (
	"context"
	"fmt"
	"strings"
)

// Skip reasons for files that were seen but not checked.
const (
	SkipTooLarge   = "too_large"
	SkipUnreadable = "unreadable"
	SkipIgnored    = "ignored"
)

// FileResult records the fate of one source file during an audit.
// Skip is empty for checked files.
type FileResult struct {
	Path     string `json:"path"`
	Skip     string `json:"skip,omitempty"`
	Findings int    `json:"findings,omitempty"`
}

// ScanSummary aggregates an audit.
type ScanSummary struct {
	CheckedFiles int            `json:"checked_files"`
	SkippedFiles int            `json:"skipped_files"`
	SkipReasons  map[string]int `json:"skip_reasons,omitempty"`
	Skipped      []FileResult   `json:"skipped,omitempty"`
	Findings     []DriftFinding `json:"drifts"`
}

// DriftCount is the number of findings.
func (s ScanSummary) DriftCount() int { return len(s.Findings) }

func (s *ScanSummary) add(r FileResult, findings []DriftFinding) {
	if r.Skip != "" {
		s.SkippedFiles++
		if s.SkipReasons == nil {
			s.SkipReasons = map[string]int{}
		}
		s.SkipReasons[r.Skip]++
		s.Skipped = append(s.Skipped, r)
		return
	}
	s.CheckedFiles++
	s.Findings = append(s.Findings, findings...)
}

// Summary is the one-line human summary of the audit.
func (s ScanSummary) Summary() string {
	if len(s.Findings) == 0 {
		return "No drift detected."
	}
	return fmt.Sprintf("Detected %d architectural drifts.", len(s.Findings))
}

// Report renders one line per finding.
func (s ScanSummary) Report() string {
	lines := make([]string, 0, len(s.Findings))
	for _, d := range s.Findings {
		lines = append(lines, fmt.Sprintf("DRIFT in `%s`: Rule '%s' violated. Evidence: %s", d.File, d.RuleText, d.Evidence))
	}
	return strings.Join(lines, "\n")
}

// PaceFunc is called before each file is checked; it may block to throttle
// the scan and returns an error to abort it.
type PaceFunc func(ctx context.Context) error

// Audit checks every source file under root against rules, sequentially.
// ctx is checked between files; a cancelled audit returns the partial
// summary together with ctx.Err(). onFile, when non-nil, sees every result.
func (a *Analyzer) Audit(ctx context.Context, root string, rules []Rule, pace PaceFunc, onFile func(FileResult, []DriftFinding)) (ScanSummary, error) {
	var sum ScanSummary
	root, err := NormalizePath(root)
	if err != nil {
		return sum, err
	}
	rules = ArchitecturalRules(rules)

	w := newWalker(root)
	w.dirErr = func(rel string, err error) {
		a.log.Debug().Err(err).Str("dir", rel).Msg("skipping unreadable directory")
	}

	err = w.walk(func(e entry) error {
		if e.isDir || !SourceExtensions[extOf(e.name)] {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if pace != nil {
			if err := pace(ctx); err != nil {
				return err
			}
		}

		res := FileResult{Path: e.rel}
		var findings []DriftFinding
		switch {
		case e.ignored:
			res.Skip = SkipIgnored
		case e.size > a.opts.MaxFileSizeBytes:
			res.Skip = SkipTooLarge
		default:
			data, err := w.readFile(e.rel)
			if err != nil {
				res.Skip = SkipUnreadable
				a.log.Debug().Err(err).Str("file", e.rel).Msg("skipping unreadable file")
				break
			}
			findings = a.DetectDrift(NewSourceFile(e.rel, data), rules)
			res.Findings = len(findings)
		}
		sum.add(res, findings)
		if onFile != nil {
			onFile(res, findings)
		}
		return nil
	})
	return sum, err
}
