// Package memory implements the vector memory store behind mybrain.
//
// Records live durably in SQLite (one row per memory, with its embedding) and
// are mirrored into an in-memory chromem-go collection for cosine
// nearest-neighbour search. Every operation runs under a bounded retry policy
// that absorbs SQLite busy/locked contention.
package memory

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SchemaVersion is stamped on every record written by this build.
const SchemaVersion = 1

// Memory types.
const (
	TypeRule       = "rule"
	TypeContext    = "context"
	TypeConstraint = "constraint"
)

// Memory sources.
const (
	SourceAgent  = "agent"
	SourceManual = "manual"
)

var (
	// ErrStorageContention is returned once the retry budget for a
	// busy/locked storage engine is exhausted.
	ErrStorageContention = errors.New("memory: storage contention")
	// ErrMalformedInput marks input that can never succeed, e.g. an import
	// payload that is not a list of records.
	ErrMalformedInput = errors.New("memory: malformed input")
	// ErrNotFound is returned by Get and Update for unknown ids.
	ErrNotFound = errors.New("memory: not found")
)

// Metadata is the filterable part of a record.
type Metadata struct {
	WorkbaseID    string `json:"workbase_id"`
	ProjectName   string `json:"project_name"`
	Type          string `json:"type"`
	Category      string `json:"category"`
	Source        string `json:"source"`
	CreatedAt     string `json:"created_at"`
	SchemaVersion int    `json:"schema_version"`
	RootPath      string `json:"root_path,omitempty"`
}

// Record is a stored memory in its persisted and exported form.
type Record struct {
	ID       string   `json:"id"`
	Document string   `json:"document"`
	Metadata Metadata `json:"metadata"`
}

// QueryResult is a record ranked by cosine distance to a query.
type QueryResult struct {
	Record
	Distance float64 `json:"distance"`
}

// toMap flattens metadata into the string map chromem filters on.
func (m Metadata) toMap() map[string]string {
	out := map[string]string{
		"workbase_id":    m.WorkbaseID,
		"project_name":   m.ProjectName,
		"type":           m.Type,
		"category":       m.Category,
		"source":         m.Source,
		"created_at":     m.CreatedAt,
		"schema_version": strconv.Itoa(m.SchemaVersion),
	}
	if m.RootPath != "" {
		out["root_path"] = m.RootPath
	}
	return out
}

func metadataFromMap(in map[string]string) Metadata {
	v, _ := strconv.Atoi(in["schema_version"])
	return Metadata{
		WorkbaseID:    in["workbase_id"],
		ProjectName:   in["project_name"],
		Type:          in["type"],
		Category:      in["category"],
		Source:        in["source"],
		CreatedAt:     in["created_at"],
		SchemaVersion: v,
		RootPath:      in["root_path"],
	}
}

// Filter is a conjunction of equality predicates over metadata fields.
// An empty filter matches every record.
type Filter map[string]string

// filterColumns maps filterable metadata fields to their SQL columns.
var filterColumns = map[string]string{
	"workbase_id":  "workbase_id",
	"project_name": "project_name",
	"type":         "type",
	"category":     "category",
	"source":       "source",
	"root_path":    "root_path",
}

// RulesOf returns the filter selecting every rule of a workbase.
func RulesOf(workbaseID string) Filter {
	return Filter{"workbase_id": workbaseID, "type": TypeRule}
}

// Workbase returns the filter selecting every record of a workbase.
func Workbase(workbaseID string) Filter {
	return Filter{"workbase_id": workbaseID}
}

func (f Filter) validate() error {
	for k := range f {
		if _, ok := filterColumns[k]; !ok {
			return fmt.Errorf("%w: unknown filter field %q", ErrMalformedInput, k)
		}
	}
	return nil
}

// sql renders the filter as "AND col = ?" clauses in a stable order.
func (f Filter) sql() (string, []any) {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		fmt.Fprintf(&b, " AND %s = ?", filterColumns[k])
		args = append(args, f[k])
	}
	return b.String(), args
}

// where returns the chromem where-map, nil when the filter is empty.
func (f Filter) where() map[string]string {
	if len(f) == 0 {
		return nil
	}
	out := make(map[string]string, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
