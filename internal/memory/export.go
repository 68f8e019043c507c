package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/HendryAvila/mybrain/internal/identity"
	"github.com/HendryAvila/mybrain/internal/workbase"
)

// RecordsSchema is the JSON schema of an export file: a list of records.
const RecordsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "document", "metadata"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "document": {"type": "string"},
      "metadata": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "workbase_id": {"type": "string"},
          "project_name": {"type": "string"},
          "type": {"type": "string", "enum": ["rule", "context", "constraint"]},
          "category": {"type": "string"},
          "source": {"type": "string"},
          "created_at": {"type": "string"},
          "schema_version": {"type": "integer", "minimum": 1},
          "root_path": {"type": "string"}
        }
      }
    }
  }
}`

var recordsSchema = gojsonschema.NewStringLoader(RecordsSchema)

// ImportResult holds counts of imported records.
type ImportResult struct {
	Imported   int    `json:"imported"`
	WorkbaseID string `json:"workbase_id,omitempty"`
	Remapped   bool   `json:"remapped"`
}

// Export returns every record matching filter in export form.
func (s *Store) Export(ctx context.Context, filter Filter) ([]Record, error) {
	return s.GetAll(ctx, filter)
}

// ExportJSON is Export serialized as an indented JSON array.
func (s *Store) ExportJSON(ctx context.Context, filter Filter) ([]byte, error) {
	recs, err := s.Export(ctx, filter)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(recs, "", "  ")
}

// ParseRecords validates and decodes an export payload.
func ParseRecords(data []byte) ([]Record, error) {
	result, err := gojsonschema.Validate(recordsSchema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedInput, strings.Join(msgs, "; "))
	}

	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return recs, nil
}

// Import upserts the records in data. When target is non-nil every record is
// moved into that workbase and its id re-derived there, so importing another
// project's export never collides with ids it already holds.
func (s *Store) Import(ctx context.Context, data []byte, target *workbase.Workbase) (ImportResult, error) {
	recs, err := ParseRecords(data)
	if err != nil {
		return ImportResult{}, err
	}

	res := ImportResult{Remapped: target != nil}
	if target != nil {
		res.WorkbaseID = target.ID
	}
	for _, r := range recs {
		if target != nil {
			r = Remap(r, *target)
		}
		if err := s.Add(ctx, r.ID, r.Document, r.Metadata); err != nil {
			return res, fmt.Errorf("import %s: %w", r.ID, err)
		}
		res.Imported++
	}

	s.log.Info().Int("imported", res.Imported).Bool("remapped", res.Remapped).Msg("memories imported")
	return res, nil
}

// Remap moves a record into wb, deriving its id from its type and text.
func Remap(r Record, wb workbase.Workbase) Record {
	r.Metadata.WorkbaseID = wb.ID
	if wb.ProjectName != "" {
		r.Metadata.ProjectName = wb.ProjectName
	}
	if r.Metadata.Type == TypeContext {
		r.ID = identity.ContextID(wb.ID)
		if wb.RootPath != "" {
			r.Metadata.RootPath = wb.RootPath
		}
	} else {
		r.ID = identity.MemoryID(r.Metadata.Type, wb.ID, r.Document)
	}
	return r
}
