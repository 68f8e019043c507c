package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is replaced by tests that pin created_at.
var timeNow = time.Now

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds memory store configuration.
type Config struct {
	DataDir    string
	Collection string
	Embedder   Embedder
	Retry      RetryPolicy
	Logger     zerolog.Logger
}

// DefaultConfig returns the default configuration for the memory store.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir:    filepath.Join(home, "mybrain_data"),
		Collection: "mybrain_memory",
		Embedder:   NewLocalEmbedder(),
		Retry:      DefaultRetryPolicy(),
		Logger:     zerolog.Nop(),
	}
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the vector memory store: SQLite for durability, chromem-go for
// nearest-neighbour search.
type Store struct {
	db       *sql.DB
	cfg      Config
	index    *chromem.Collection
	embedder Embedder
	log      zerolog.Logger
	hooks    storeHooks
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type storeHooks struct {
	exec  func(ctx context.Context, db execer, query string, args ...any) (sql.Result, error)
	query func(ctx context.Context, db queryer, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execHook(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.hooks.exec != nil {
		return s.hooks.exec(ctx, s.db, query, args...)
	}
	return s.db.ExecContext(ctx, query, args...)
}

func (s *Store) queryHook(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.hooks.query != nil {
		return s.hooks.query(ctx, s.db, query, args...)
	}
	return s.db.QueryContext(ctx, query, args...)
}

// New creates a Store with the given configuration.
// It creates the data directory if needed, opens SQLite with WAL mode,
// runs migrations and hydrates the similarity index from the stored rows.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Collection == "" {
		cfg.Collection = "mybrain_memory"
	}
	if cfg.Embedder == nil {
		cfg.Embedder = NewLocalEmbedder()
	}
	if cfg.Retry.Budget <= 0 || cfg.Retry.Interval <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("memory: create data dir: %w", err)
	}

	dbPath := filepath.Join(cfg.DataDir, "memory.db")
	db, err := openDB("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("memory: open database: %w", err)
	}

	// busy_timeout stays short: contention is handled by RetryPolicy.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 50",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("memory: pragma %q: %w", p, err)
		}
	}

	index, err := chromem.NewDB().GetOrCreateCollection(cfg.Collection, nil, nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: create index: %w", err)
	}

	s := &Store{
		db:       db,
		cfg:      cfg,
		index:    index,
		embedder: cfg.Embedder,
		log:      cfg.Logger.With().Str("component", "memory").Logger(),
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: migration: %w", err)
	}
	if err := s.hydrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("memory: hydrate index: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS memories (
			collection     TEXT    NOT NULL,
			id             TEXT    NOT NULL,
			document       TEXT    NOT NULL,
			workbase_id    TEXT    NOT NULL DEFAULT '',
			project_name   TEXT    NOT NULL DEFAULT '',
			type           TEXT    NOT NULL DEFAULT '',
			category       TEXT    NOT NULL DEFAULT '',
			source         TEXT    NOT NULL DEFAULT '',
			root_path      TEXT    NOT NULL DEFAULT '',
			created_at     TEXT    NOT NULL,
			schema_version INTEGER NOT NULL DEFAULT 1,
			embedding      BLOB,
			embedder       TEXT    NOT NULL DEFAULT '',
			updated_at     TEXT    NOT NULL,
			PRIMARY KEY (collection, id)
		);

		CREATE INDEX IF NOT EXISTS idx_memories_workbase ON memories(collection, workbase_id, type);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// hydrate loads every row of the collection into the similarity index,
// re-embedding rows produced by a different embedder.
func (s *Store) hydrate(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, workbase_id, project_name, type, category, source, root_path,
		        created_at, schema_version, embedding, embedder
		 FROM memories WHERE collection = ?`, s.cfg.Collection)
	if err != nil {
		return err
	}

	type pending struct {
		rec Record
		emb []float32
	}
	var all []pending
	for rows.Next() {
		var (
			p        pending
			blob     []byte
			embedder string
		)
		if err := rows.Scan(&p.rec.ID, &p.rec.Document, &p.rec.Metadata.WorkbaseID, &p.rec.Metadata.ProjectName,
			&p.rec.Metadata.Type, &p.rec.Metadata.Category, &p.rec.Metadata.Source, &p.rec.Metadata.RootPath,
			&p.rec.Metadata.CreatedAt, &p.rec.Metadata.SchemaVersion, &blob, &embedder); err != nil {
			_ = rows.Close()
			return err
		}
		if embedder == s.embedder.Name() {
			p.emb = decodeEmbedding(blob)
		}
		all = append(all, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	reembedded := 0
	for _, p := range all {
		if len(p.emb) == 0 {
			emb, err := s.embedder.Embed(ctx, p.rec.Document)
			if err != nil {
				return fmt.Errorf("embed %s: %w", p.rec.ID, err)
			}
			p.emb = emb
			if _, err := s.db.ExecContext(ctx,
				`UPDATE memories SET embedding = ?, embedder = ? WHERE collection = ? AND id = ?`,
				encodeEmbedding(emb), s.embedder.Name(), s.cfg.Collection, p.rec.ID); err != nil {
				return err
			}
			reembedded++
		}
		if err := s.index.AddDocument(ctx, toDocument(p.rec, p.emb)); err != nil {
			return err
		}
	}

	s.log.Info().
		Str("collection", s.cfg.Collection).
		Int("records", len(all)).
		Int("reembedded", reembedded).
		Str("embedder", s.embedder.Name()).
		Msg("memory index hydrated")
	return nil
}

// ─── Operations ──────────────────────────────────────────────────────────────

// Add upserts a record: an existing id has its text and metadata replaced.
// created_at and schema_version are filled when absent.
func (s *Store) Add(ctx context.Context, id, text string, meta Metadata) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrMalformedInput)
	}
	now := timeNow().UTC()
	if meta.CreatedAt == "" {
		meta.CreatedAt = now.Format(time.RFC3339Nano)
	}
	if meta.SchemaVersion == 0 {
		meta.SchemaVersion = SchemaVersion
	}

	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("memory: embed: %w", err)
	}
	rec := Record{ID: id, Document: text, Metadata: meta}

	return s.cfg.Retry.do(ctx, s.log, "add", func() error {
		_, err := s.execHook(ctx,
			`INSERT INTO memories (collection, id, document, workbase_id, project_name, type, category, source,
			                       root_path, created_at, schema_version, embedding, embedder, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(collection, id) DO UPDATE SET
			   document = excluded.document,
			   workbase_id = excluded.workbase_id,
			   project_name = excluded.project_name,
			   type = excluded.type,
			   category = excluded.category,
			   source = excluded.source,
			   root_path = excluded.root_path,
			   created_at = excluded.created_at,
			   schema_version = excluded.schema_version,
			   embedding = excluded.embedding,
			   embedder = excluded.embedder,
			   updated_at = excluded.updated_at`,
			s.cfg.Collection, id, text, meta.WorkbaseID, meta.ProjectName, meta.Type, meta.Category, meta.Source,
			meta.RootPath, meta.CreatedAt, meta.SchemaVersion, encodeEmbedding(emb), s.embedder.Name(),
			now.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		return s.index.AddDocument(ctx, toDocument(rec, emb))
	})
}

// Update replaces the text of an existing record, keeping its metadata.
func (s *Store) Update(ctx context.Context, id, text string) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("memory: embed: %w", err)
	}
	rec.Document = text

	return s.cfg.Retry.do(ctx, s.log, "update", func() error {
		res, err := s.execHook(ctx,
			`UPDATE memories SET document = ?, embedding = ?, embedder = ?, updated_at = ?
			 WHERE collection = ? AND id = ?`,
			text, encodeEmbedding(emb), s.embedder.Name(), timeNow().UTC().Format(time.RFC3339Nano),
			s.cfg.Collection, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return s.index.AddDocument(ctx, toDocument(rec, emb))
	})
}

// Delete removes a record. Unknown ids are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.cfg.Retry.do(ctx, s.log, "delete", func() error {
		if _, err := s.execHook(ctx,
			`DELETE FROM memories WHERE collection = ? AND id = ?`, s.cfg.Collection, id); err != nil {
			return err
		}
		return s.index.Delete(ctx, nil, nil, id)
	})
}

// Get returns the record with the given id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	recs, err := s.selectRecords(ctx, "get", ` AND id = ?`, []any{id})
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return recs[0], nil
}

// GetAll returns every record matching filter, oldest first.
func (s *Store) GetAll(ctx context.Context, filter Filter) ([]Record, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	clause, args := filter.sql()
	return s.selectRecords(ctx, "get_all", clause+` ORDER BY created_at, id`, args)
}

// Count returns the number of records in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.cfg.Retry.do(ctx, s.log, "count", func() error {
		rows, err := s.queryHook(ctx, `SELECT COUNT(*) FROM memories WHERE collection = ?`, s.cfg.Collection)
		if err != nil {
			return err
		}
		defer rows.Close()
		if rows.Next() {
			if err := rows.Scan(&n); err != nil {
				return err
			}
		}
		return rows.Err()
	})
	return n, err
}

// Query returns up to limit records matching filter, nearest first.
// Distance is cosine distance (1 - cosine similarity).
func (s *Store) Query(ctx context.Context, text string, filter Filter, limit int) ([]QueryResult, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []QueryResult{}, nil
	}
	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("memory: embed: %w", err)
	}

	var out []QueryResult
	err = s.cfg.Retry.do(ctx, s.log, "query", func() error {
		out = []QueryResult{}
		res, err := nearest(ctx, s.index, emb, limit, filter.where())
		if err != nil {
			return err
		}
		for _, r := range res {
			out = append(out, QueryResult{
				Record: Record{
					ID:       r.ID,
					Document: r.Content,
					Metadata: metadataFromMap(r.Metadata),
				},
				Distance: 1 - float64(r.Similarity),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// similarityIndex is the part of the chromem collection Query uses.
type similarityIndex interface {
	Count() int
	QueryEmbedding(ctx context.Context, queryEmbedding []float32, nResults int, where, whereDocument map[string]string) ([]chromem.Result, error)
}

// maxClampAttempts bounds how often nearest re-reads a shrinking collection.
const maxClampAttempts = 3

// nearest queries idx for up to limit results. chromem rejects nResults above
// the collection size, and a concurrent Delete can shrink the collection
// between Count and QueryEmbedding; the query is then repeated with the new size.
func nearest(ctx context.Context, idx similarityIndex, emb []float32, limit int, where map[string]string) ([]chromem.Result, error) {
	for attempt := 1; ; attempt++ {
		n := min(limit, idx.Count())
		if n == 0 {
			return nil, nil
		}
		res, err := idx.QueryEmbedding(ctx, emb, n, where, nil)
		if err != nil && attempt < maxClampAttempts && idx.Count() < n {
			continue
		}
		return res, err
	}
}

func (s *Store) selectRecords(ctx context.Context, name, clause string, args []any) ([]Record, error) {
	var out []Record
	err := s.cfg.Retry.do(ctx, s.log, name, func() error {
		out = []Record{}
		rows, err := s.queryHook(ctx,
			`SELECT id, document, workbase_id, project_name, type, category, source, root_path,
			        created_at, schema_version
			 FROM memories WHERE collection = ?`+clause,
			append([]any{s.cfg.Collection}, args...)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var r Record
			if err := rows.Scan(&r.ID, &r.Document, &r.Metadata.WorkbaseID, &r.Metadata.ProjectName,
				&r.Metadata.Type, &r.Metadata.Category, &r.Metadata.Source, &r.Metadata.RootPath,
				&r.Metadata.CreatedAt, &r.Metadata.SchemaVersion); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func toDocument(r Record, emb []float32) chromem.Document {
	return chromem.Document{
		ID:        r.ID,
		Metadata:  r.Metadata.toMap(),
		Embedding: emb,
		Content:   r.Document,
	}
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
