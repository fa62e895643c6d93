// Package postgres implements the knowledge store on PostgreSQL with the
// pgvector extension. Filters compile to WHERE clauses so they are hard
// constraints; cosine distance on the embedding column provides the ranking.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/perchfield/sidequest/internal/knowledge"
)

// Dimensions is the embedding width the schema is declared with. It matches
// OpenAI text-embedding-3-small.
const Dimensions = 1536

// Schema is the SQL DDL for the knowledge_entries table. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS knowledge_entries (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    race            TEXT NOT NULL DEFAULT '',
    role            TEXT NOT NULL DEFAULT '',
    region          TEXT NOT NULL DEFAULT '',
    affiliation     TEXT NOT NULL DEFAULT '',
    quest           TEXT NOT NULL DEFAULT '',
    locations       JSONB NOT NULL DEFAULT '[]',
    hostile         BOOLEAN NOT NULL DEFAULT FALSE,
    becomes_hostile BOOLEAN NOT NULL DEFAULT FALSE,
    drops           JSONB NOT NULL DEFAULT '[]',
    description     TEXT NOT NULL DEFAULT '',
    lore            TEXT NOT NULL DEFAULT '',
    dialogue        TEXT NOT NULL DEFAULT '',
    weakness        TEXT NOT NULL DEFAULT '',
    resistance      TEXT NOT NULL DEFAULT '',
    tips            TEXT NOT NULL DEFAULT '',
    embedding       vector(1536)
);
CREATE INDEX IF NOT EXISTS idx_knowledge_entries_region ON knowledge_entries(lower(region));
CREATE INDEX IF NOT EXISTS idx_knowledge_entries_role ON knowledge_entries(lower(role));
CREATE INDEX IF NOT EXISTS idx_knowledge_entries_race ON knowledge_entries(lower(race));
`

// entryColumns is the column list shared by all SELECTs, in scan order.
const entryColumns = `id, name, race, role, region, affiliation, quest,
       locations, hostile, becomes_hostile, drops,
       description, lore, dialogue, weakness, resistance, tips`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ knowledge.Store = (*Store)(nil)

// Store is a knowledge.Store backed by PostgreSQL + pgvector.
type Store struct {
	db DB
}

// NewStore creates a Store over the given connection or pool. Call
// [Store.Migrate] once before issuing queries.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL, creating the extension, table, and
// indexes if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("knowledge postgres: migrate: %w", err)
	}
	return nil
}

// Upsert creates or replaces an entry, embedding included.
func (s *Store) Upsert(ctx context.Context, e *knowledge.Entry) error {
	if e.ID == "" {
		return fmt.Errorf("knowledge postgres: entry has no ID")
	}
	if e.Name == "" {
		return fmt.Errorf("knowledge postgres: entry %q has no name", e.ID)
	}
	if len(e.Embedding) != Dimensions {
		return fmt.Errorf("knowledge postgres: entry %q embedding has %d dimensions, want %d",
			e.ID, len(e.Embedding), Dimensions)
	}

	locJSON, err := json.Marshal(emptySlice(e.Locations))
	if err != nil {
		return fmt.Errorf("knowledge postgres: marshal locations: %w", err)
	}
	dropsJSON, err := json.Marshal(emptySlice(e.Drops))
	if err != nil {
		return fmt.Errorf("knowledge postgres: marshal drops: %w", err)
	}

	const query = `
		INSERT INTO knowledge_entries (
			id, name, race, role, region, affiliation, quest,
			locations, hostile, becomes_hostile, drops,
			description, lore, dialogue, weakness, resistance, tips, embedding
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			race = EXCLUDED.race,
			role = EXCLUDED.role,
			region = EXCLUDED.region,
			affiliation = EXCLUDED.affiliation,
			quest = EXCLUDED.quest,
			locations = EXCLUDED.locations,
			hostile = EXCLUDED.hostile,
			becomes_hostile = EXCLUDED.becomes_hostile,
			drops = EXCLUDED.drops,
			description = EXCLUDED.description,
			lore = EXCLUDED.lore,
			dialogue = EXCLUDED.dialogue,
			weakness = EXCLUDED.weakness,
			resistance = EXCLUDED.resistance,
			tips = EXCLUDED.tips,
			embedding = EXCLUDED.embedding`

	_, err = s.db.Exec(ctx, query,
		e.ID, e.Name, e.Race, e.Role, e.Region, e.Affiliation, e.Quest,
		locJSON, e.Hostile, e.BecomesHostile, dropsJSON,
		e.Description, e.Lore, e.Dialogue, e.Weakness, e.Resistance, e.Tips,
		pgvector.NewVector(e.Embedding),
	)
	if err != nil {
		return fmt.Errorf("knowledge postgres: upsert %q: %w", e.ID, err)
	}
	return nil
}

// SearchVector implements knowledge.Store. Cosine distance orders the
// results; the returned score is similarity (1 - distance).
func (s *Store) SearchVector(ctx context.Context, vec []float32, f knowledge.Filter, topK int) ([]knowledge.Scored, error) {
	if topK <= 0 {
		return nil, nil
	}

	args := []any{pgvector.NewVector(vec)}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	query := `SELECT ` + entryColumns + `,
       1 - (embedding <=> $1) AS score
FROM knowledge_entries`
	if where := filterClause(f, next); where != "" {
		query += "\nWHERE " + where
	}
	query += "\nORDER BY embedding <=> $1\nLIMIT " + next(topK)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge postgres: %w: %w", knowledge.ErrUnavailable, err)
	}
	defer rows.Close()

	var results []knowledge.Scored
	for rows.Next() {
		var sc knowledge.Scored
		if err := scanEntry(rows, &sc.Entry, &sc.Score); err != nil {
			return nil, fmt.Errorf("knowledge postgres: scan: %w", err)
		}
		results = append(results, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("knowledge postgres: %w: %w", knowledge.ErrUnavailable, err)
	}
	return results, nil
}

// SearchFilter implements knowledge.Store.
func (s *Store) SearchFilter(ctx context.Context, f knowledge.Filter, limit int) ([]knowledge.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}

	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	query := `SELECT ` + entryColumns + `
FROM knowledge_entries`
	if where := filterClause(f, next); where != "" {
		query += "\nWHERE " + where
	}
	query += "\nORDER BY name\nLIMIT " + next(limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge postgres: %w: %w", knowledge.ErrUnavailable, err)
	}
	defer rows.Close()

	var entries []knowledge.Entry
	for rows.Next() {
		var e knowledge.Entry
		if err := scanEntry(rows, &e, nil); err != nil {
			return nil, fmt.Errorf("knowledge postgres: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("knowledge postgres: %w: %w", knowledge.ErrUnavailable, err)
	}
	return entries, nil
}

// filterClause compiles f into a WHERE clause, binding values through next.
// Returns "" for an empty filter.
func filterClause(f knowledge.Filter, next func(any) string) string {
	var clauses []string
	if len(f.Regions) > 0 {
		clauses = append(clauses, "lower(region) = ANY("+next(lowered(f.Regions))+")")
	}
	if len(f.Roles) > 0 {
		clauses = append(clauses, "lower(role) = ANY("+next(lowered(f.Roles))+")")
	}
	if len(f.Races) > 0 {
		clauses = append(clauses, "lower(race) = ANY("+next(lowered(f.Races))+")")
	}
	return strings.Join(clauses, " AND ")
}

// scanEntry scans one row into e, plus the trailing score column when score
// is non-nil.
func scanEntry(rows pgx.Rows, e *knowledge.Entry, score *float64) error {
	var locJSON, dropsJSON []byte

	dest := []any{
		&e.ID, &e.Name, &e.Race, &e.Role, &e.Region, &e.Affiliation, &e.Quest,
		&locJSON, &e.Hostile, &e.BecomesHostile, &dropsJSON,
		&e.Description, &e.Lore, &e.Dialogue, &e.Weakness, &e.Resistance, &e.Tips,
	}
	if score != nil {
		dest = append(dest, score)
	}
	if err := rows.Scan(dest...); err != nil {
		return err
	}

	if err := json.Unmarshal(locJSON, &e.Locations); err != nil {
		return fmt.Errorf("unmarshal locations: %w", err)
	}
	if err := json.Unmarshal(dropsJSON, &e.Drops); err != nil {
		return fmt.Errorf("unmarshal drops: %w", err)
	}
	return nil
}

func lowered(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// emptySlice returns s if non-nil, otherwise an empty non-nil slice, so
// JSON marshalling produces "[]" instead of "null".
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
