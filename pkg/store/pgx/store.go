// Package pgx stores resolved extraction results in PostgreSQL.
package pgx

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DecisionNerd/infoextract-cidoc/internal/util"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/extraction"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"
	"github.com/DecisionNerd/infoextract-cidoc/pkg/store"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed migrations/*.sql
var migrations embed.FS

const rowChunk = 250

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// ResultDBStorage implements store.ResultStorage on a pgx pool or
// connection.
type ResultDBStorage struct {
	conn pgxIConn
}

var _ store.ResultStorage = (*ResultDBStorage)(nil)

// NewResultDBStorage wraps an open connection. Migrate must have run.
func NewResultDBStorage(conn pgxIConn) *ResultDBStorage {
	return &ResultDBStorage{conn: conn}
}

// migrateURL rewrites a postgres:// URL to the scheme of the pgx/v5
// migrate driver.
func migrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

// Migrate applies the embedded schema migrations.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(databaseURL))
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func marshalJSON(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(util.SanitizePostgresJSON(value))
}

type entityRow struct {
	id          string
	refID       string
	entityType  string
	classCode   string
	label       string
	description string
	confidence  float64
	sourceText  string
	properties  []byte
	details     []byte
}

func entityRows(entities []extraction.Entity) ([]entityRow, error) {
	rows := make([]entityRow, len(entities))
	for i, e := range entities {
		props, err := marshalJSON(mapOrNil(e.Attributes))
		if err != nil {
			return nil, fmt.Errorf("entity %s properties: %w", e.ID, err)
		}
		details, err := marshalJSON(mapOrNil(e.Details))
		if err != nil {
			return nil, fmt.Errorf("entity %s details: %w", e.ID, err)
		}
		rows[i] = entityRow{
			id:          e.ID.String(),
			refID:       util.SanitizePostgresText(e.RefID),
			entityType:  util.SanitizePostgresText(e.EntityType),
			classCode:   e.ClassCode,
			label:       util.SanitizePostgresText(e.Label),
			description: util.SanitizePostgresText(e.Description),
			confidence:  e.Confidence,
			sourceText:  util.SanitizePostgresText(e.SourceText),
			properties:  props,
			details:     details,
		}
	}
	return rows, nil
}

func mapOrNil(m map[string]any) any {
	if len(m) == 0 {
		return nil
	}
	return m
}

const upsertRun = `
INSERT INTO extraction_runs (id, status, error, metadata, dropped, updated_at)
VALUES ($1, $2, '', $3, $4, now())
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status, error = '', metadata = EXCLUDED.metadata,
    dropped = EXCLUDED.dropped, updated_at = now()`

const insertEntity = `
INSERT INTO crm_entities (run_id, id, position, ref_id, entity_type, class_code, label,
    description, confidence, source_text, properties, details)
VALUES ($1, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

const insertRelationship = `
INSERT INTO crm_relationships (run_id, id, position, source_id, target_id, property_code,
    property_label, confidence, source_text)
VALUES ($1, $2::uuid, $3, $4::uuid, $5::uuid, $6, $7, $8, $9)`

// SaveResult replaces the stored result of runID in one transaction.
func (s *ResultDBStorage) SaveResult(ctx context.Context, runID string, result *extraction.Result) error {
	if runID == "" {
		return errors.New("run id is required")
	}

	metadata, err := marshalJSON(result.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if metadata == nil {
		metadata = []byte("{}")
	}
	dropped, err := json.Marshal(result.Dropped)
	if err != nil {
		return fmt.Errorf("marshal dropped relationships: %w", err)
	}
	if result.Dropped == nil {
		dropped = []byte("[]")
	}
	entities, err := entityRows(result.Entities)
	if err != nil {
		return err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, upsertRun, runID, store.StatusCompleted, metadata, dropped); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM crm_relationships WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear relationships: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM crm_entities WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("clear entities: %w", err)
	}

	err = store.ChunkRange(len(entities), rowChunk, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for i := start; i < end; i++ {
			r := entities[i]
			batch.Queue(insertEntity, runID, r.id, i, r.refID, r.entityType, r.classCode, r.label,
				r.description, r.confidence, r.sourceText, r.properties, r.details)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("insert entities: %w", err)
	}

	rels := result.Relationships
	err = store.ChunkRange(len(rels), rowChunk, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for i := start; i < end; i++ {
			r := rels[i]
			batch.Queue(insertRelationship, runID, r.ID.String(), i, r.SourceID.String(), r.TargetID.String(),
				r.PropertyCode, util.SanitizePostgresText(r.PropertyLabel), r.Confidence,
				util.SanitizePostgresText(r.SourceText))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("insert relationships: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	logger.Debug("[Store][SaveResult] Saved run", "run_id", runID, "entities", len(entities), "relationships", len(rels))
	return nil
}

// MarkFailed records a failed run without touching any stored rows.
func (s *ResultDBStorage) MarkFailed(ctx context.Context, runID string, reason string) error {
	_, err := s.conn.Exec(ctx, `
INSERT INTO extraction_runs (id, status, error, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, error = EXCLUDED.error, updated_at = now()`,
		runID, store.StatusFailed, util.SanitizePostgresText(reason))
	if err != nil {
		return fmt.Errorf("mark run %s failed: %w", runID, err)
	}
	return nil
}

// LoadResult reads a completed run back in its saved order.
func (s *ResultDBStorage) LoadResult(ctx context.Context, runID string) (*extraction.Result, error) {
	var status string
	var metadata, dropped []byte
	err := s.conn.QueryRow(ctx,
		`SELECT status, metadata, dropped FROM extraction_runs WHERE id = $1`, runID,
	).Scan(&status, &metadata, &dropped)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	if status != store.StatusCompleted {
		return nil, fmt.Errorf("run %s is %s: %w", runID, status, store.ErrNotFound)
	}

	result := &extraction.Result{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &result.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if len(dropped) > 0 {
		if err := json.Unmarshal(dropped, &result.Dropped); err != nil {
			return nil, fmt.Errorf("decode dropped relationships: %w", err)
		}
	}

	if result.Entities, err = s.loadEntities(ctx, runID); err != nil {
		return nil, err
	}
	if result.Relationships, err = s.loadRelationships(ctx, runID); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ResultDBStorage) loadEntities(ctx context.Context, runID string) ([]extraction.Entity, error) {
	rows, err := s.conn.Query(ctx, `
SELECT id::text, ref_id, entity_type, class_code, label, description, confidence, source_text,
       properties, details
FROM crm_entities WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("load entities: %w", err)
	}
	defer rows.Close()

	entities := []extraction.Entity{}
	for rows.Next() {
		var e extraction.Entity
		var id string
		var props, details []byte
		if err := rows.Scan(&id, &e.RefID, &e.EntityType, &e.ClassCode, &e.Label, &e.Description,
			&e.Confidence, &e.SourceText, &props, &details); err != nil {
			return nil, err
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("entity id %q: %w", id, err)
		}
		if len(props) > 0 {
			if err := json.Unmarshal(props, &e.Attributes); err != nil {
				return nil, fmt.Errorf("entity %s properties: %w", id, err)
			}
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("entity %s details: %w", id, err)
			}
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

func (s *ResultDBStorage) loadRelationships(ctx context.Context, runID string) ([]extraction.Relationship, error) {
	rows, err := s.conn.Query(ctx, `
SELECT id::text, source_id::text, target_id::text, property_code, property_label, confidence, source_text
FROM crm_relationships WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("load relationships: %w", err)
	}
	defer rows.Close()

	rels := []extraction.Relationship{}
	for rows.Next() {
		var r extraction.Relationship
		var id, src, tgt string
		if err := rows.Scan(&id, &src, &tgt, &r.PropertyCode, &r.PropertyLabel, &r.Confidence, &r.SourceText); err != nil {
			return nil, err
		}
		for _, p := range []struct {
			raw string
			dst *uuid.UUID
		}{{id, &r.ID}, {src, &r.SourceID}, {tgt, &r.TargetID}} {
			if *p.dst, err = uuid.Parse(p.raw); err != nil {
				return nil, fmt.Errorf("relationship id %q: %w", p.raw, err)
			}
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}
