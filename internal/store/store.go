// Package store persists annotations and their notes in SQLite.
//
// Positions and relations are stored as JSON columns; notes live in their own
// table ordered by creation. Export and Import move a scope between databases
// as xz-compressed JSON lines.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/FocuswithJustin/marginalia/core/anchor"
	"github.com/FocuswithJustin/marginalia/core/annotation"
	"github.com/FocuswithJustin/marginalia/core/errors"
	"github.com/FocuswithJustin/marginalia/core/sqlite"
	"github.com/FocuswithJustin/marginalia/internal/logging"
)

var migrations = []string{
	`CREATE TABLE annotations (
		id         TEXT PRIMARY KEY,
		scope      TEXT NOT NULL,
		position   TEXT NOT NULL,
		text       TEXT NOT NULL,
		color      TEXT NOT NULL,
		relations  TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX annotations_scope ON annotations(scope, created_at);
	CREATE TABLE notes (
		id            TEXT PRIMARY KEY,
		annotation_id TEXT NOT NULL REFERENCES annotations(id) ON DELETE CASCADE,
		seq           INTEGER NOT NULL,
		content       TEXT NOT NULL,
		tags          TEXT NOT NULL DEFAULT '[]',
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);
	CREATE INDEX notes_annotation ON notes(annotation_id, seq)`,
}

const timeLayout = time.RFC3339Nano

// Store is an annotation database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and migrates its schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlite.OpenFile(ctx, path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	version, err := sqlite.Migrate(ctx, db, migrations)
	if err != nil {
		db.Close()
		return nil, errors.NewIO("migrate", path, err)
	}
	logging.Debug("store opened", "path", path, "schema_version", version, "driver", sqlite.DriverType())
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces an annotation and its notes.
func (s *Store) Save(ctx context.Context, a *annotation.Annotation) error {
	if a == nil {
		return errors.NewValidation("annotation", "is nil")
	}
	if err := a.Validate(); err != nil {
		return err
	}
	pos, err := json.Marshal(a.Position)
	if err != nil {
		return errors.Wrap(err, "encode position")
	}
	rels, err := json.Marshal(nonNil(a.Relations))
	if err != nil {
		return errors.Wrap(err, "encode relations")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO annotations (id, scope, position, text, color, relations, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			scope = excluded.scope,
			position = excluded.position,
			text = excluded.text,
			color = excluded.color,
			relations = excluded.relations,
			updated_at = excluded.updated_at`,
		a.ID, a.Scope, string(pos), a.Text, a.Style.ColorOrDefault(), string(rels),
		a.CreatedAt.UTC().Format(timeLayout), a.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return errors.Wrapf(err, "save annotation %s", a.ID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE annotation_id = ?`, a.ID); err != nil {
		return errors.Wrapf(err, "save notes for %s", a.ID)
	}
	for i, n := range a.Notes {
		tags, err := json.Marshal(nonNil(n.Tags))
		if err != nil {
			return errors.Wrap(err, "encode tags")
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO notes (id, annotation_id, seq, content, tags, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			n.ID, a.ID, i, n.Content, string(tags),
			n.CreatedAt.UTC().Format(timeLayout), n.UpdatedAt.UTC().Format(timeLayout))
		if err != nil {
			return errors.Wrapf(err, "save note %s", n.ID)
		}
	}
	return tx.Commit()
}

// Delete removes an annotation and its notes.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM annotations WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "delete annotation %s", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NewNotFound("annotation", id)
	}
	return nil
}

// Get loads one annotation with its notes.
func (s *Store) Get(ctx context.Context, id string) (*annotation.Annotation, error) {
	rows, err := s.db.QueryContext(ctx, selectAnnotations+` WHERE id = ?`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get annotation %s", id)
	}
	anns, err := s.scan(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(anns) == 0 {
		return nil, errors.NewNotFound("annotation", id)
	}
	return anns[0], nil
}

// ListByScope returns the annotations of a scope in creation order. An empty
// scope lists everything.
func (s *Store) ListByScope(ctx context.Context, scope string) ([]*annotation.Annotation, error) {
	query := selectAnnotations
	var args []any
	if scope != "" {
		query += ` WHERE scope = ?`
		args = append(args, scope)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "list scope %q", scope)
	}
	return s.scan(ctx, rows)
}

// Scopes returns every scope with at least one annotation.
func (s *Store) Scopes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT scope FROM annotations ORDER BY scope`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, err
		}
		out = append(out, scope)
	}
	return out, rows.Err()
}

const selectAnnotations = `SELECT id, scope, position, text, color, relations, created_at, updated_at FROM annotations`

// scan reads annotation rows, closes them, then loads notes.
func (s *Store) scan(ctx context.Context, rows *sql.Rows) ([]*annotation.Annotation, error) {
	var out []*annotation.Annotation
	for rows.Next() {
		var a annotation.Annotation
		var pos, rels, created, updated string
		if err := rows.Scan(&a.ID, &a.Scope, &pos, &a.Text, &a.Style.Color, &rels, &created, &updated); err != nil {
			rows.Close()
			return nil, err
		}
		a.Position = new(anchor.Position)
		if err := json.Unmarshal([]byte(pos), a.Position); err != nil {
			rows.Close()
			return nil, errors.NewParse("json", a.ID, "position: "+err.Error())
		}
		if err := json.Unmarshal([]byte(rels), &a.Relations); err != nil {
			rows.Close()
			return nil, errors.NewParse("json", a.ID, "relations: "+err.Error())
		}
		if len(a.Relations) == 0 {
			a.Relations = nil
		}
		a.CreatedAt, _ = time.Parse(timeLayout, created)
		a.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, a := range out {
		notes, err := s.notes(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		a.Notes = notes
	}
	return out, nil
}

func (s *Store) notes(ctx context.Context, annotationID string) ([]annotation.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, tags, created_at, updated_at
		FROM notes WHERE annotation_id = ? ORDER BY seq`, annotationID)
	if err != nil {
		return nil, errors.Wrapf(err, "load notes for %s", annotationID)
	}
	defer rows.Close()
	var out []annotation.Note
	for rows.Next() {
		var (
			n                      annotation.Note
			tags, created, updated string
		)
		if err := rows.Scan(&n.ID, &n.Content, &tags, &created, &updated); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
			return nil, errors.NewParse("json", n.ID, "tags: "+err.Error())
		}
		if len(n.Tags) == 0 {
			n.Tags = nil
		}
		n.CreatedAt, _ = time.Parse(timeLayout, created)
		n.UpdatedAt, _ = time.Parse(timeLayout, updated)
		out = append(out, n)
	}
	return out, rows.Err()
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
