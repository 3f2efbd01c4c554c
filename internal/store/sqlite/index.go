// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/delm/internal/store"
	delmerr "github.com/sigil-dev/delm/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.Index = (*Index)(nil)

// columns maps filter fields onto table columns. Only these names ever reach SQL text.
var columns = map[store.Field]string{
	store.FieldID:       "id",
	store.FieldCategory: "category",
	store.FieldName:     "name",
}

// Index implements store.Index backed by SQLite with sqlite-vec distance functions.
// Each collection is a plain table; search ranks with vec_distance_cosine after
// the metadata filter has been applied in the WHERE clause.
type Index struct {
	mu         sync.RWMutex
	db         *sql.DB
	collection string
	dimension  int
}

// NewIndex opens (or creates) a SQLite database at dbPath and initialises the
// collection table and its bookkeeping row.
func NewIndex(dbPath, collection string, dimension int) (*Index, error) {
	if !store.ValidCollectionName(collection) {
		return nil, delmerr.Errorf(delmerr.CodeStoreConfigInvalid, "invalid collection name %q", collection)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrate(db, collection, dimension); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Index{db: db, collection: collection, dimension: dimension}, nil
}

func migrate(db *sql.DB, collection string, dimension int) error {
	// SQLite table names are case-insensitive, so the counter row must be too.
	const metaDDL = `
CREATE TABLE IF NOT EXISTS collections (
	name      TEXT PRIMARY KEY COLLATE NOCASE,
	dimension INTEGER NOT NULL,
	count     INTEGER NOT NULL DEFAULT 0
)`
	if _, err := db.Exec(metaDDL); err != nil {
		return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "creating collections table: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := createCollection(tx, collection); err != nil {
		return err
	}

	if _, err := tx.Exec(`INSERT OR IGNORE INTO collections(name, dimension, count) VALUES (?, ?, 0)`, collection, dimension); err != nil {
		return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "registering collection: %w", err)
	}

	var stored int
	if err := tx.QueryRow(`SELECT dimension FROM collections WHERE name = ?`, collection).Scan(&stored); err != nil {
		return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "reading collection dimension: %w", err)
	}
	if stored != dimension {
		return delmerr.New(delmerr.CodeStoreOpenSchemaMismatch,
			"collection was created with a different vector dimension",
			delmerr.FieldCollection(collection),
			delmerr.Field("stored", stored),
			delmerr.Field("configured", dimension),
		)
	}

	if err := tx.Commit(); err != nil {
		return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "committing migration: %w", err)
	}
	return nil
}

// createCollection creates the pattern table and its indexes if absent.
// collection has been validated as a plain identifier by the caller.
func createCollection(tx *sql.Tx, collection string) error {
	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
	id       TEXT NOT NULL,
	content  TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	name     TEXT NOT NULL DEFAULT '',
	tags     TEXT NOT NULL DEFAULT '',
	vector   BLOB NOT NULL
)`, collection),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %q ON %q(id)`, collection+"_id", collection),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q(category)`, collection+"_category", collection),
	}
	for _, stmt := range ddl {
		if _, err := tx.Exec(stmt); err != nil {
			return delmerr.Wrap(err, delmerr.CodeStoreDatabaseFailure, "creating collection table", delmerr.FieldCollection(collection))
		}
	}
	return nil
}

func (x *Index) Insert(ctx context.Context, p store.Pattern) error {
	return x.InsertBatch(ctx, []store.Pattern{p})
}

func (x *Index) InsertBatch(ctx context.Context, ps []store.Pattern) error {
	if err := store.ValidateBatch(ps, x.dimension); err != nil {
		return err
	}
	if len(ps) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %q(id, content, category, name, tags, vector) VALUES (?, ?, ?, ?, ?, ?)`, x.collection))
	if err != nil {
		return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range ps {
		blob, err := sqlite_vec.SerializeFloat32(p.Vector)
		if err != nil {
			return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "serializing vector %s: %w", p.ID, err)
		}
		_, err = stmt.ExecContext(ctx, p.ID, p.Content, p.Metadata.Category, p.Metadata.Name, store.JoinTags(p.Metadata.Tags), blob)
		if isUniqueViolation(err) {
			return delmerr.New(delmerr.CodeStorePatternInsertConflict, "pattern already exists", delmerr.FieldPatternID(p.ID))
		}
		if err != nil {
			return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "inserting pattern %s: %w", p.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE collections SET count = count + ? WHERE name = ?`, len(ps), x.collection); err != nil {
		return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "updating pattern count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "committing insert: %w", err)
	}
	return nil
}

// Search ranks by cosine distance. Score is distance: 0.0 is an exact match.
func (x *Index) Search(ctx context.Context, q store.Query) ([]store.Result, error) {
	if err := store.ValidateQuery(&q, x.dimension); err != nil {
		return nil, err
	}
	if q.TopK == 0 {
		return []store.Result{}, nil
	}

	blob, err := sqlite_vec.SerializeFloat32(q.Vector)
	if err != nil {
		return nil, delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "serializing query vector: %w", err)
	}

	where, filterArgs := buildWhere(q.Filter)
	args := append([]any{blob}, filterArgs...)

	var sb strings.Builder
	fmt.Fprintf(&sb, `SELECT id, content, category, name, tags, distance FROM (
	SELECT id, content, category, name, tags, vec_distance_cosine(vector, ?) AS distance
	FROM %q%s
)`, x.collection, where)
	if q.MaxDistance > 0 {
		sb.WriteString(` WHERE distance <= ?`)
		args = append(args, q.MaxDistance)
	}
	sb.WriteString(` ORDER BY distance LIMIT ?`)
	args = append(args, q.TopK)

	x.mu.RLock()
	defer x.mu.RUnlock()

	rows, err := x.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "searching patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := []store.Result{}
	for rows.Next() {
		var r store.Result
		var tags string
		if err := rows.Scan(&r.ID, &r.Content, &r.Metadata.Category, &r.Metadata.Name, &tags, &r.Distance); err != nil {
			return nil, delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "scanning search result: %w", err)
		}
		r.Metadata.Tags = store.SplitTags(tags)
		if r.Distance < 0 {
			r.Distance = 0
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "iterating search results: %w", err)
	}

	return results, nil
}

// buildWhere renders a validated filter as a parameterised WHERE clause.
func buildWhere(f store.Filter) (string, []any) {
	if len(f) == 0 {
		return "", nil
	}

	var conds []string
	var args []any
	for _, p := range f {
		col := columns[p.Field]
		switch {
		case p.Op == store.OpEq:
			conds = append(conds, col+" = ?")
			args = append(args, p.Values[0])
		case len(p.Values) == 0:
			conds = append(conds, "0")
		default:
			conds = append(conds, col+" IN ("+strings.TrimSuffix(strings.Repeat("?,", len(p.Values)), ",")+")")
			for _, v := range p.Values {
				args = append(args, v)
			}
		}
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (x *Index) Get(ctx context.Context, id string) (*store.Pattern, bool, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	q := fmt.Sprintf(`SELECT id, content, category, name, tags, vector FROM %q WHERE id = ? LIMIT 1`, x.collection)

	var p store.Pattern
	var tags string
	var blob []byte
	err := x.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.Content, &p.Metadata.Category, &p.Metadata.Name, &tags, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "getting pattern %s: %w", id, err)
	}

	p.Metadata.Tags = store.SplitTags(tags)
	p.Vector = deserializeFloat32(blob)
	return &p, true, nil
}

func (x *Index) Count(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var n int
	if err := x.db.QueryRowContext(ctx, `SELECT count FROM collections WHERE name = ?`, x.collection).Scan(&n); err != nil {
		return 0, delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "counting patterns: %w", err)
	}
	return n, nil
}

// Clear drops the collection table and recreates it empty in one transaction.
func (x *Index) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q`, x.collection)); err != nil {
		return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "dropping collection: %w", err)
	}
	if err := createCollection(tx, x.collection); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE collections SET count = 0 WHERE name = ?`, x.collection); err != nil {
		return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "resetting pattern count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return delmerr.Errorf(delmerr.CodeStoreDatabaseFailure, "committing clear: %w", err)
	}
	return nil
}

func (x *Index) Dimension() int     { return x.dimension }
func (x *Index) Collection() string { return x.collection }

// Close closes the underlying database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// deserializeFloat32 is the inverse of sqlite_vec.SerializeFloat32 (little-endian float32).
func deserializeFloat32(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
