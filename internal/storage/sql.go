package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"evalgo.org/mycelium/models"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQL is a Store over database/sql shared by the sqlite and postgres drivers.
type SQL struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQLite opens (and creates) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*SQL, error) {
	if path == "" {
		path = "mycelium.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)
	s := &SQL{db: db, dialect: dialectSQLite}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects through the pgx stdlib driver.
func OpenPostgres(ctx context.Context, dsn string, maxOpen int) (*SQL, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &SQL{db: db, dialect: dialectPostgres}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) migrate(ctx context.Context) error {
	seqColumn := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == dialectPostgres {
		seqColumn = "seq BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS patches (
			id TEXT PRIMARY KEY,
			target TEXT NOT NULL,
			status TEXT NOT NULL,
			spore TEXT NOT NULL DEFAULT '',
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS patches_target_status ON patches (target, status)`,
		`CREATE TABLE IF NOT EXISTS spores (
			id TEXT PRIMARY KEY,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS violations (
			id TEXT PRIMARY KEY,
			target TEXT NOT NULL,
			status TEXT NOT NULL,
			severity TEXT NOT NULL,
			ref_id TEXT NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS violations_target ON violations (target, status)`,
		`CREATE TABLE IF NOT EXISTS version_records (
			` + seqColumn + `,
			target TEXT NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS version_records_target ON version_records (target)`,
		`CREATE TABLE IF NOT EXISTS graph_snapshots (
			target TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			payload TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQL) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQL) exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	return err
}

func (s *SQL) PutPatch(ctx context.Context, p *models.Patch) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	err = s.exec(ctx, `INSERT INTO patches (id, target, status, spore, payload) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET target = excluded.target, status = excluded.status, spore = excluded.spore, payload = excluded.payload`,
		p.ID, p.Target, string(p.Status), p.Spore, string(data))
	if err != nil {
		return fmt.Errorf("put patch %s: %w", p.ID, err)
	}
	return nil
}

func (s *SQL) GetPatch(ctx context.Context, id string) (*models.Patch, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT payload FROM patches WHERE id = ?`), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("patch", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get patch %s: %w", id, err)
	}
	var p models.Patch
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, fmt.Errorf("decode patch %s: %w", id, err)
	}
	return &p, nil
}

func (s *SQL) ListPatches(ctx context.Context, filter PatchFilter) ([]*models.Patch, error) {
	query := `SELECT payload FROM patches WHERE 1 = 1`
	var args []any
	if filter.Target != "" {
		query += ` AND target = ?`
		args = append(args, filter.Target)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Spore != "" {
		query += ` AND spore = ?`
		args = append(args, filter.Spore)
	}
	query += ` ORDER BY id`

	out := make([]*models.Patch, 0)
	err := s.scanPayloads(ctx, query, args, func(data []byte) error {
		var p models.Patch
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode patch: %w", err)
		}
		out = append(out, &p)
		return nil
	})
	return out, err
}

func (s *SQL) PatchExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM patches WHERE id = ?`), id).Scan(&n); err != nil {
		return false, fmt.Errorf("patch exists %s: %w", id, err)
	}
	return n > 0, nil
}

func (s *SQL) PutSpore(ctx context.Context, sp *models.Spore) error {
	data, err := json.Marshal(sp)
	if err != nil {
		return fmt.Errorf("encode spore: %w", err)
	}
	if err := s.exec(ctx, `INSERT INTO spores (id, payload) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET payload = excluded.payload`, sp.ID, string(data)); err != nil {
		return fmt.Errorf("put spore %s: %w", sp.ID, err)
	}
	return nil
}

func (s *SQL) GetSpore(ctx context.Context, id string) (*models.Spore, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT payload FROM spores WHERE id = ?`), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("spore", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get spore %s: %w", id, err)
	}
	var sp models.Spore
	if err := json.Unmarshal([]byte(payload), &sp); err != nil {
		return nil, fmt.Errorf("decode spore %s: %w", id, err)
	}
	return &sp, nil
}

func (s *SQL) ListSpores(ctx context.Context) ([]*models.Spore, error) {
	out := make([]*models.Spore, 0)
	err := s.scanPayloads(ctx, `SELECT payload FROM spores ORDER BY id`, nil, func(data []byte) error {
		var sp models.Spore
		if err := json.Unmarshal(data, &sp); err != nil {
			return fmt.Errorf("decode spore: %w", err)
		}
		out = append(out, &sp)
		return nil
	})
	return out, err
}

func (s *SQL) PutViolation(ctx context.Context, v *models.Violation) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode violation: %w", err)
	}
	err = s.exec(ctx, `INSERT INTO violations (id, target, status, severity, ref_id, payload) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET status = excluded.status, payload = excluded.payload`,
		v.ID, v.Target, string(v.Status), string(v.Severity), v.Ref.ID, string(data))
	if err != nil {
		return fmt.Errorf("put violation %s: %w", v.ID, err)
	}
	return nil
}

func (s *SQL) GetViolation(ctx context.Context, id string) (*models.Violation, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT payload FROM violations WHERE id = ?`), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("violation", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get violation %s: %w", id, err)
	}
	var v models.Violation
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, fmt.Errorf("decode violation %s: %w", id, err)
	}
	return &v, nil
}

func (s *SQL) ListViolations(ctx context.Context, filter ViolationFilter) ([]*models.Violation, error) {
	query := `SELECT payload FROM violations WHERE 1 = 1`
	var args []any
	if filter.Target != "" {
		query += ` AND target = ?`
		args = append(args, filter.Target)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Severity != "" {
		query += ` AND severity = ?`
		args = append(args, string(filter.Severity))
	}
	if filter.RefID != "" {
		query += ` AND ref_id = ?`
		args = append(args, filter.RefID)
	}

	out := make([]*models.Violation, 0)
	err := s.scanPayloads(ctx, query, args, func(data []byte) error {
		var v models.Violation
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("decode violation: %w", err)
		}
		out = append(out, &v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortViolations(out)
	return out, nil
}

func (s *SQL) AppendVersionRecord(ctx context.Context, rec *models.VersionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode version record: %w", err)
	}
	var seq int64
	err = s.db.QueryRowContext(ctx, s.rebind(`INSERT INTO version_records (target, payload) VALUES (?, ?) RETURNING seq`),
		rec.Target, string(data)).Scan(&seq)
	if err != nil {
		return fmt.Errorf("append version record: %w", err)
	}
	rec.Sequence = seq
	return nil
}

func (s *SQL) ListVersionRecords(ctx context.Context, target string) ([]models.VersionRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT seq, payload FROM version_records WHERE target = ? ORDER BY seq`), target)
	if err != nil {
		return nil, fmt.Errorf("list version records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]models.VersionRecord, 0)
	for rows.Next() {
		var seq int64
		var payload string
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, fmt.Errorf("scan version record: %w", err)
		}
		var rec models.VersionRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode version record: %w", err)
		}
		rec.Sequence = seq
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQL) PutSnapshot(ctx context.Context, target, version string, data []byte) error {
	err := s.exec(ctx, `INSERT INTO graph_snapshots (target, version, payload) VALUES (?, ?, ?)
		ON CONFLICT (target) DO UPDATE SET version = excluded.version, payload = excluded.payload`,
		target, version, string(data))
	if err != nil {
		return fmt.Errorf("put snapshot %s: %w", target, err)
	}
	return nil
}

func (s *SQL) GetSnapshot(ctx context.Context, target string) (string, []byte, error) {
	var version, payload string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT version, payload FROM graph_snapshots WHERE target = ?`), target).Scan(&version, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, notFound("snapshot", target)
	}
	if err != nil {
		return "", nil, fmt.Errorf("get snapshot %s: %w", target, err)
	}
	return version, []byte(payload), nil
}

func (s *SQL) ListSnapshotTargets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT target FROM graph_snapshots ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQL) Close() error {
	return s.db.Close()
}

func (s *SQL) scanPayloads(ctx context.Context, query string, args []any, fn func([]byte) error) error {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := fn([]byte(payload)); err != nil {
			return err
		}
	}
	return rows.Err()
}
