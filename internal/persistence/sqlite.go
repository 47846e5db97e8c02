package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/repository"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
    kind            TEXT    NOT NULL,
    organization_id TEXT    NOT NULL,
    id              TEXT    NOT NULL,
    status          TEXT    NOT NULL,
    version         INTEGER NOT NULL,
    body            TEXT    NOT NULL,
    created_at      TEXT    NOT NULL,
    updated_at      TEXT    NOT NULL,
    PRIMARY KEY (kind, organization_id, id)
);

CREATE INDEX IF NOT EXISTS idx_documents_org_kind_status
    ON documents (organization_id, kind, status);

CREATE TABLE IF NOT EXISTS audit_log (
    id              TEXT    PRIMARY KEY,
    organization_id TEXT    NOT NULL,
    entity_kind     TEXT    NOT NULL,
    entity_id       TEXT    NOT NULL,
    actor_id        TEXT    NOT NULL,
    actor_role      TEXT    NOT NULL,
    action          TEXT    NOT NULL,
    from_status     TEXT    NOT NULL DEFAULT '',
    to_status       TEXT    NOT NULL DEFAULT '',
    version         INTEGER NOT NULL,
    old_value       TEXT,
    new_value       TEXT,
    created_at      TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_entity
    ON audit_log (organization_id, entity_kind, entity_id, created_at);
`

// SQLiteStore is the embedded document store for single-node deployments
// and tests. Use ":memory:" for a throwaway database.
type SQLiteStore struct {
	db *sql.DB
	sqliteQueries
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqliteQueries struct {
	db sqlQuerier
}

// NewSQLiteStore opens path and creates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers; for :memory: it is also the
	// only way every caller sees the same database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db, sqliteQueries: sqliteQueries{db: db}}, nil
}

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &sqliteQueries{db: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteTimeLayout is fixed width so text ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

func (q *sqliteQueries) Insert(ctx context.Context, doc *repository.Document) error {
	_, err := q.db.ExecContext(ctx, `
        INSERT INTO documents (`+documentColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(doc.Kind),
		doc.OrganizationID,
		doc.ID,
		doc.Status,
		doc.Version,
		string(doc.Body),
		formatTime(doc.CreatedAt),
		formatTime(doc.UpdatedAt),
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return repository.ErrDuplicate
	}
	return err
}

func (q *sqliteQueries) Get(ctx context.Context, kind domain.EntityKind, organizationID, id string) (*repository.Document, error) {
	row := q.db.QueryRowContext(ctx, `
        SELECT `+documentColumns+`
        FROM documents WHERE kind = ? AND organization_id = ? AND id = ?`,
		string(kind), organizationID, id)
	doc, err := scanSQLiteDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return doc, err
}

func (q *sqliteQueries) List(ctx context.Context, filter repository.ListFilter) ([]repository.Document, error) {
	clauses := []string{"kind = ?", "organization_id = ?"}
	args := []any{string(filter.Kind), filter.OrganizationID}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			marks[i] = "?"
			args = append(args, status)
		}
		clauses = append(clauses, "status IN ("+strings.Join(marks, ", ")+")")
	}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY created_at DESC, id ASC`
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []repository.Document
	for rows.Next() {
		doc, err := scanSQLiteDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *doc)
	}
	return result, rows.Err()
}

func (q *sqliteQueries) ConditionalUpdate(ctx context.Context, filter repository.Filter, update repository.Update) (*repository.Document, error) {
	row := q.db.QueryRowContext(ctx, `
        UPDATE documents SET status = ?, body = ?, updated_at = ?, version = version + 1
        WHERE kind = ? AND organization_id = ? AND id = ? AND version = ? AND (? = '' OR status = ?)
        RETURNING `+documentColumns,
		update.Status,
		string(update.Body),
		formatTime(update.UpdatedAt),
		string(filter.Kind),
		filter.OrganizationID,
		filter.ID,
		filter.ExpectedVersion,
		filter.ExpectedStatus,
		filter.ExpectedStatus,
	)
	doc, err := scanSQLiteDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return doc, err
}

func (q *sqliteQueries) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	oldValue, newValue, err := encodeAuditValues(entry)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
        INSERT INTO audit_log (id, organization_id, entity_kind, entity_id, actor_id, actor_role, action,
            from_status, to_status, version, old_value, new_value, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.OrganizationID,
		string(entry.EntityKind),
		entry.EntityID,
		entry.Actor.UserID,
		string(entry.Actor.Role),
		string(entry.Action),
		entry.FromStatus,
		entry.ToStatus,
		entry.Version,
		nullableText(oldValue),
		nullableText(newValue),
		formatTime(entry.CreatedAt),
	)
	return err
}

func (q *sqliteQueries) ListAudit(ctx context.Context, organizationID string, kind domain.EntityKind, entityID string) ([]domain.AuditEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
        SELECT id, organization_id, entity_kind, entity_id, actor_id, actor_role, action,
               from_status, to_status, version, old_value, new_value, created_at
        FROM audit_log WHERE organization_id = ? AND entity_kind = ? AND entity_id = ?
        ORDER BY created_at ASC, version ASC`,
		organizationID, string(kind), entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var (
			entry              domain.AuditEntry
			entityKind, role   string
			action, createdAt  string
			oldValue, newValue sql.NullString
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.OrganizationID,
			&entityKind,
			&entry.EntityID,
			&entry.Actor.UserID,
			&role,
			&action,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.Version,
			&oldValue,
			&newValue,
			&createdAt,
		); err != nil {
			return nil, err
		}
		entry.EntityKind = domain.EntityKind(entityKind)
		entry.Actor.Role = domain.Role(role)
		entry.Action = domain.AuditAction(action)
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if err := decodeAuditValues(&entry, []byte(oldValue.String), []byte(newValue.String)); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func nullableText(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}

func scanSQLiteDocument(row rowScanner) (*repository.Document, error) {
	var (
		doc                  repository.Document
		kind, body           string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&kind,
		&doc.OrganizationID,
		&doc.ID,
		&doc.Status,
		&doc.Version,
		&body,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if doc.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	doc.Kind = domain.EntityKind(kind)
	doc.Body = []byte(body)
	return &doc, nil
}
