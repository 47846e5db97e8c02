package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fixzit/fm-service/internal/config"
	"github.com/fixzit/fm-service/internal/domain"
	"github.com/fixzit/fm-service/internal/repository"
)

const pgUniqueViolation = "23505"

// NewPostgresPool establishes a connection pool for cfg.DSN.
func NewPostgresPool(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, errors.New("POSTGRES_DSN not provided")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres")
	return pool, nil
}

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the JSONB document store. Conditional updates are a single
// UPDATE ... WHERE version ... RETURNING statement.
type PostgresStore struct {
	pool *pgxpool.Pool
	pgQueries
}

type pgQueries struct {
	db pgQuerier
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, pgQueries: pgQueries{db: pool}}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgQueries{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Pool exposes the pool for components that share the database.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const documentColumns = `kind, organization_id, id, status, version, body, created_at, updated_at`

func (q *pgQueries) Insert(ctx context.Context, doc *repository.Document) error {
	// A duplicate must not abort an enclosing transaction.
	const query = `
        INSERT INTO documents (` + documentColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT DO NOTHING`
	tag, err := q.db.Exec(ctx, query,
		string(doc.Kind),
		doc.OrganizationID,
		doc.ID,
		doc.Status,
		doc.Version,
		[]byte(doc.Body),
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return repository.ErrDuplicate
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrDuplicate
	}
	return nil
}

func (q *pgQueries) Get(ctx context.Context, kind domain.EntityKind, organizationID, id string) (*repository.Document, error) {
	const query = `
        SELECT ` + documentColumns + `
        FROM documents WHERE kind=$1 AND organization_id=$2 AND id=$3`
	doc, err := scanDocument(q.db.QueryRow(ctx, query, string(kind), organizationID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return doc, err
}

func (q *pgQueries) List(ctx context.Context, filter repository.ListFilter) ([]repository.Document, error) {
	clauses := []string{"kind=$1", "organization_id=$2"}
	args := []any{string(filter.Kind), filter.OrganizationID}
	if len(filter.Statuses) > 0 {
		args = append(args, filter.Statuses)
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	query := `SELECT ` + documentColumns + ` FROM documents WHERE ` + strings.Join(clauses, " AND ") +
		` ORDER BY created_at DESC, id ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []repository.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *doc)
	}
	return result, rows.Err()
}

func (q *pgQueries) ConditionalUpdate(ctx context.Context, filter repository.Filter, update repository.Update) (*repository.Document, error) {
	const query = `
        UPDATE documents SET status=$1, body=$2, updated_at=$3, version=version+1
        WHERE kind=$4 AND organization_id=$5 AND id=$6 AND version=$7 AND ($8 = '' OR status=$8)
        RETURNING ` + documentColumns
	doc, err := scanDocument(q.db.QueryRow(ctx, query,
		update.Status,
		[]byte(update.Body),
		update.UpdatedAt,
		string(filter.Kind),
		filter.OrganizationID,
		filter.ID,
		filter.ExpectedVersion,
		filter.ExpectedStatus,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return doc, err
}

func (q *pgQueries) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	oldValue, newValue, err := encodeAuditValues(entry)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO audit_log (id, organization_id, entity_kind, entity_id, actor_id, actor_role, action,
            from_status, to_status, version, old_value, new_value, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err = q.db.Exec(ctx, query,
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
		oldValue,
		newValue,
		entry.CreatedAt,
	)
	return err
}

func (q *pgQueries) ListAudit(ctx context.Context, organizationID string, kind domain.EntityKind, entityID string) ([]domain.AuditEntry, error) {
	const query = `
        SELECT id, organization_id, entity_kind, entity_id, actor_id, actor_role, action,
               from_status, to_status, version, old_value, new_value, created_at
        FROM audit_log WHERE organization_id=$1 AND entity_kind=$2 AND entity_id=$3
        ORDER BY created_at ASC, version ASC`
	rows, err := q.db.Query(ctx, query, organizationID, string(kind), entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var (
			entry              domain.AuditEntry
			oldValue, newValue []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.OrganizationID,
			&entry.EntityKind,
			&entry.EntityID,
			&entry.Actor.UserID,
			&entry.Actor.Role,
			&entry.Action,
			&entry.FromStatus,
			&entry.ToStatus,
			&entry.Version,
			&oldValue,
			&newValue,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := decodeAuditValues(&entry, oldValue, newValue); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*repository.Document, error) {
	var (
		doc  repository.Document
		kind string
		body []byte
	)
	if err := row.Scan(
		&kind,
		&doc.OrganizationID,
		&doc.ID,
		&doc.Status,
		&doc.Version,
		&body,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	doc.Kind = domain.EntityKind(kind)
	doc.Body = json.RawMessage(body)
	return &doc, nil
}

func encodeAuditValues(entry *domain.AuditEntry) ([]byte, []byte, error) {
	var oldValue, newValue []byte
	var err error
	if entry.OldValue != nil {
		if oldValue, err = json.Marshal(entry.OldValue); err != nil {
			return nil, nil, fmt.Errorf("encode audit old value: %w", err)
		}
	}
	if entry.NewValue != nil {
		if newValue, err = json.Marshal(entry.NewValue); err != nil {
			return nil, nil, fmt.Errorf("encode audit new value: %w", err)
		}
	}
	return oldValue, newValue, nil
}

func decodeAuditValues(entry *domain.AuditEntry, oldValue, newValue []byte) error {
	if len(oldValue) > 0 {
		if err := json.Unmarshal(oldValue, &entry.OldValue); err != nil {
			return fmt.Errorf("decode audit old value: %w", err)
		}
	}
	if len(newValue) > 0 {
		if err := json.Unmarshal(newValue, &entry.NewValue); err != nil {
			return fmt.Errorf("decode audit new value: %w", err)
		}
	}
	return nil
}
