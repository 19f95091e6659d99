// Package records reads candidate work items straight from the Tasy Oracle
// database so operators can pick what to submit.
package records

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/sijms/go-ora/v2"
)

const driverName = "oracle"

func init() {
	sqlx.BindDriver(driverName, sqlx.NAMED)
}

// Connect opens and pings the Oracle database
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect oracle: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// Row is one result row keyed by lower-case column name
type Row map[string]any

type namedQueryer interface {
	NamedQueryContext(ctx context.Context, query string, arg any) (*sqlx.Rows, error)
}

// Repository runs the read-only lookups
type Repository struct {
	db namedQueryer
}

// NewRepository creates a new Repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Titles lists receivable titles matching f
func (r *Repository) Titles(ctx context.Context, f TitleFilter) ([]Row, error) {
	query, args := titlesQuery(f)
	rows, err := r.query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("query titles: %w", err)
	}
	return rows, nil
}

// Authorizations lists own-resource authorizations matching f
func (r *Repository) Authorizations(ctx context.Context, f AuthorizationFilter) ([]Row, error) {
	query, args := authorizationsQuery(f)
	rows, err := r.query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("query authorizations: %w", err)
	}
	return rows, nil
}

func (r *Repository) query(ctx context.Context, query string, args map[string]any) ([]Row, error) {
	rows, err := r.db.NamedQueryContext(ctx, query, args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		raw := make(map[string]any)
		if err := rows.MapScan(raw); err != nil {
			return nil, err
		}
		out = append(out, normalizeRow(raw))
	}
	return out, rows.Err()
}

func normalizeRow(raw map[string]any) Row {
	row := make(Row, len(raw))
	for col, v := range raw {
		row[strings.ToLower(col)] = normalizeValue(v)
	}
	return row
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format("2006-01-02T15:04:05")
	case []byte:
		return string(t)
	default:
		return v
	}
}
