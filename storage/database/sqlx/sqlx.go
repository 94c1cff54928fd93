// Package sqlxrepos implements the domain repositories on PostgreSQL with sqlx & squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/kipimo/storage/database"
)

const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repo struct {
	db *sqlx.DB
}

func (r repo) exec(ctx context.Context) sqlx.ExtContext {
	return database.Executor(ctx, r.db)
}

// get scans the single row returned by qb into dest, returning notFound when there is none.
func (r repo) get(ctx context.Context, dest interface{}, qb sq.Sqlizer, notFound error) error {
	q, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if err = sqlx.GetContext(ctx, r.exec(ctx), dest, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound
		}
		return err
	}
	return nil
}

func (r repo) selectRows(ctx context.Context, dest interface{}, qb sq.Sqlizer) error {
	q, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, r.exec(ctx), dest, q, args...)
}

// execute runs qb and returns the number of affected rows.
func (r repo) execute(ctx context.Context, qb sq.Sqlizer) (int64, error) {
	q, args, err := qb.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := r.exec(ctx).ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// executeOne runs qb, returning notFound when no row was affected.
func (r repo) executeOne(ctx context.Context, qb sq.Sqlizer, notFound error) error {
	n, err := r.execute(ctx, qb)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}

func ilike(s string) string {
	return "%" + s + "%"
}
