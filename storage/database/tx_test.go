package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestTransactor_WithinTx(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		fn      func(ctx context.Context, db *sqlx.DB) error
		wantErr error
	}{
		{
			name: "commit",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE organization").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			fn: func(ctx context.Context, db *sqlx.DB) error {
				_, err := Executor(ctx, db).ExecContext(ctx, "UPDATE organization SET name = $1", "Acme")
				return err
			},
		},
		{
			name: "rollback on error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectRollback()
			},
			fn:      func(context.Context, *sqlx.DB) error { return errBoom },
			wantErr: errBoom,
		},
		{
			name: "nested calls share the transaction",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("DELETE FROM team").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec("DELETE FROM objective").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			fn: func(ctx context.Context, db *sqlx.DB) error {
				if _, err := Executor(ctx, db).ExecContext(ctx, "DELETE FROM team"); err != nil {
					return err
				}
				return NewTransactor(db).WithinTx(ctx, func(ctx context.Context) error {
					_, err := Executor(ctx, db).ExecContext(ctx, "DELETE FROM objective")
					return err
				})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tt.setup(mock)

			err := NewTransactor(db).WithinTx(context.Background(), func(ctx context.Context) error {
				return tt.fn(ctx, db)
			})
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			} else {
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestExecutor(t *testing.T) {
	db, _ := newMockDB(t)
	assert.Equal(t, db, Executor(context.Background(), db))
}

func TestStatusCheck(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT true").WillReturnRows(sqlmock.NewRows([]string{"bool"}).AddRow(true))

	assert.NoError(t, StatusCheck(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
