package testhelpers

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// NopTx is a pgx.Tx that does nothing. Unit tests pass it through service
// transaction boundaries when the repositories underneath are in-memory
// fakes that ignore the transaction entirely.
type NopTx struct{}

func (NopTx) Begin(ctx context.Context) (pgx.Tx, error) { return NopTx{}, nil }
func (NopTx) Commit(ctx context.Context) error          { return nil }
func (NopTx) Rollback(ctx context.Context) error        { return nil }
func (NopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (NopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (NopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (NopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (NopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (NopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (NopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (NopTx) Conn() *pgx.Conn                                               { return nil }

// NopTxManager hands out NopTx transactions.
type NopTxManager struct{}

func (NopTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return NopTx{}, nil
}
