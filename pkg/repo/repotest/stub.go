// Package repotest provides in-memory pgx doubles for repository unit tests.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type ExecCall struct {
	SQL  string
	Args []any
}

type CopyCall struct {
	Table   pgx.Identifier
	Columns []string
	Rows    [][]any
}

// Tx records Exec calls and answers Query/QueryRow through the supplied funcs.
type Tx struct {
	QueryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	ExecFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFunc     func(call CopyCall) (int64, error)
	Execs        []ExecCall
	Copies       []CopyCall
	Batches      []*pgx.Batch
}

// CopyFrom drains rowSrc and records it; without CopyFunc every row is accepted.
func (s *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	call := CopyCall{Table: tableName, Columns: columnNames}
	for rowSrc.Next() {
		values, err := rowSrc.Values()
		if err != nil {
			return 0, err
		}
		call.Rows = append(call.Rows, values)
	}
	if err := rowSrc.Err(); err != nil {
		return 0, err
	}
	s.Copies = append(s.Copies, call)
	if s.CopyFunc != nil {
		return s.CopyFunc(call)
	}
	return int64(len(call.Rows)), nil
}

func (s *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	s.Batches = append(s.Batches, b)
	return &BatchResults{}
}

func (s *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	s.Execs = append(s.Execs, ExecCall{SQL: sql, Args: arguments})
	if s.ExecFunc != nil {
		return s.ExecFunc(ctx, sql, arguments...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (s *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.QueryFunc == nil {
		return nil, errors.New("query not implemented")
	}
	return s.QueryFunc(ctx, sql, args...)
}

func (s *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.QueryRowFunc == nil {
		return Row{ScanFunc: func(dest ...any) error { return errors.New("query row not implemented") }}
	}
	return s.QueryRowFunc(ctx, sql, args...)
}

// BatchResults acknowledges every queued statement.
type BatchResults struct{}

func (*BatchResults) Exec() (pgconn.CommandTag, error) { return pgconn.NewCommandTag("INSERT 0 1"), nil }
func (*BatchResults) Query() (pgx.Rows, error)         { return &Rows{}, nil }
func (*BatchResults) QueryRow() pgx.Row                { return Row{Values: nil} }
func (*BatchResults) Close() error                     { return nil }

type Rows struct {
	Data    [][]any
	Failure error
	idx     int
}

func (r *Rows) Next() bool {
	if r.idx >= len(r.Data) {
		return false
	}
	r.idx++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.Data) {
		return errors.New("no current row to scan")
	}
	return assign(r.Data[r.idx-1], dest)
}

func (r *Rows) Values() ([]any, error) {
	if r.idx == 0 || r.idx > len(r.Data) {
		return nil, errors.New("no current row")
	}
	return r.Data[r.idx-1], nil
}

func (r *Rows) RawValues() [][]byte                          { return nil }
func (r *Rows) Err() error                                   { return r.Failure }
func (r *Rows) Close()                                       {}
func (r *Rows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *Rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *Rows) Conn() *pgx.Conn                              { return nil }

// Row scans Values, or delegates to ScanFunc when set. A nil Values with no
// ScanFunc behaves like an empty result.
type Row struct {
	Values   []any
	ScanFunc func(dest ...any) error
}

func (r Row) Scan(dest ...any) error {
	if r.ScanFunc != nil {
		return r.ScanFunc(dest...)
	}
	if r.Values == nil {
		return pgx.ErrNoRows
	}
	return assign(r.Values, dest)
}

func assign(row []any, dest []any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("destination length %d does not match row length %d", len(dest), len(row))
	}
	for i, target := range dest {
		switch v := target.(type) {
		case *uuid.UUID:
			*v = row[i].(uuid.UUID)
		case *string:
			*v = row[i].(string)
		case *int:
			*v = row[i].(int)
		case *int64:
			*v = row[i].(int64)
		case *bool:
			*v = row[i].(bool)
		case *time.Time:
			*v = row[i].(time.Time)
		case **time.Time:
			*v = row[i].(*time.Time)
		case *[]string:
			*v = row[i].([]string)
		case *[]byte:
			*v = row[i].([]byte)
		case *uuid.NullUUID:
			*v = row[i].(uuid.NullUUID)
		default:
			return fmt.Errorf("unsupported scan target %T", target)
		}
	}
	return nil
}
