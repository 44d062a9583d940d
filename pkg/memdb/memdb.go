// Package memdb is an in-process store with the same transactional contract as the
// Postgres backend: one writer at a time, all-or-nothing commits, unique keys.
package memdb

import (
	"context"
	"errors"
	"maps"
	"sync"
	"sync/atomic"
)

var ErrDuplicateKey = errors.New("memdb: duplicate key")

type txKey struct{}

type snapshotter interface {
	snapshot() (restore func())
}

type DB struct {
	txMu sync.Mutex

	mu     sync.Mutex
	tables []snapshotter

	seq atomic.Int64
}

func New() *DB {
	return &DB{}
}

func (db *DB) register(t snapshotter) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables = append(db.tables, t)
}

// NextSeq returns a monotonically increasing value. Like a database sequence it is
// not rolled back when a transaction fails.
func (db *DB) NextSeq() int64 {
	return db.seq.Add(1)
}

// InTx reports whether ctx carries an open transaction of this DB.
func (db *DB) InTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*DB)
	return owner == db
}

// InTenantTx runs fn as a single unit of work. Transactions are serialized; on error
// every registered table is restored to its state before fn ran. Nested calls join the
// outer transaction.
func (db *DB) InTenantTx(ctx context.Context, fn func(context.Context) error) error {
	if db.InTx(ctx) {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	restores := make([]func(), 0, len(db.tables))
	for _, t := range db.tables {
		restores = append(restores, t.snapshot())
	}
	db.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

// Table is a keyed collection of immutable values. Values must be replaced with Put,
// never mutated in place, so snapshots can share them.
type Table[K comparable, V any] struct {
	mu   sync.RWMutex
	rows map[K]V
}

func NewTable[K comparable, V any](db *DB) *Table[K, V] {
	t := &Table[K, V]{rows: make(map[K]V)}
	db.register(t)
	return t
}

func (t *Table[K, V]) snapshot() func() {
	t.mu.RLock()
	saved := maps.Clone(t.rows)
	t.mu.RUnlock()
	return func() {
		t.mu.Lock()
		t.rows = saved
		t.mu.Unlock()
	}
}

func (t *Table[K, V]) Get(key K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[key]
	return v, ok
}

// Insert adds a new row and fails with ErrDuplicateKey if the key is taken.
func (t *Table[K, V]) Insert(key K, value V) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.rows[key]; exists {
		return ErrDuplicateKey
	}
	t.rows[key] = value
	return nil
}

func (t *Table[K, V]) Put(key K, value V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows[key] = value
}

func (t *Table[K, V]) Delete(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[key]; !ok {
		return false
	}
	delete(t.rows, key)
	return true
}

// Select returns the values matching keep, in no particular order.
func (t *Table[K, V]) Select(keep func(V) bool) []V {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]V, 0)
	for _, v := range t.rows {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// DeleteWhere removes every row matching drop and returns how many were removed.
func (t *Table[K, V]) DeleteWhere(drop func(V) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k, v := range t.rows {
		if drop(v) {
			delete(t.rows, k)
			n++
		}
	}
	return n
}

func (t *Table[K, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}
