package app

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	// use deadlock detector mutexes here since deadlocks in database operations
	// will be common
	sync "github.com/sasha-s/go-deadlock"
)

const DbDebug bool = false

type Database struct {
	db *sql.DB
	mu sync.Mutex
}

func OpenDatabase(fname string) (*Database, error) {
	sdb, err := sql.Open("sqlite3", fname)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", fname)
	}
	// one connection so that ":memory:" databases are shared
	sdb.SetMaxOpenConns(1)
	if err := sdb.Ping(); err != nil {
		sdb.Close()
		return nil, errors.Wrapf(err, "opening %s", fname)
	}
	return &Database{db: sdb}, nil
}

func (this *Database) Close() error {
	this.mu.Lock()
	defer this.mu.Unlock()
	return this.db.Close()
}

// Query holds the database lock until the returned rows are exhausted or closed.
func (this *Database) Query(q string, args ...interface{}) (*Rows, error) {
	this.mu.Lock()
	if DbDebug {
		log.Printf("[db] Query: %v", q)
	}
	rows, err := this.db.Query(q, args...)
	if err != nil {
		this.mu.Unlock()
		return nil, err
	}
	return &Rows{this, true, rows}, nil
}

func (this *Database) QueryRow(q string, args ...interface{}) *Row {
	this.mu.Lock()
	if DbDebug {
		log.Printf("[db] QueryRow: %v", q)
	}
	row := this.db.QueryRow(q, args...)
	return &Row{this, true, row}
}

func (this *Database) Exec(q string, args ...interface{}) (sql.Result, error) {
	this.mu.Lock()
	defer this.mu.Unlock()
	if DbDebug {
		log.Printf("[db] Exec: %v", q)
	}
	return this.db.Exec(q, args...)
}

// Transaction runs f inside a SQL transaction, committing if it returns nil.
func (this *Database) Transaction(f func(tx Tx) error) error {
	this.mu.Lock()
	defer this.mu.Unlock()
	sqltx, err := this.db.Begin()
	if err != nil {
		return err
	}
	if err := f(Tx{sqltx}); err != nil {
		sqltx.Rollback()
		return err
	}
	return sqltx.Commit()
}

type Rows struct {
	db     *Database
	locked bool
	rows   *sql.Rows
}

func (r *Rows) Close() error {
	err := r.rows.Close()
	if r.locked {
		r.db.mu.Unlock()
		r.locked = false
	}
	return err
}

func (r *Rows) Next() bool {
	hasNext := r.rows.Next()
	if !hasNext && r.locked {
		r.db.mu.Unlock()
		r.locked = false
	}
	return hasNext
}

func (r *Rows) Scan(dest ...interface{}) error {
	return r.rows.Scan(dest...)
}

func (r *Rows) Err() error {
	return r.rows.Err()
}

type Row struct {
	db     *Database
	locked bool
	row    *sql.Row
}

func (r *Row) Scan(dest ...interface{}) error {
	err := r.row.Scan(dest...)
	if r.locked {
		r.db.mu.Unlock()
		r.locked = false
	}
	return err
}

type Tx struct {
	tx *sql.Tx
}

func (tx Tx) QueryRow(q string, args ...interface{}) *sql.Row {
	return tx.tx.QueryRow(q, args...)
}

func (tx Tx) Exec(q string, args ...interface{}) (sql.Result, error) {
	return tx.tx.Exec(q, args...)
}
