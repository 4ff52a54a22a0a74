// Package datarecording stores simulation records in SQLite databases.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder buffers entries and writes them into tables.
type DataRecorder interface {
	// CreateTable creates a new table whose columns are the fields of the
	// sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry to be written into an existing table.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all tables created by the recorder.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes the buffered entries and closes the database.
	Close() error
}

const defaultBatchSize = 100000

// New creates a DataRecorder that writes into <path>.sqlite3. It refuses to
// overwrite an existing file. An empty path generates a unique name.
func New(path string) (DataRecorder, error) {
	if path == "" {
		path = "desim_recording_" + xid.New().String()
	}

	filename := path
	if !strings.HasSuffix(filename, ".sqlite3") {
		filename += ".sqlite3"
	}

	if _, err := os.Stat(filename); err == nil {
		return nil, fmt.Errorf("file %s already exists", filename)
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		return nil, err
	}

	return NewWithDB(db), nil
}

// NewWithDB creates a DataRecorder that writes into db. The buffered
// entries are flushed when the program exits through atexit.
func NewWithDB(db *sql.DB) DataRecorder {
	r := &sqlRecorder{
		db:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*recordTable),
	}

	atexit.Register(r.Flush)

	return r
}

// columnKinds are the field kinds that map onto SQLite columns.
var columnKinds = map[reflect.Kind]bool{
	reflect.Bool:    true,
	reflect.Int:     true,
	reflect.Int8:    true,
	reflect.Int16:   true,
	reflect.Int32:   true,
	reflect.Int64:   true,
	reflect.Uint:    true,
	reflect.Uint8:   true,
	reflect.Uint16:  true,
	reflect.Uint32:  true,
	reflect.Uint64:  true,
	reflect.Float32: true,
	reflect.Float64: true,
	reflect.String:  true,
}

func entryMustBeFlat(entry any) error {
	t := reflect.TypeOf(entry)
	if t == nil || t.Kind() != reflect.Struct {
		return fmt.Errorf("entry %T is not a struct", entry)
	}

	for i := range t.NumField() {
		field := t.Field(i)
		if !columnKinds[field.Type.Kind()] {
			return fmt.Errorf("field %s of %s has unsupported kind %s",
				field.Name, t, field.Type.Kind())
		}
	}

	return nil
}

// recordTable holds the entries of a table that are not written yet.
type recordTable struct {
	entryType reflect.Type
	insertSQL string
	pending   []any
}

type sqlRecorder struct {
	db *sql.DB

	tables    map[string]*recordTable
	batchSize int
	buffered  int
	closed    bool
}

func (r *sqlRecorder) CreateTable(tableName string, sampleEntry any) {
	if err := entryMustBeFlat(sampleEntry); err != nil {
		panic(err)
	}

	columns := structs.Names(sampleEntry)

	create := fmt.Sprintf("CREATE TABLE %s (\n\t%s\n);",
		tableName, strings.Join(columns, ",\n\t"))
	if _, err := r.db.Exec(create); err != nil {
		panic(fmt.Errorf("create table %s: %w", tableName, err))
	}

	placeholders := strings.TrimSuffix(
		strings.Repeat("?, ", len(columns)), ", ")

	r.tables[tableName] = &recordTable{
		entryType: reflect.TypeOf(sampleEntry),
		insertSQL: fmt.Sprintf("INSERT INTO %s VALUES (%s)",
			tableName, placeholders),
	}
}

func (r *sqlRecorder) InsertData(tableName string, entry any) {
	t, found := r.tables[tableName]
	if !found {
		panic(fmt.Sprintf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.entryType {
		panic(fmt.Sprintf(
			"entry type %T does not match table %s", entry, tableName))
	}

	t.pending = append(t.pending, entry)

	r.buffered++
	if r.buffered >= r.batchSize {
		r.Flush()
	}
}

func (r *sqlRecorder) ListTables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Flush writes all pending entries in a single transaction.
func (r *sqlRecorder) Flush() {
	if r.buffered == 0 || r.closed {
		return
	}

	tx, err := r.db.Begin()
	if err != nil {
		panic(err)
	}

	for name, t := range r.tables {
		if err := t.writePending(tx); err != nil {
			_ = tx.Rollback()
			panic(fmt.Errorf("flush table %s: %w", name, err))
		}
	}

	if err := tx.Commit(); err != nil {
		panic(err)
	}

	r.buffered = 0
}

func (t *recordTable) writePending(tx *sql.Tx) error {
	if len(t.pending) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(t.insertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, entry := range t.pending {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			return err
		}
	}

	t.pending = nil

	return nil
}

func (r *sqlRecorder) Close() error {
	if r.closed {
		return nil
	}

	r.Flush()
	r.closed = true

	return r.db.Close()
}
