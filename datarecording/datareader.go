package datarecording

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// QueryParams selects and orders the rows returned by Query.
type QueryParams struct {
	// Where is a condition such as "Time > ? AND Handler = ?".
	Where string

	// Args fill the placeholders of Where.
	Args []any

	// Limit is the maximum number of records to return. Zero means no limit.
	Limit int

	// Offset is the number of records to skip. Only used with Limit.
	Offset int

	// OrderBy is a column list such as "Seq DESC".
	OrderBy string
}

// DataReader reads records back from a recording.
type DataReader interface {
	// MapTable tells which struct the rows of a table decode into. A table
	// must be mapped before it is queried.
	MapTable(tableName string, sampleEntry any)

	// ListTables returns the mapped tables in sorted order.
	ListTables() []string

	// Query executes a query on a table and returns pointers to the mapped
	// struct type, together with the number of rows matching Where.
	Query(ctx context.Context, tableName string, params QueryParams) (
		results []any,
		totalCount int,
		err error,
	)

	Close() error
}

// tableMapping binds a table to the struct its rows decode into.
type tableMapping struct {
	entryType reflect.Type
	fieldOf   map[string]int
}

func newTableMapping(sampleEntry any) tableMapping {
	t := reflect.TypeOf(sampleEntry)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	m := tableMapping{entryType: t, fieldOf: make(map[string]int)}
	for i := range t.NumField() {
		if t.Field(i).IsExported() {
			m.fieldOf[t.Field(i).Name] = i
		}
	}

	return m
}

// scanTargets returns where each column of a row goes. Columns without a
// field are scanned into throwaway values.
func (m tableMapping) scanTargets(entry reflect.Value, columns []string) []any {
	targets := make([]any, len(columns))

	for i, col := range columns {
		idx, found := m.fieldOf[col]
		if !found {
			targets[i] = new(any)
			continue
		}

		targets[i] = entry.Field(idx).Addr().Interface()
	}

	return targets
}

type sqlReader struct {
	db     *sql.DB
	tables map[string]tableMapping
}

// NewReader opens a recording file for reading.
func NewReader(dbFilename string) (DataReader, error) {
	db, err := sql.Open("sqlite3", dbFilename)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open recording %s: %w", dbFilename, err)
	}

	return NewReaderWithDB(db), nil
}

// NewReaderWithDB reads from an already opened database.
func NewReaderWithDB(db *sql.DB) DataReader {
	return &sqlReader{
		db:     db,
		tables: make(map[string]tableMapping),
	}
}

func (r *sqlReader) MapTable(tableName string, sampleEntry any) {
	r.tables[tableName] = newTableMapping(sampleEntry)
}

func (r *sqlReader) ListTables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func whereClause(params QueryParams) string {
	if params.Where == "" {
		return ""
	}

	return " WHERE " + params.Where
}

func selectStatement(tableName string, params QueryParams) string {
	var b strings.Builder

	b.WriteString("SELECT * FROM " + tableName + whereClause(params))

	if params.OrderBy != "" {
		b.WriteString(" ORDER BY " + params.OrderBy)
	}

	if params.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", params.Limit)

		if params.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", params.Offset)
		}
	}

	return b.String()
}

func (r *sqlReader) Query(
	ctx context.Context,
	tableName string,
	params QueryParams,
) ([]any, int, error) {
	mapping, found := r.tables[tableName]
	if !found {
		return nil, 0, fmt.Errorf("table %s is not mapped", tableName)
	}

	var total int

	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+tableName+whereClause(params),
		params.Args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", tableName, err)
	}

	rows, err := r.db.QueryContext(ctx,
		selectStatement(tableName, params), params.Args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query %s: %w", tableName, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, 0, err
	}

	var entries []any

	for rows.Next() {
		entry := reflect.New(mapping.entryType)

		err := rows.Scan(mapping.scanTargets(entry.Elem(), columns)...)
		if err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", tableName, err)
		}

		entries = append(entries, entry.Interface())
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *sqlReader) Close() error {
	return r.db.Close()
}
