package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrReadOnlyQuery   = errors.New("storage: query must be a single read-only statement")
	ErrUnsupportedStmt = errors.New("storage: update must be a single INSERT, UPDATE, DELETE or REPLACE statement")
)

// UpdateResult mirrors sql.Result for the bridge.
type UpdateResult struct {
	RowsAffected int64 `json:"changes"`
	LastInsertID int64 `json:"lastInsertRowid"`
}

// Query runs a single read-only statement and returns its rows as column
// maps. The connection is switched to query_only for the duration so that a
// statement slipping past the keyword check still cannot write.
func (r *SQLiteRepository) Query(ctx context.Context, stmt string, args ...any) ([]map[string]any, error) {
	stmt, err := singleStatement(stmt)
	if err != nil {
		return nil, ErrReadOnlyQuery
	}
	switch firstKeyword(stmt) {
	case "SELECT", "WITH", "EXPLAIN":
	case "PRAGMA":
		if !readPragma(stmt) {
			return nil, ErrReadOnlyQuery
		}
	default:
		return nil, ErrReadOnlyQuery
	}

	db, release, err := r.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `PRAGMA query_only = ON`); err != nil {
		return nil, fmt.Errorf("enable query_only: %w", err)
	}
	defer conn.ExecContext(context.WithoutCancel(ctx), `PRAGMA query_only = OFF`)

	rows, err := conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		if strings.Contains(err.Error(), "readonly") || strings.Contains(err.Error(), "read-only") {
			return nil, ErrReadOnlyQuery
		}
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}

	out := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		if strings.Contains(err.Error(), "readonly") {
			return nil, ErrReadOnlyQuery
		}
		return nil, fmt.Errorf("query: %w", err)
	}
	return out, nil
}

// Update runs a single data-modifying statement. Schema changes are refused.
func (r *SQLiteRepository) Update(ctx context.Context, stmt string, args ...any) (UpdateResult, error) {
	stmt, err := singleStatement(stmt)
	if err != nil {
		return UpdateResult{}, ErrUnsupportedStmt
	}
	switch firstKeyword(stmt) {
	case "INSERT", "UPDATE", "DELETE", "REPLACE":
	default:
		return UpdateResult{}, ErrUnsupportedStmt
	}

	db, release, err := r.acquire()
	if err != nil {
		return UpdateResult{}, err
	}
	defer release()

	res, err := db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update: %w", err)
	}
	var out UpdateResult
	out.RowsAffected, _ = res.RowsAffected()
	out.LastInsertID, _ = res.LastInsertId()
	return out, nil
}

// Introspection pragmas that accept a table, index or limit argument.
var argPragmas = map[string]bool{
	"table_info":        true,
	"table_xinfo":       true,
	"table_list":        true,
	"index_list":        true,
	"index_info":        true,
	"index_xinfo":       true,
	"foreign_key_list":  true,
	"foreign_key_check": true,
	"integrity_check":   true,
	"quick_check":       true,
}

// Pragmas that report connection or database state. With an argument they
// change it, so only the bare form is allowed.
var plainPragmas = map[string]bool{
	"user_version":    true,
	"schema_version":  true,
	"application_id":  true,
	"foreign_keys":    true,
	"journal_mode":    true,
	"encoding":        true,
	"page_count":      true,
	"page_size":       true,
	"freelist_count":  true,
	"data_version":    true,
	"database_list":   true,
	"collation_list":  true,
	"function_list":   true,
	"compile_options": true,
}

// readPragma reports whether stmt is a PRAGMA that only reads. Any
// assignment is refused, and only introspection pragmas may take an
// argument.
func readPragma(stmt string) bool {
	body := strings.TrimSpace(stmt[len("PRAGMA"):])
	if strings.Contains(body, "=") {
		return false
	}
	name, arg := body, ""
	if i := strings.IndexByte(body, '('); i >= 0 {
		name, arg = body[:i], body[i:]
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if _, after, ok := strings.Cut(name, "."); ok {
		name = after
	}
	if argPragmas[name] {
		return true
	}
	return plainPragmas[name] && strings.TrimSpace(arg) == ""
}

// singleStatement trims the statement and rejects anything containing a
// second statement. Semicolons inside string literals are not special-cased.
func singleStatement(stmt string) (string, error) {
	stmt = strings.TrimSpace(stmt)
	stmt = strings.TrimRight(stmt, "; \t\r\n")
	if stmt == "" || strings.Contains(stmt, ";") {
		return "", errors.New("not a single statement")
	}
	return stmt, nil
}

func firstKeyword(stmt string) string {
	stmt = strings.TrimLeft(stmt, " \t\r\n(")
	end := strings.IndexFunc(stmt, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '('
	})
	if end < 0 {
		end = len(stmt)
	}
	return strings.ToUpper(stmt[:end])
}
