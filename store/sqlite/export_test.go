package sqlite

import "database/sql"

// Exec runs a raw statement against the underlying database. Test hook.
func (s *Store) Exec(query string, args ...any) (sql.Result, error) {
	return s.db.Exec(query, args...)
}
