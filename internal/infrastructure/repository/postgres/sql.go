package postgres

import (
	"database/sql"
	"errors"
	"fmt"
)

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// requireRow turns a keyed write that matched no row into a wrapped
// sql.ErrNoRows. Drivers that cannot report affected rows are trusted.
func requireRow(res sql.Result, op string, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil || affected > 0 {
		return nil
	}
	return fmt.Errorf("%s id=%d: %w", op, id, sql.ErrNoRows)
}
