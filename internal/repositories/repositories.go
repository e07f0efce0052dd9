package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/desertthunder/hlsx/internal/shared"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// rowQuerier is satisfied by both [sql.DB] and [sql.Tx].
type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// NextSequence increments the counter in table's "_sequence" companion and returns the new value.
//
// Sequence numbers order index rows by insertion. They are not exposed in CLI output.
func NextSequence(q rowQuerier, table string) (int, error) {
	if !tableName.MatchString(table) {
		return 0, fmt.Errorf("%w: table name %q", shared.ErrInvalidInput, table)
	}

	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)

	var sequence int
	switch err := q.QueryRow(query).Scan(&sequence); {
	case errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("%w: sequence row for %s", shared.ErrNotFound, table)
	case err != nil:
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}
	return sequence, nil
}
