package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row, and *sql.Rows,
// letting both backends share the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// decodeJSON unmarshals a nullable JSON column, leaving v untouched for
// NULL or empty payloads.
func decodeJSON(data []byte, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}

func notFound(kind, id string) error {
	return eris.Wrapf(ErrNotFound, "store: %s %s", kind, id)
}
