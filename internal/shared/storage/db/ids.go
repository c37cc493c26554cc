package db

import "github.com/google/uuid"

// IsUUID reports whether id can be bound to a UUID column. Postgres rejects
// anything else with invalid_text_representation (22P02), so repos treat a
// malformed id as a row that does not exist.
func IsUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
