// Package settings provides the repository for internal key-value records.
// The only record the application itself maintains is the last successfully
// validated configuration hash, which gates expensive exchange revalidation
// on startup.
package settings

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// KeyConfigHash stores the SHA-256 of the last successfully validated
// configuration.
const KeyConfigHash = "config_hash"

// Repository handles internal_config database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new settings repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "settings").Logger(),
	}
}

// Get retrieves a value by key. Returns nil if the key doesn't exist
// (not an error).
func (r *Repository) Get(key string) (*string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM internal_config WHERE id = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get internal config %q: %w", key, err)
	}
	return &value, nil
}

// Set stores a value, updating last_updated_at. Insert and update are a
// single upsert statement.
func (r *Repository) Set(key, value string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.Exec(`
		INSERT INTO internal_config (id, value, last_updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			value = excluded.value,
			last_updated_at = excluded.last_updated_at
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("failed to set internal config %q: %w", key, err)
	}
	r.log.Debug().Str("key", key).Msg("Internal config updated")
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (r *Repository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM internal_config WHERE id = ?", key); err != nil {
		return fmt.Errorf("failed to delete internal config %q: %w", key, err)
	}
	return nil
}
