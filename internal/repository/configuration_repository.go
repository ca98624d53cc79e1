package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sekolahku/sims-api/internal/models"
)

// ConfigurationRepository persists school configuration entries.
type ConfigurationRepository struct {
	db *sqlx.DB
}

// NewConfigurationRepository constructs the repository.
func NewConfigurationRepository(db *sqlx.DB) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

const configurationColumns = `key, value, type, description, updated_by, updated_at`

// ListAll returns every configuration entry ordered by key.
func (r *ConfigurationRepository) ListAll(ctx context.Context) ([]models.Configuration, error) {
	query := fmt.Sprintf("SELECT %s FROM configurations ORDER BY key ASC", configurationColumns)
	var entries []models.Configuration
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	return entries, nil
}

// Get fetches a single configuration entry by key.
func (r *ConfigurationRepository) Get(ctx context.Context, key string) (*models.Configuration, error) {
	query := fmt.Sprintf("SELECT %s FROM configurations WHERE key = $1", configurationColumns)
	var entry models.Configuration
	if err := r.db.GetContext(ctx, &entry, query, key); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Upsert writes a configuration value, inserting or replacing by key.
func (r *ConfigurationRepository) Upsert(ctx context.Context, entry *models.Configuration) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO configurations (key, value, type, description, updated_by, updated_at)
        VALUES (:key, :value, :type, :description, :updated_by, :updated_at)
        ON CONFLICT (key) DO UPDATE
        SET value = EXCLUDED.value, type = EXCLUDED.type, description = EXCLUDED.description,
            updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("upsert configuration: %w", err)
	}
	return nil
}
