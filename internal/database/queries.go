package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"textlens/internal/domain"
	"time"
)

const settingsID = 1

// GetSettings returns the stored settings, or zero settings when nothing was saved yet.
func (d *Database) GetSettings(ctx context.Context) (domain.Settings, error) {
	query := `select api_key, secondary_token, model, relay_endpoint, use_resolver_diagnostics, updated_at
		from settings where id = ?`

	var (
		s         domain.Settings
		updatedAt int64
	)

	err := d.db.QueryRowContext(ctx, query, settingsID).Scan(
		&s.APIKey,
		&s.SecondaryToken,
		&s.Model,
		&s.RelayEndpoint,
		&s.UseResolverDiagnostics,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Settings{}, nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("query settings: %w", err)
	}

	if updatedAt > 0 {
		s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	}

	return s, nil
}

func (d *Database) SaveSettings(ctx context.Context, s domain.Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validate settings: %w", err)
	}

	query := `insert into settings
		(id, api_key, secondary_token, model, relay_endpoint, use_resolver_diagnostics, updated_at)
		values (?, ?, ?, ?, ?, ?, ?)
		on conflict (id) do update set
			api_key = excluded.api_key,
			secondary_token = excluded.secondary_token,
			model = excluded.model,
			relay_endpoint = excluded.relay_endpoint,
			use_resolver_diagnostics = excluded.use_resolver_diagnostics,
			updated_at = excluded.updated_at`

	_, err := d.db.ExecContext(ctx, query,
		settingsID,
		strings.TrimSpace(s.APIKey),
		strings.TrimSpace(s.SecondaryToken),
		strings.TrimSpace(s.Model),
		strings.TrimSpace(s.RelayEndpoint),
		s.UseResolverDiagnostics,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}

	return nil
}

// SeedAPIKey stores apiKey only if no key is stored yet. It reports whether it did.
func (d *Database) SeedAPIKey(ctx context.Context, apiKey string) (bool, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return false, errors.New("API key is empty")
	}

	if _, err := d.db.ExecContext(ctx, "insert or ignore into settings (id) values (?)", settingsID); err != nil {
		return false, fmt.Errorf("insert settings row: %w", err)
	}

	res, err := d.db.ExecContext(ctx,
		"update settings set api_key = ?, updated_at = ? where id = ? and api_key = ''",
		apiKey,
		time.Now().Unix(),
		settingsID,
	)
	if err != nil {
		return false, fmt.Errorf("update API key: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return n > 0, nil
}
