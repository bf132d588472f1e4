//go:build cgo

package dolt

import (
	"context"
	"database/sql"
	"fmt"
)

// SetConfig sets a configuration value in the config table.
func (s *DoltStore) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.execContext(ctx, `
		INSERT INTO config (`+"`key`"+`, value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set config %s: %w", key, err)
	}
	return nil
}

// GetConfig retrieves a configuration value. Returns "" with no error if unset.
func (s *DoltStore) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	var scanErr error

	err := s.withRetry(ctx, func() error {
		scanErr = s.db.QueryRowContext(ctx, "SELECT value FROM config WHERE `key` = ?", key).Scan(&value)
		return scanErr
	})

	if err == sql.ErrNoRows || scanErr == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get config %s: %w", key, err)
	}
	return value, nil
}

// GetAllConfig retrieves all configuration key/value pairs.
func (s *DoltStore) GetAllConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.queryContext(ctx, "SELECT `key`, value FROM config")
	if err != nil {
		return nil, fmt.Errorf("failed to get all config: %w", err)
	}
	defer rows.Close()

	cfg := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		cfg[key] = value
	}
	return cfg, rows.Err()
}

// DeleteConfig removes a configuration value.
func (s *DoltStore) DeleteConfig(ctx context.Context, key string) error {
	_, err := s.execContext(ctx, "DELETE FROM config WHERE `key` = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete config %s: %w", key, err)
	}
	return nil
}
