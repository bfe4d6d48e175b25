package repository

import "context"

// ==================== Settings Methods ====================

// GetSetting retrieves a setting value
func (r *Repository) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := r.queryRow(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	return value, notFound(err)
}

// SetSetting updates a setting value
func (r *Repository) SetSetting(ctx context.Context, key, value string) error {
	_, err := r.exec(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
