package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

const settingGlobalDefaultBlock = "global_default_block"

func (p *SQLProvider) GetUserPreference(ctx context.Context, userID string) (*UserPreference, error) {
	var pref UserPreference
	err := p.db.GetContext(ctx, &pref,
		`SELECT user_id, default_block, network_policy, ip_access_policy, allowed_ips, created_at, updated_at
		 FROM user_preferences WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: preference for user %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user preference: %w", err)
	}
	return &pref, nil
}

// UpsertUserPreference creates the preference row lazily on first write.
func (p *SQLProvider) UpsertUserPreference(ctx context.Context, pref UserPreference) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, default_block, network_policy, ip_access_policy, allowed_ips)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET
		   default_block = excluded.default_block,
		   network_policy = excluded.network_policy,
		   ip_access_policy = excluded.ip_access_policy,
		   allowed_ips = excluded.allowed_ips,
		   updated_at = CURRENT_TIMESTAMP`,
		pref.UserID, pref.DefaultBlock, pref.NetworkPolicy, pref.IPAccessPolicy, pref.AllowedIPs)
	if err != nil {
		return fmt.Errorf("failed to upsert user preference: %w", err)
	}
	p.cache.Invalidate(pref.UserID)
	return nil
}

// GetGlobalDefaultBlock reads the stored global default, falling back to the
// configured value when the setting was never written.
func (p *SQLProvider) GetGlobalDefaultBlock(ctx context.Context) (bool, error) {
	var value string
	err := p.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, settingGlobalDefaultBlock)
	if errors.Is(err, sql.ErrNoRows) {
		return p.globalDefaultBlock, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get global default block: %w", err)
	}
	block, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("malformed global default block setting %q: %w", value, err)
	}
	return block, nil
}

func (p *SQLProvider) SetGlobalDefaultBlock(ctx context.Context, block bool) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		settingGlobalDefaultBlock, strconv.FormatBool(block))
	if err != nil {
		return fmt.Errorf("failed to set global default block: %w", err)
	}
	p.cache.InvalidateAll()
	return nil
}
