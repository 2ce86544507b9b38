package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const timeRuleColumns = `id, user_id, device_id, day_of_week, start_time, end_time, enabled, created_at, updated_at`

// GetTimeRules returns every rule for a user, both user-wide and
// device-scoped. Scope resolution happens in the schedule package.
func (p *SQLProvider) GetTimeRules(ctx context.Context, userID string) ([]TimeRule, error) {
	var rules []TimeRule
	query := fmt.Sprintf(`SELECT %s FROM time_rules WHERE user_id = ? ORDER BY day_of_week, start_time`, timeRuleColumns)
	if err := p.db.SelectContext(ctx, &rules, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list time rules: %w", err)
	}
	return rules, nil
}

func (p *SQLProvider) GetTimeRule(ctx context.Context, id string) (*TimeRule, error) {
	var rule TimeRule
	query := fmt.Sprintf(`SELECT %s FROM time_rules WHERE id = ?`, timeRuleColumns)
	err := p.db.GetContext(ctx, &rule, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: time rule %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get time rule: %w", err)
	}
	return &rule, nil
}

func (p *SQLProvider) CreateTimeRule(ctx context.Context, rule TimeRule) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO time_rules (id, user_id, device_id, day_of_week, start_time, end_time, enabled)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.UserID, rule.DeviceID, rule.DayOfWeek, rule.StartTime, rule.EndTime, rule.Enabled)
	if err != nil {
		return fmt.Errorf("failed to create time rule: %w", err)
	}
	p.cache.Invalidate(rule.UserID)
	return nil
}

func (p *SQLProvider) UpdateTimeRule(ctx context.Context, rule TimeRule) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE time_rules SET device_id = ?, day_of_week = ?, start_time = ?, end_time = ?, enabled = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		rule.DeviceID, rule.DayOfWeek, rule.StartTime, rule.EndTime, rule.Enabled, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update time rule: %w", err)
	}
	if err := requireRow(result, rule.ID); err != nil {
		return err
	}
	p.cache.Invalidate(rule.UserID)
	return nil
}

func (p *SQLProvider) DeleteTimeRule(ctx context.Context, id string) error {
	rule, err := p.GetTimeRule(ctx, id)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, `DELETE FROM time_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete time rule: %w", err)
	}
	if err := requireRow(result, id); err != nil {
		return err
	}
	p.cache.Invalidate(rule.UserID)
	return nil
}

func (p *SQLProvider) SetTimeRuleEnabled(ctx context.Context, id string, enabled bool) error {
	rule, err := p.GetTimeRule(ctx, id)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx,
		`UPDATE time_rules SET enabled = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("failed to toggle time rule: %w", err)
	}
	if err := requireRow(result, id); err != nil {
		return err
	}
	p.cache.Invalidate(rule.UserID)
	return nil
}

// ReplaceTimeRules swaps the full rule set for one scope in a single
// transaction. A failure at any point leaves the previous rule set intact.
func (p *SQLProvider) ReplaceTimeRules(ctx context.Context, userID string, deviceID *string, rules []TimeRule) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin preset transaction: %w", err)
	}
	defer tx.Rollback()

	if deviceID == nil {
		_, err = tx.ExecContext(ctx, `DELETE FROM time_rules WHERE user_id = ? AND device_id IS NULL`, userID)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM time_rules WHERE user_id = ? AND device_id = ?`, userID, *deviceID)
	}
	if err != nil {
		return fmt.Errorf("failed to clear rule scope: %w", err)
	}

	for _, rule := range rules {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO time_rules (id, user_id, device_id, day_of_week, start_time, end_time, enabled)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rule.ID, rule.UserID, rule.DeviceID, rule.DayOfWeek, rule.StartTime, rule.EndTime, rule.Enabled)
		if err != nil {
			return fmt.Errorf("failed to insert preset rule: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit preset transaction: %w", err)
	}
	p.cache.Invalidate(userID)
	return nil
}

// HasSchedule reports whether the user has any enabled rule, serving the
// "scheduled" badge. Reads through the cache; the admission path loads
// rules directly instead.
func (p *SQLProvider) HasSchedule(ctx context.Context, userID string) (bool, error) {
	if has, ok := p.cache.Get(userID); ok {
		return has, nil
	}
	var count int
	err := p.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM time_rules WHERE user_id = ? AND enabled = 1`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to count enabled rules: %w", err)
	}
	has := count > 0
	p.cache.Set(userID, has)
	return has, nil
}
