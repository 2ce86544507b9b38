package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("record not found")

const deviceColumns = `id, device_id, user_id, name, client_ip, status, approved_by,
	temp_access_until, temp_access_granted_at, temp_access_minutes, created_at, updated_at`

func (p *SQLProvider) GetDevice(ctx context.Context, userID, deviceID string) (*Device, error) {
	var device Device
	query := fmt.Sprintf(`SELECT %s FROM devices WHERE user_id = ? AND device_id = ?`, deviceColumns)
	err := p.db.GetContext(ctx, &device, query, userID, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: device %s for user %s", ErrNotFound, deviceID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &device, nil
}

func (p *SQLProvider) ListDevices(ctx context.Context, status DeviceStatus) ([]Device, error) {
	var devices []Device
	query := fmt.Sprintf(`SELECT %s FROM devices WHERE status = ? ORDER BY created_at`, deviceColumns)
	if err := p.db.SelectContext(ctx, &devices, query, status); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

func (p *SQLProvider) ListUserDevices(ctx context.Context, userID string) ([]Device, error) {
	var devices []Device
	query := fmt.Sprintf(`SELECT %s FROM devices WHERE user_id = ? ORDER BY created_at`, deviceColumns)
	if err := p.db.SelectContext(ctx, &devices, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list user devices: %w", err)
	}
	return devices, nil
}

// CreateDevice inserts a first-seen device. New devices always start pending
// unless the caller says otherwise.
func (p *SQLProvider) CreateDevice(ctx context.Context, device Device) error {
	if device.Status == "" {
		device.Status = DeviceStatusPending
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO devices (device_id, user_id, name, client_ip, status) VALUES (?, ?, ?, ?, ?)`,
		device.DeviceID, device.UserID, device.Name, device.ClientIP, device.Status)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (p *SQLProvider) UpdateDeviceStatus(ctx context.Context, userID, deviceID string, status DeviceStatus, approvedBy *string) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE devices SET status = ?, approved_by = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND device_id = ?`,
		status, approvedBy, userID, deviceID)
	if err != nil {
		return fmt.Errorf("failed to update device status: %w", err)
	}
	return requireRow(result, deviceID)
}

func (p *SQLProvider) RenameDevice(ctx context.Context, userID, deviceID, name string) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE devices SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ? AND device_id = ?`,
		name, userID, deviceID)
	if err != nil {
		return fmt.Errorf("failed to rename device: %w", err)
	}
	return requireRow(result, deviceID)
}

func (p *SQLProvider) DeleteDevice(ctx context.Context, userID, deviceID string) error {
	result, err := p.db.ExecContext(ctx,
		`DELETE FROM devices WHERE user_id = ? AND device_id = ?`, userID, deviceID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return requireRow(result, deviceID)
}

// SetTemporaryAccess writes all three temporary-access fields in one
// statement so a concurrent read never observes a half-written grant.
// Callers pass nil until for a revocation.
func (p *SQLProvider) SetTemporaryAccess(ctx context.Context, userID, deviceID string, grantedAt, until *time.Time, minutes *int) error {
	result, err := p.db.ExecContext(ctx,
		`UPDATE devices SET temp_access_granted_at = ?, temp_access_until = ?, temp_access_minutes = ?,
		 updated_at = CURRENT_TIMESTAMP WHERE user_id = ? AND device_id = ?`,
		grantedAt, until, minutes, userID, deviceID)
	if err != nil {
		return fmt.Errorf("failed to set temporary access: %w", err)
	}
	if err := requireRow(result, deviceID); err != nil {
		return err
	}
	// A grant or revoke changes the effective policy for this user.
	p.cache.Invalidate(userID)
	return nil
}

func (p *SQLProvider) PruneDevices(ctx context.Context, olderThan time.Time, statusFilter DeviceStatus) (int64, error) {
	result, err := p.db.ExecContext(ctx,
		`DELETE FROM devices WHERE status = ? AND created_at < ?`, statusFilter, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune devices: %w", err)
	}
	return result.RowsAffected()
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
