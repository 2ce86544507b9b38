package storage

import (
	"context"
	"log/slog"
	"time"

	"stream-access-guard/internal/config"
)

// Provider is the state-store contract the decision engine and the admin
// surface read from and write to. Mutations are atomic per entity;
// ReplaceTimeRules is transactional so the engine never evaluates a
// partially-replaced schedule.
type Provider interface {
	Close() error
	GetSchemaVersion(ctx context.Context) (int, error)

	// Device reads
	GetDevice(ctx context.Context, userID, deviceID string) (*Device, error)
	ListDevices(ctx context.Context, status DeviceStatus) ([]Device, error)
	ListUserDevices(ctx context.Context, userID string) ([]Device, error)

	// Device writes
	CreateDevice(ctx context.Context, device Device) error
	UpdateDeviceStatus(ctx context.Context, userID, deviceID string, status DeviceStatus, approvedBy *string) error
	RenameDevice(ctx context.Context, userID, deviceID, name string) error
	DeleteDevice(ctx context.Context, userID, deviceID string) error
	SetTemporaryAccess(ctx context.Context, userID, deviceID string, grantedAt, until *time.Time, minutes *int) error
	PruneDevices(ctx context.Context, olderThan time.Time, statusFilter DeviceStatus) (int64, error)

	// User preference
	GetUserPreference(ctx context.Context, userID string) (*UserPreference, error)
	UpsertUserPreference(ctx context.Context, pref UserPreference) error

	// Global default policy
	GetGlobalDefaultBlock(ctx context.Context) (bool, error)
	SetGlobalDefaultBlock(ctx context.Context, block bool) error

	// Time rules
	GetTimeRules(ctx context.Context, userID string) ([]TimeRule, error)
	GetTimeRule(ctx context.Context, id string) (*TimeRule, error)
	CreateTimeRule(ctx context.Context, rule TimeRule) error
	UpdateTimeRule(ctx context.Context, rule TimeRule) error
	DeleteTimeRule(ctx context.Context, id string) error
	SetTimeRuleEnabled(ctx context.Context, id string, enabled bool) error
	ReplaceTimeRules(ctx context.Context, userID string, deviceID *string, rules []TimeRule) error

	// HasSchedule serves the non-safety "scheduled" badge from the
	// synchronously-invalidated cache. The admission path never uses it.
	HasSchedule(ctx context.Context, userID string) (bool, error)
}

func NewProvider(config *config.Config) Provider {
	switch {
	case config.Storage.SQLite != nil:
		provider := NewSQLiteProvider(config)
		if provider == nil {
			return nil
		}
		if err := provider.runMigrations("sqlite3"); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			return nil
		}
		return provider

	default:
		slog.Error("Unsupported storage configuration", "config", config.Storage)
	}

	return nil
}
