package storage

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type DeviceStatus string

const (
	DeviceStatusPending  DeviceStatus = "pending"
	DeviceStatusApproved DeviceStatus = "approved"
	DeviceStatusRejected DeviceStatus = "rejected"
)

// Device is one client instance of the media server, identified by the
// stable device_id the client presents plus the owning user.
type Device struct {
	ID       int64  `db:"id"`
	DeviceID string `db:"device_id"`
	UserID   string `db:"user_id"`
	Name     string `db:"name"`
	ClientIP string `db:"client_ip"`

	Status     DeviceStatus `db:"status"`
	ApprovedBy *string      `db:"approved_by"`

	// Temporary access override. Until must be >= GrantedAt when set.
	// Minutes is informational for audit display.
	TempAccessUntil     *time.Time `db:"temp_access_until"`
	TempAccessGrantedAt *time.Time `db:"temp_access_granted_at"`
	TempAccessMinutes   *int       `db:"temp_access_minutes"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type NetworkPolicy string

const (
	NetworkPolicyBoth NetworkPolicy = "both"
	NetworkPolicyLAN  NetworkPolicy = "lan"
	NetworkPolicyWAN  NetworkPolicy = "wan"
)

type IPAccessPolicy string

const (
	IPAccessPolicyAll        IPAccessPolicy = "all"
	IPAccessPolicyRestricted IPAccessPolicy = "restricted"
)

// IPList is stored as a JSON array in a TEXT column.
type IPList []string

func (l IPList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *IPList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = IPList{}
		return nil
	case string:
		return json.Unmarshal([]byte(v), l)
	case []byte:
		return json.Unmarshal(v, l)
	default:
		return fmt.Errorf("cannot scan %T into IPList", src)
	}
}

// UserPreference is the per-user default policy. A nil DefaultBlock means
// the global default applies.
type UserPreference struct {
	UserID         string         `db:"user_id"`
	DefaultBlock   *bool          `db:"default_block"`
	NetworkPolicy  NetworkPolicy  `db:"network_policy"`
	IPAccessPolicy IPAccessPolicy `db:"ip_access_policy"`
	AllowedIPs     IPList         `db:"allowed_ips"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

// DefaultUserPreference is the conservative preference applied when a user
// has no stored record.
func DefaultUserPreference(userID string) UserPreference {
	return UserPreference{
		UserID:         userID,
		NetworkPolicy:  NetworkPolicyBoth,
		IPAccessPolicy: IPAccessPolicyAll,
		AllowedIPs:     IPList{},
	}
}

// TimeRule is a recurring weekly window during which streaming is permitted.
// A nil DeviceID scopes the rule to all of the user's devices.
type TimeRule struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	DeviceID  *string   `db:"device_id"`
	DayOfWeek int       `db:"day_of_week"` // 0 = Sunday
	StartTime string    `db:"start_time"`  // "HH:MM"
	EndTime   string    `db:"end_time"`    // "HH:MM"
	Enabled   bool      `db:"enabled"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
