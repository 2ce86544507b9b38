// Package tempaccess implements the time-boxed override that grants a device
// access regardless of every other policy layer until an expiry instant. It
// can only grant, never deny. Expiry is computed against an injected now,
// there is no background sweep involved in correctness.
package tempaccess

import (
	"errors"
	"fmt"
	"time"

	"stream-access-guard/internal/storage"
)

// MaxDurationMinutes caps a grant at one year.
const MaxDurationMinutes = 525600

var ErrInvalidDuration = errors.New("temporary access duration out of range")

// ValidateDuration rejects durations outside [1, MaxDurationMinutes].
// Out-of-range values are rejected, never clamped.
func ValidateDuration(minutes int) error {
	if minutes < 1 || minutes > MaxDurationMinutes {
		return fmt.Errorf("%w: %d minutes (must be 1-%d)", ErrInvalidDuration, minutes, MaxDurationMinutes)
	}
	return nil
}

// Grant stamps the temporary-access fields on the device. GrantedAt and
// Until are set together so a reader never observes a half-written grant.
func Grant(device *storage.Device, minutes int, now time.Time) error {
	if err := ValidateDuration(minutes); err != nil {
		return err
	}
	grantedAt := now
	until := now.Add(time.Duration(minutes) * time.Minute)
	device.TempAccessGrantedAt = &grantedAt
	device.TempAccessUntil = &until
	device.TempAccessMinutes = &minutes
	return nil
}

// Revoke clears the expiry. GrantedAt and Minutes are retained for audit
// display.
func Revoke(device *storage.Device) {
	device.TempAccessUntil = nil
}

// IsActive reports whether the device is under temporary access at now:
// an expiry is set and lies strictly in the future.
func IsActive(device *storage.Device, now time.Time) bool {
	if device == nil || device.TempAccessUntil == nil {
		return false
	}
	return device.TempAccessUntil.After(now)
}
