// Package schedule evaluates recurring weekly access windows and validates
// time-rule writes. Evaluation is a pure function of the injected time so
// verdicts stay deterministic under test.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"stream-access-guard/internal/storage"
)

var (
	ErrInvalidTimeFormat = errors.New("time must be in HH:MM format")
	ErrInvalidTimeRange  = errors.New("end time must be after start time")
	ErrInvalidDayOfWeek  = errors.New("day of week must be between 0 and 6")
	ErrOverlappingRules  = errors.New("rule overlaps an existing rule for the same day and scope")
)

// parseMinutes converts "HH:MM" to minutes since midnight.
func parseMinutes(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, hhmm)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ValidateTimeRange rejects malformed or inverted windows. Midnight-spanning
// windows (end <= start) are rejected; a wraparound must be entered as two
// rules on adjacent days.
func ValidateTimeRange(start, end string) error {
	s, err := parseMinutes(start)
	if err != nil {
		return err
	}
	e, err := parseMinutes(end)
	if err != nil {
		return err
	}
	if e <= s {
		return fmt.Errorf("%w: %s-%s", ErrInvalidTimeRange, start, end)
	}
	return nil
}

// sameScope reports whether two rules target the same device scope.
func sameScope(a, b storage.TimeRule) bool {
	if a.DeviceID == nil && b.DeviceID == nil {
		return true
	}
	if a.DeviceID != nil && b.DeviceID != nil {
		return *a.DeviceID == *b.DeviceID
	}
	return false
}

// RulesOverlap implements the interval predicate start1 < end2 && end1 > start2
// for two rules on the same day and scope. Rules that fail to parse are
// treated as overlapping so a malformed rule cannot slip past validation.
func RulesOverlap(a, b storage.TimeRule) bool {
	if a.DayOfWeek != b.DayOfWeek || !sameScope(a, b) {
		return false
	}
	s1, err1 := parseMinutes(a.StartTime)
	e1, err2 := parseMinutes(a.EndTime)
	s2, err3 := parseMinutes(b.StartTime)
	e2, err4 := parseMinutes(b.EndTime)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return true
	}
	return s1 < e2 && e1 > s2
}

// ValidateRule checks a single rule for storable shape.
func ValidateRule(rule storage.TimeRule) error {
	if rule.DayOfWeek < 0 || rule.DayOfWeek > 6 {
		return fmt.Errorf("%w: %d", ErrInvalidDayOfWeek, rule.DayOfWeek)
	}
	return ValidateTimeRange(rule.StartTime, rule.EndTime)
}

// ValidateAgainstExisting rejects a rule that would overlap any enabled rule
// already stored for the same scope. The rule being updated is skipped by ID.
func ValidateAgainstExisting(rule storage.TimeRule, existing []storage.TimeRule) error {
	if err := ValidateRule(rule); err != nil {
		return err
	}
	if !rule.Enabled {
		return nil
	}
	for _, other := range existing {
		if other.ID == rule.ID || !other.Enabled {
			continue
		}
		if RulesOverlap(rule, other) {
			return fmt.Errorf("%w: %s %s-%s", ErrOverlappingRules, other.ID, other.StartTime, other.EndTime)
		}
	}
	return nil
}

// ResolveRules selects the rule set that governs one device: device-scoped
// rules fully supersede user-wide rules when any exist for that device.
func ResolveRules(rules []storage.TimeRule, deviceID string) []storage.TimeRule {
	var deviceScoped, userWide []storage.TimeRule
	for _, rule := range rules {
		if rule.DeviceID != nil {
			if *rule.DeviceID == deviceID {
				deviceScoped = append(deviceScoped, rule)
			}
			continue
		}
		userWide = append(userWide, rule)
	}
	if len(deviceScoped) > 0 {
		return deviceScoped
	}
	return userWide
}

// IsWithinSchedule reports whether now falls inside any enabled window.
//
// A scope with zero enabled rules has no schedule restriction and always
// returns true; the engine distinguishes that from "outside all windows"
// by checking HasEnabledRules first.
func IsWithinSchedule(rules []storage.TimeRule, now time.Time) bool {
	if !HasEnabledRules(rules) {
		return true
	}
	day := int(now.Weekday())
	minute := now.Hour()*60 + now.Minute()
	for _, rule := range rules {
		if !rule.Enabled || rule.DayOfWeek != day {
			continue
		}
		start, err := parseMinutes(rule.StartTime)
		if err != nil {
			continue
		}
		end, err := parseMinutes(rule.EndTime)
		if err != nil {
			continue
		}
		if start <= minute && minute < end {
			return true
		}
	}
	return false
}

// HasEnabledRules reports whether any rule in the set is enabled.
func HasEnabledRules(rules []storage.TimeRule) bool {
	for _, rule := range rules {
		if rule.Enabled {
			return true
		}
	}
	return false
}
