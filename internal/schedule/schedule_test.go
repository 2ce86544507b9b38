package schedule

import (
	"errors"
	"testing"
	"time"

	"stream-access-guard/internal/storage"
)

func strptr(s string) *string { return &s }

func rule(id string, deviceID *string, day int, start, end string, enabled bool) storage.TimeRule {
	return storage.TimeRule{
		ID:        id,
		UserID:    "user1",
		DeviceID:  deviceID,
		DayOfWeek: day,
		StartTime: start,
		EndTime:   end,
		Enabled:   enabled,
	}
}

func TestValidateTimeRange(t *testing.T) {
	if err := ValidateTimeRange("09:00", "12:00"); err != nil {
		t.Errorf("valid range rejected: %v", err)
	}
	if err := ValidateTimeRange("12:00", "09:00"); !errors.Is(err, ErrInvalidTimeRange) {
		t.Errorf("inverted range, got %v", err)
	}
	// No midnight-spanning rules, equal bounds are rejected too
	if err := ValidateTimeRange("22:00", "02:00"); !errors.Is(err, ErrInvalidTimeRange) {
		t.Errorf("wraparound range, got %v", err)
	}
	if err := ValidateTimeRange("09:00", "09:00"); !errors.Is(err, ErrInvalidTimeRange) {
		t.Errorf("zero-length range, got %v", err)
	}
	if err := ValidateTimeRange("9am", "12:00"); !errors.Is(err, ErrInvalidTimeFormat) {
		t.Errorf("malformed start, got %v", err)
	}
}

func TestRulesOverlap(t *testing.T) {
	a := rule("a", nil, 1, "09:00", "12:00", true)

	cases := []struct {
		name string
		b    storage.TimeRule
		want bool
	}{
		{"overlapping", rule("b", nil, 1, "11:00", "13:00", true), true},
		{"adjacent", rule("b", nil, 1, "12:00", "13:00", true), false},
		{"contained", rule("b", nil, 1, "10:00", "11:00", true), true},
		{"different day", rule("b", nil, 2, "11:00", "13:00", true), false},
		{"different scope", rule("b", strptr("dev1"), 1, "11:00", "13:00", true), false},
	}

	for _, c := range cases {
		if got := RulesOverlap(a, c.b); got != c.want {
			t.Errorf("%s: RulesOverlap = %v, want %v", c.name, got, c.want)
		}
	}

	// Same device scope overlaps
	x := rule("x", strptr("dev1"), 1, "09:00", "12:00", true)
	y := rule("y", strptr("dev1"), 1, "11:00", "13:00", true)
	if !RulesOverlap(x, y) {
		t.Error("device-scoped overlap not detected")
	}
}

func TestValidateAgainstExisting(t *testing.T) {
	existing := []storage.TimeRule{
		rule("a", nil, 1, "09:00", "12:00", true),
		rule("d", nil, 1, "13:00", "14:00", false), // disabled, ignored
	}

	if err := ValidateAgainstExisting(rule("b", nil, 1, "12:00", "13:00", true), existing); err != nil {
		t.Errorf("non-overlapping rule rejected: %v", err)
	}
	if err := ValidateAgainstExisting(rule("b", nil, 1, "11:00", "13:00", true), existing); !errors.Is(err, ErrOverlappingRules) {
		t.Errorf("overlapping rule accepted, got %v", err)
	}
	// Overlap with a disabled rule is fine
	if err := ValidateAgainstExisting(rule("b", nil, 1, "13:00", "14:00", true), existing); err != nil {
		t.Errorf("overlap with disabled rule rejected: %v", err)
	}
	// Updating a rule in place must not collide with itself
	if err := ValidateAgainstExisting(rule("a", nil, 1, "09:30", "12:00", true), existing); err != nil {
		t.Errorf("self-update rejected: %v", err)
	}
}

func TestResolveRules(t *testing.T) {
	userWide := rule("u", nil, 1, "09:00", "12:00", true)
	devRule := rule("d", strptr("dev1"), 2, "10:00", "11:00", true)
	otherDev := rule("o", strptr("dev2"), 3, "10:00", "11:00", true)

	// Device rules fully supersede user-wide rules
	resolved := ResolveRules([]storage.TimeRule{userWide, devRule, otherDev}, "dev1")
	if len(resolved) != 1 || resolved[0].ID != "d" {
		t.Errorf("expected only device rule, got %v", resolved)
	}

	// No device rules: fall back to user-wide
	resolved = ResolveRules([]storage.TimeRule{userWide, otherDev}, "dev1")
	if len(resolved) != 1 || resolved[0].ID != "u" {
		t.Errorf("expected user-wide fallback, got %v", resolved)
	}
}

func TestIsWithinSchedule(t *testing.T) {
	// 2026-08-31 is a Monday
	monday10 := time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC)
	monday13 := time.Date(2026, 8, 31, 13, 0, 0, 0, time.UTC)

	rules := []storage.TimeRule{rule("a", nil, 1, "09:00", "12:00", true)}

	if !IsWithinSchedule(rules, monday10) {
		t.Error("10:30 should be inside 09:00-12:00")
	}
	if IsWithinSchedule(rules, monday13) {
		t.Error("13:00 should be outside 09:00-12:00")
	}

	// End bound is exclusive
	mondayNoon := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	if IsWithinSchedule(rules, mondayNoon) {
		t.Error("12:00 should be outside 09:00-12:00 (exclusive end)")
	}
	mondayStart := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	if !IsWithinSchedule(rules, mondayStart) {
		t.Error("09:00 should be inside 09:00-12:00 (inclusive start)")
	}

	// Zero enabled rules means no restriction
	disabled := []storage.TimeRule{rule("a", nil, 1, "09:00", "12:00", false)}
	if !IsWithinSchedule(disabled, monday13) {
		t.Error("scope with no enabled rules must not restrict")
	}
	if !IsWithinSchedule(nil, monday13) {
		t.Error("empty scope must not restrict")
	}
}

func TestPresetRules(t *testing.T) {
	rules, err := PresetRules("weekdays-only", "user1", nil)
	if err != nil {
		t.Fatalf("PresetRules failed: %v", err)
	}
	if len(rules) != 5 {
		t.Fatalf("expected 5 weekday rules, got %d", len(rules))
	}
	days := map[int]bool{}
	for _, r := range rules {
		if !r.Enabled {
			t.Errorf("preset rule %s not enabled", r.ID)
		}
		if r.UserID != "user1" || r.DeviceID != nil {
			t.Errorf("preset rule scope wrong: %+v", r)
		}
		if err := ValidateRule(r); err != nil {
			t.Errorf("preset produced invalid rule: %v", err)
		}
		days[r.DayOfWeek] = true
	}
	for day := 1; day <= 5; day++ {
		if !days[day] {
			t.Errorf("weekday preset missing day %d", day)
		}
	}

	weekend, err := PresetRules("weekends-only", "user1", strptr("dev1"))
	if err != nil {
		t.Fatalf("PresetRules failed: %v", err)
	}
	if len(weekend) != 2 {
		t.Fatalf("expected 2 weekend rules, got %d", len(weekend))
	}

	if _, err := PresetRules("no-such-preset", "user1", nil); err == nil {
		t.Error("unknown preset accepted")
	}
}
