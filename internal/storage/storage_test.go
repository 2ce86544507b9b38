package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"stream-access-guard/internal/config"
)

func newTestProvider(t *testing.T) *SQLProvider {
	t.Helper()
	p := NewSQLProvider(&config.Config{}, "sqlite3", ":memory:")
	if p == nil {
		t.Fatal("failed to open in-memory database")
	}
	if err := p.runMigrations("sqlite3"); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestMigrationsApply(t *testing.T) {
	p := newTestProvider(t)
	version, err := p.GetSchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("GetSchemaVersion failed: %v", err)
	}
	if version < 1 {
		t.Errorf("schema version = %d, want >= 1", version)
	}
}

func TestDeviceLifecycle(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	err := p.CreateDevice(ctx, Device{
		DeviceID: "dev1",
		UserID:   "user1",
		Name:     "Living room TV",
		ClientIP: "192.168.1.20",
	})
	if err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	device, err := p.GetDevice(ctx, "user1", "dev1")
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if device.Status != DeviceStatusPending {
		t.Errorf("new device status = %s, want pending", device.Status)
	}

	// Same device id under another user is a distinct record
	if err := p.CreateDevice(ctx, Device{DeviceID: "dev1", UserID: "user2"}); err != nil {
		t.Fatalf("CreateDevice for second user failed: %v", err)
	}
	if _, err := p.GetDevice(ctx, "user2", "dev1"); err != nil {
		t.Fatalf("GetDevice for second user failed: %v", err)
	}

	approver := "admin@host"
	if err := p.UpdateDeviceStatus(ctx, "user1", "dev1", DeviceStatusApproved, &approver); err != nil {
		t.Fatalf("UpdateDeviceStatus failed: %v", err)
	}
	device, _ = p.GetDevice(ctx, "user1", "dev1")
	if device.Status != DeviceStatusApproved || device.ApprovedBy == nil || *device.ApprovedBy != approver {
		t.Errorf("after approve: status=%s approvedBy=%v", device.Status, device.ApprovedBy)
	}
	// The other user's record is untouched
	other, _ := p.GetDevice(ctx, "user2", "dev1")
	if other.Status != DeviceStatusPending {
		t.Errorf("sibling record mutated: status=%s", other.Status)
	}

	if err := p.RenameDevice(ctx, "user1", "dev1", "Bedroom TV"); err != nil {
		t.Fatalf("RenameDevice failed: %v", err)
	}
	device, _ = p.GetDevice(ctx, "user1", "dev1")
	if device.Name != "Bedroom TV" {
		t.Errorf("name = %s, want Bedroom TV", device.Name)
	}

	if err := p.DeleteDevice(ctx, "user1", "dev1"); err != nil {
		t.Fatalf("DeleteDevice failed: %v", err)
	}
	if _, err := p.GetDevice(ctx, "user1", "dev1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDevice after delete = %v, want ErrNotFound", err)
	}

	// Mutations on a missing device report not found
	if err := p.UpdateDeviceStatus(ctx, "user1", "ghost", DeviceStatusApproved, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateDeviceStatus on missing device = %v, want ErrNotFound", err)
	}
}

func TestTemporaryAccessRoundTrip(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if err := p.CreateDevice(ctx, Device{DeviceID: "dev1", UserID: "user1"}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	grantedAt := time.Now().UTC().Truncate(time.Second)
	until := grantedAt.Add(30 * time.Minute)
	minutes := 30
	if err := p.SetTemporaryAccess(ctx, "user1", "dev1", &grantedAt, &until, &minutes); err != nil {
		t.Fatalf("SetTemporaryAccess failed: %v", err)
	}

	device, err := p.GetDevice(ctx, "user1", "dev1")
	if err != nil {
		t.Fatalf("GetDevice failed: %v", err)
	}
	if device.TempAccessUntil == nil || !device.TempAccessUntil.Equal(until) {
		t.Errorf("TempAccessUntil = %v, want %v", device.TempAccessUntil, until)
	}
	if device.TempAccessMinutes == nil || *device.TempAccessMinutes != minutes {
		t.Errorf("TempAccessMinutes = %v, want %d", device.TempAccessMinutes, minutes)
	}

	// Revocation clears the expiry but keeps the audit fields
	if err := p.SetTemporaryAccess(ctx, "user1", "dev1", &grantedAt, nil, &minutes); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	device, _ = p.GetDevice(ctx, "user1", "dev1")
	if device.TempAccessUntil != nil {
		t.Errorf("TempAccessUntil after revoke = %v, want nil", device.TempAccessUntil)
	}
	if device.TempAccessGrantedAt == nil || device.TempAccessMinutes == nil {
		t.Error("audit fields cleared by revoke")
	}
}

func TestPruneDevices(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if err := p.CreateDevice(ctx, Device{DeviceID: "old", UserID: "user1"}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}
	if err := p.CreateDevice(ctx, Device{DeviceID: "approved", UserID: "user1", Status: DeviceStatusApproved}); err != nil {
		t.Fatalf("CreateDevice failed: %v", err)
	}

	// Cutoff in the future catches the pending device but not the approved one
	count, err := p.PruneDevices(ctx, time.Now().Add(time.Hour), DeviceStatusPending)
	if err != nil {
		t.Fatalf("PruneDevices failed: %v", err)
	}
	if count != 1 {
		t.Errorf("pruned %d devices, want 1", count)
	}
	if _, err := p.GetDevice(ctx, "user1", "approved"); err != nil {
		t.Errorf("approved device pruned: %v", err)
	}
}

func TestUserPreferenceUpsert(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	if _, err := p.GetUserPreference(ctx, "user1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUserPreference on empty store = %v, want ErrNotFound", err)
	}

	block := true
	pref := UserPreference{
		UserID:         "user1",
		DefaultBlock:   &block,
		NetworkPolicy:  NetworkPolicyLAN,
		IPAccessPolicy: IPAccessPolicyRestricted,
		AllowedIPs:     IPList{"192.168.1.0/24", "10.0.0.5"},
	}
	if err := p.UpsertUserPreference(ctx, pref); err != nil {
		t.Fatalf("UpsertUserPreference failed: %v", err)
	}

	got, err := p.GetUserPreference(ctx, "user1")
	if err != nil {
		t.Fatalf("GetUserPreference failed: %v", err)
	}
	if got.NetworkPolicy != NetworkPolicyLAN || got.IPAccessPolicy != IPAccessPolicyRestricted {
		t.Errorf("policies = %s/%s", got.NetworkPolicy, got.IPAccessPolicy)
	}
	if len(got.AllowedIPs) != 2 || got.AllowedIPs[0] != "192.168.1.0/24" {
		t.Errorf("AllowedIPs = %v", got.AllowedIPs)
	}
	if got.DefaultBlock == nil || !*got.DefaultBlock {
		t.Errorf("DefaultBlock = %v, want true", got.DefaultBlock)
	}

	// Second write updates in place
	pref.NetworkPolicy = NetworkPolicyBoth
	pref.DefaultBlock = nil
	if err := p.UpsertUserPreference(ctx, pref); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	got, _ = p.GetUserPreference(ctx, "user1")
	if got.NetworkPolicy != NetworkPolicyBoth || got.DefaultBlock != nil {
		t.Errorf("after update: policy=%s block=%v", got.NetworkPolicy, got.DefaultBlock)
	}
}

func TestGlobalDefaultBlock(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	// Unset setting falls back to the configured value
	block, err := p.GetGlobalDefaultBlock(ctx)
	if err != nil {
		t.Fatalf("GetGlobalDefaultBlock failed: %v", err)
	}
	if block {
		t.Error("fresh store reports default block true")
	}

	if err := p.SetGlobalDefaultBlock(ctx, true); err != nil {
		t.Fatalf("SetGlobalDefaultBlock failed: %v", err)
	}
	block, _ = p.GetGlobalDefaultBlock(ctx)
	if !block {
		t.Error("stored default block not read back")
	}
}

func TestTimeRuleCRUD(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	rule := TimeRule{
		ID: "r1", UserID: "user1", DayOfWeek: 1,
		StartTime: "09:00", EndTime: "12:00", Enabled: true,
	}
	if err := p.CreateTimeRule(ctx, rule); err != nil {
		t.Fatalf("CreateTimeRule failed: %v", err)
	}

	got, err := p.GetTimeRule(ctx, "r1")
	if err != nil {
		t.Fatalf("GetTimeRule failed: %v", err)
	}
	if got.StartTime != "09:00" || got.EndTime != "12:00" || got.DeviceID != nil {
		t.Errorf("rule = %+v", got)
	}

	got.EndTime = "13:00"
	if err := p.UpdateTimeRule(ctx, *got); err != nil {
		t.Fatalf("UpdateTimeRule failed: %v", err)
	}

	if err := p.SetTimeRuleEnabled(ctx, "r1", false); err != nil {
		t.Fatalf("SetTimeRuleEnabled failed: %v", err)
	}
	got, _ = p.GetTimeRule(ctx, "r1")
	if got.Enabled || got.EndTime != "13:00" {
		t.Errorf("after toggle: %+v", got)
	}

	if err := p.DeleteTimeRule(ctx, "r1"); err != nil {
		t.Fatalf("DeleteTimeRule failed: %v", err)
	}
	if _, err := p.GetTimeRule(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetTimeRule after delete = %v, want ErrNotFound", err)
	}
}

// A failing replacement must leave the previous rule set intact.
func TestReplaceTimeRulesAtomic(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	original := TimeRule{
		ID: "keep", UserID: "user1", DayOfWeek: 1,
		StartTime: "09:00", EndTime: "12:00", Enabled: true,
	}
	if err := p.CreateTimeRule(ctx, original); err != nil {
		t.Fatalf("CreateTimeRule failed: %v", err)
	}

	// Duplicate primary key in the new set makes the second insert fail
	bad := []TimeRule{
		{ID: "dup", UserID: "user1", DayOfWeek: 2, StartTime: "10:00", EndTime: "11:00", Enabled: true},
		{ID: "dup", UserID: "user1", DayOfWeek: 3, StartTime: "10:00", EndTime: "11:00", Enabled: true},
	}
	if err := p.ReplaceTimeRules(ctx, "user1", nil, bad); err == nil {
		t.Fatal("ReplaceTimeRules with duplicate ids succeeded")
	}

	rules, err := p.GetTimeRules(ctx, "user1")
	if err != nil {
		t.Fatalf("GetTimeRules failed: %v", err)
	}
	if len(rules) != 1 || rules[0].ID != "keep" {
		t.Errorf("rules after failed replace = %v, want original only", rules)
	}
}

// Replacing one scope leaves the other scope's rules alone.
func TestReplaceTimeRulesScoped(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	deviceID := "dev1"

	userWide := TimeRule{ID: "u", UserID: "user1", DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", Enabled: true}
	devRule := TimeRule{ID: "d", UserID: "user1", DeviceID: &deviceID, DayOfWeek: 2, StartTime: "10:00", EndTime: "11:00", Enabled: true}
	for _, r := range []TimeRule{userWide, devRule} {
		if err := p.CreateTimeRule(ctx, r); err != nil {
			t.Fatalf("CreateTimeRule failed: %v", err)
		}
	}

	replacement := []TimeRule{
		{ID: "u2", UserID: "user1", DayOfWeek: 5, StartTime: "15:00", EndTime: "21:00", Enabled: true},
	}
	if err := p.ReplaceTimeRules(ctx, "user1", nil, replacement); err != nil {
		t.Fatalf("ReplaceTimeRules failed: %v", err)
	}

	rules, _ := p.GetTimeRules(ctx, "user1")
	ids := map[string]bool{}
	for _, r := range rules {
		ids[r.ID] = true
	}
	if !ids["u2"] || !ids["d"] || ids["u"] {
		t.Errorf("rules after scoped replace = %v", ids)
	}
}

func TestHasScheduleCache(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	has, err := p.HasSchedule(ctx, "user1")
	if err != nil {
		t.Fatalf("HasSchedule failed: %v", err)
	}
	if has {
		t.Error("empty store reports a schedule")
	}

	rule := TimeRule{
		ID: "r1", UserID: "user1", DayOfWeek: 1,
		StartTime: "09:00", EndTime: "12:00", Enabled: true,
	}
	if err := p.CreateTimeRule(ctx, rule); err != nil {
		t.Fatalf("CreateTimeRule failed: %v", err)
	}

	// The write invalidated the cached false
	has, _ = p.HasSchedule(ctx, "user1")
	if !has {
		t.Error("schedule not visible after rule creation")
	}

	// Disabling the only rule flips the badge off again
	if err := p.SetTimeRuleEnabled(ctx, "r1", false); err != nil {
		t.Fatalf("SetTimeRuleEnabled failed: %v", err)
	}
	has, _ = p.HasSchedule(ctx, "user1")
	if has {
		t.Error("disabled rule still counts as schedule")
	}
}
