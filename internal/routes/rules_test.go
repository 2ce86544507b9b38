package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"stream-access-guard/internal/storage"
)

// fakeStore is a hand-written in-memory Provider for handler tests.
type fakeStore struct {
	devices map[string]*storage.Device
	rules   map[string]storage.TimeRule
	prefs   map[string]storage.UserPreference

	// When set, CreateDevice installs the record and then fails, imitating
	// a lost race against a concurrent insert of the same device.
	createDeviceErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		devices: make(map[string]*storage.Device),
		rules:   make(map[string]storage.TimeRule),
		prefs:   make(map[string]storage.UserPreference),
	}
}

func deviceKey(userID, deviceID string) string { return userID + "/" + deviceID }

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) GetSchemaVersion(ctx context.Context) (int, error) { return 1, nil }

func (f *fakeStore) GetDevice(ctx context.Context, userID, deviceID string) (*storage.Device, error) {
	if d, ok := f.devices[deviceKey(userID, deviceID)]; ok {
		copy := *d
		return &copy, nil
	}
	return nil, fmt.Errorf("%w: device %s", storage.ErrNotFound, deviceID)
}

func (f *fakeStore) ListDevices(ctx context.Context, status storage.DeviceStatus) ([]storage.Device, error) {
	var out []storage.Device
	for _, d := range f.devices {
		if d.Status == status {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeStore) ListUserDevices(ctx context.Context, userID string) ([]storage.Device, error) {
	var out []storage.Device
	for _, d := range f.devices {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateDevice(ctx context.Context, device storage.Device) error {
	f.devices[deviceKey(device.UserID, device.DeviceID)] = &device
	return f.createDeviceErr
}

func (f *fakeStore) UpdateDeviceStatus(ctx context.Context, userID, deviceID string, status storage.DeviceStatus, approvedBy *string) error {
	d, ok := f.devices[deviceKey(userID, deviceID)]
	if !ok {
		return storage.ErrNotFound
	}
	d.Status = status
	d.ApprovedBy = approvedBy
	return nil
}

func (f *fakeStore) RenameDevice(ctx context.Context, userID, deviceID, name string) error {
	d, ok := f.devices[deviceKey(userID, deviceID)]
	if !ok {
		return storage.ErrNotFound
	}
	d.Name = name
	return nil
}

func (f *fakeStore) DeleteDevice(ctx context.Context, userID, deviceID string) error {
	delete(f.devices, deviceKey(userID, deviceID))
	return nil
}

func (f *fakeStore) SetTemporaryAccess(ctx context.Context, userID, deviceID string, grantedAt, until *time.Time, minutes *int) error {
	d, ok := f.devices[deviceKey(userID, deviceID)]
	if !ok {
		return storage.ErrNotFound
	}
	d.TempAccessGrantedAt, d.TempAccessUntil, d.TempAccessMinutes = grantedAt, until, minutes
	return nil
}

func (f *fakeStore) PruneDevices(ctx context.Context, olderThan time.Time, statusFilter storage.DeviceStatus) (int64, error) {
	return 0, nil
}

func (f *fakeStore) GetUserPreference(ctx context.Context, userID string) (*storage.UserPreference, error) {
	if p, ok := f.prefs[userID]; ok {
		return &p, nil
	}
	return nil, fmt.Errorf("%w: preference for %s", storage.ErrNotFound, userID)
}

func (f *fakeStore) UpsertUserPreference(ctx context.Context, pref storage.UserPreference) error {
	f.prefs[pref.UserID] = pref
	return nil
}

func (f *fakeStore) GetGlobalDefaultBlock(ctx context.Context) (bool, error) { return false, nil }

func (f *fakeStore) SetGlobalDefaultBlock(ctx context.Context, block bool) error { return nil }

func (f *fakeStore) GetTimeRules(ctx context.Context, userID string) ([]storage.TimeRule, error) {
	var out []storage.TimeRule
	for _, r := range f.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetTimeRule(ctx context.Context, id string) (*storage.TimeRule, error) {
	if r, ok := f.rules[id]; ok {
		return &r, nil
	}
	return nil, fmt.Errorf("%w: time rule %s", storage.ErrNotFound, id)
}

func (f *fakeStore) CreateTimeRule(ctx context.Context, rule storage.TimeRule) error {
	f.rules[rule.ID] = rule
	return nil
}

func (f *fakeStore) UpdateTimeRule(ctx context.Context, rule storage.TimeRule) error {
	if _, ok := f.rules[rule.ID]; !ok {
		return storage.ErrNotFound
	}
	f.rules[rule.ID] = rule
	return nil
}

func (f *fakeStore) DeleteTimeRule(ctx context.Context, id string) error {
	delete(f.rules, id)
	return nil
}

func (f *fakeStore) SetTimeRuleEnabled(ctx context.Context, id string, enabled bool) error {
	r, ok := f.rules[id]
	if !ok {
		return storage.ErrNotFound
	}
	r.Enabled = enabled
	f.rules[id] = r
	return nil
}

func (f *fakeStore) ReplaceTimeRules(ctx context.Context, userID string, deviceID *string, rules []storage.TimeRule) error {
	for id, r := range f.rules {
		if r.UserID == userID {
			delete(f.rules, id)
		}
	}
	for _, r := range rules {
		f.rules[r.ID] = r
	}
	return nil
}

func (f *fakeStore) HasSchedule(ctx context.Context, userID string) (bool, error) { return false, nil }

var _ storage.Provider = (*fakeStore)(nil)

func newTestRouter(store *fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(func(c *gin.Context) {
		c.Set("Storage", store)
		c.Next()
	})
	RuleRoutes(r.Group("/rules"))
	SessionRoutes(r.Group("/api/session"))
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// An update must be validated against the stored rule owner's schedule,
// regardless of the user_id the request body claims. A body naming a
// different user must be rejected outright.
func TestUpdateRuleValidatesAgainstStoredOwner(t *testing.T) {
	store := newFakeStore()
	store.rules["a"] = storage.TimeRule{
		ID: "a", UserID: "userA", DayOfWeek: 1,
		StartTime: "09:00", EndTime: "12:00", Enabled: true,
	}
	store.rules["b"] = storage.TimeRule{
		ID: "b", UserID: "userA", DayOfWeek: 1,
		StartTime: "13:00", EndTime: "14:00", Enabled: true,
	}
	r := newTestRouter(store)

	// Body claims another user and slides rule b over rule a
	w := doJSON(t, r, http.MethodPut, "/rules/b", gin.H{
		"user_id": "userB", "day_of_week": 1,
		"start_time": "11:00", "end_time": "13:30",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("foreign user_id update: status = %d, want 400", w.Code)
	}
	if got := store.rules["b"]; got.UserID != "userA" || got.StartTime != "13:00" {
		t.Fatalf("stored rule mutated by rejected update: %+v", got)
	}

	// Same move with the owner's user_id is caught as an overlap
	w = doJSON(t, r, http.MethodPut, "/rules/b", gin.H{
		"user_id": "userA", "day_of_week": 1,
		"start_time": "11:00", "end_time": "13:30",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("overlapping update: status = %d, want 409", w.Code)
	}
	if got := store.rules["b"]; got.StartTime != "13:00" {
		t.Fatalf("stored rule mutated by overlapping update: %+v", got)
	}

	// A non-overlapping update by the owner goes through
	w = doJSON(t, r, http.MethodPut, "/rules/b", gin.H{
		"user_id": "userA", "day_of_week": 1,
		"start_time": "12:00", "end_time": "14:00",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("valid update: status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if got := store.rules["b"]; got.StartTime != "12:00" || got.UserID != "userA" {
		t.Fatalf("valid update not stored: %+v", got)
	}
}

func TestUpdateUnknownRule(t *testing.T) {
	r := newTestRouter(newFakeStore())
	w := doJSON(t, r, http.MethodPut, "/rules/ghost", gin.H{
		"user_id": "userA", "day_of_week": 1,
		"start_time": "09:00", "end_time": "12:00",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown rule update: status = %d, want 404", w.Code)
	}
}

// Keep errors.Is behavior intact for the fake's wrapped sentinel.
func TestFakeStoreNotFound(t *testing.T) {
	store := newFakeStore()
	_, err := store.GetTimeRule(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("fake sentinel not wrapped: %v", err)
	}
}
