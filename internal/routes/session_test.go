package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

// Two concurrent first admissions race on the device insert. The loser's
// failed create must fall back to re-reading the winner's record and still
// produce a verdict, not a 503.
func TestFirstSeenDeviceInsertRace(t *testing.T) {
	store := newFakeStore()
	store.createDeviceErr = errors.New("UNIQUE constraint failed: devices.user_id, devices.device_id")
	r := newTestRouter(store)

	w := doJSON(t, r, http.MethodPost, "/api/session/check", map[string]string{
		"user_id":   "user1",
		"device_id": "dev1",
		"source_ip": "192.168.1.20",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("raced admission: status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Allowed bool   `json:"allowed"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Allowed || resp.Reason != "DEVICE_PENDING" {
		t.Fatalf("verdict = %+v, want denied DEVICE_PENDING", resp)
	}
}

func TestFirstSeenDeviceCreatesPending(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	w := doJSON(t, r, http.MethodPost, "/api/session/check", map[string]string{
		"user_id":   "user1",
		"device_id": "dev1",
		"source_ip": "203.0.113.5",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("first admission: status = %d, want 200, body %s", w.Code, w.Body.String())
	}

	device, err := store.GetDevice(t.Context(), "user1", "dev1")
	if err != nil {
		t.Fatalf("pending device not created: %v", err)
	}
	if device.Status != "pending" || device.ClientIP != "203.0.113.5" {
		t.Fatalf("pending device = %+v", device)
	}
}
