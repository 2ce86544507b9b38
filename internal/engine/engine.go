// Package engine produces the allow/block verdict for one session-admission
// request. It is a pure, synchronous evaluation over values already read
// from storage: no I/O, no clock reads, safe to call concurrently.
package engine

import (
	"time"

	"stream-access-guard/internal/netaccess"
	"stream-access-guard/internal/schedule"
	"stream-access-guard/internal/storage"
	"stream-access-guard/internal/tempaccess"
)

// Reason explains a verdict. Policy mismatches are verdicts, not errors.
type Reason string

const (
	ReasonTemporaryAccess Reason = "TEMPORARY_ACCESS"
	ReasonDeviceRejected  Reason = "DEVICE_REJECTED"
	ReasonDevicePending   Reason = "DEVICE_PENDING"
	ReasonNetworkPolicy   Reason = "NETWORK_POLICY"
	ReasonIPRestricted    Reason = "IP_RESTRICTED"
	ReasonOutsideSchedule Reason = "OUTSIDE_SCHEDULE"
	ReasonDefaultBlock    Reason = "DEFAULT_BLOCK"
	ReasonDefaultAllow    Reason = "DEFAULT_ALLOW"
)

// Verdict is the engine output for one admission request.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
}

// Input carries everything one evaluation needs. Rules must already be
// resolved to the device scope (schedule.ResolveRules). Preference may be
// nil for users without a stored record.
type Input struct {
	Device             *storage.Device
	Preference         *storage.UserPreference
	Rules              []storage.TimeRule
	SourceIP           string
	Now                time.Time
	GlobalDefaultBlock bool
}

// check is one layer of the precedence chain. A decisive layer returns a
// verdict, an indifferent one returns nil and evaluation moves on.
type check struct {
	name string
	eval func(in Input) *Verdict
}

func deny(reason Reason) *Verdict  { return &Verdict{Allowed: false, Reason: reason} }
func allow(reason Reason) *Verdict { return &Verdict{Allowed: true, Reason: reason} }

// The policy layers in strict precedence order. Temporary access is the only
// layer that can force an allow past the ones below it; everything after it
// can only deny or pass through.
var checks = []check{
	{"temporary-access", func(in Input) *Verdict {
		if tempaccess.IsActive(in.Device, in.Now) {
			return allow(ReasonTemporaryAccess)
		}
		return nil
	}},
	{"device-rejected", func(in Input) *Verdict {
		if in.Device != nil && in.Device.Status == storage.DeviceStatusRejected {
			return deny(ReasonDeviceRejected)
		}
		return nil
	}},
	{"device-pending", func(in Input) *Verdict {
		// Unknown devices are parked as pending by the caller before
		// evaluation, so a nil device is treated the same way.
		if in.Device == nil || in.Device.Status != storage.DeviceStatusApproved {
			return deny(ReasonDevicePending)
		}
		return nil
	}},
	{"network-policy", func(in Input) *Verdict {
		pref := in.preference()
		class := netaccess.Classify(in.SourceIP)
		switch pref.NetworkPolicy {
		case storage.NetworkPolicyLAN:
			if class != netaccess.ClassLAN {
				return deny(ReasonNetworkPolicy)
			}
		case storage.NetworkPolicyWAN:
			if class != netaccess.ClassWAN {
				return deny(ReasonNetworkPolicy)
			}
		default:
			// "both" still fails closed on an unparsable source address
			if class == netaccess.ClassInvalid {
				return deny(ReasonNetworkPolicy)
			}
		}
		return nil
	}},
	{"ip-allow-list", func(in Input) *Verdict {
		pref := in.preference()
		if pref.IPAccessPolicy != storage.IPAccessPolicyRestricted {
			return nil
		}
		// Restricted with an empty list is deny-all, never unrestricted.
		if len(pref.AllowedIPs) == 0 {
			return deny(ReasonIPRestricted)
		}
		if !netaccess.IsAllowed(in.SourceIP, pref.AllowedIPs) {
			return deny(ReasonIPRestricted)
		}
		return nil
	}},
	{"schedule", func(in Input) *Verdict {
		// Restrictive only: a window can deny outside itself but never
		// promote a blocked user to allowed.
		if schedule.HasEnabledRules(in.Rules) && !schedule.IsWithinSchedule(in.Rules, in.Now) {
			return deny(ReasonOutsideSchedule)
		}
		return nil
	}},
	{"default-policy", func(in Input) *Verdict {
		pref := in.preference()
		blocked := in.GlobalDefaultBlock
		if pref.DefaultBlock != nil {
			blocked = *pref.DefaultBlock
		}
		if blocked {
			return deny(ReasonDefaultBlock)
		}
		return allow(ReasonDefaultAllow)
	}},
}

// preference returns the stored preference or the conservative default for
// users without one.
func (in Input) preference() storage.UserPreference {
	if in.Preference != nil {
		return *in.Preference
	}
	userID := ""
	if in.Device != nil {
		userID = in.Device.UserID
	}
	return storage.DefaultUserPreference(userID)
}

// Evaluate runs the precedence chain and returns the first decisive verdict.
// The final default-policy layer is always decisive, so every request gets
// a verdict with a reason.
func Evaluate(in Input) Verdict {
	for _, c := range checks {
		if v := c.eval(in); v != nil {
			return *v
		}
	}
	// Unreachable: default-policy always decides.
	return Verdict{Allowed: false, Reason: ReasonDefaultBlock}
}
