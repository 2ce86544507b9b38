// Package netaccess classifies IPv4 source addresses and matches them
// against user allow-lists. All checks fail closed: anything that does not
// parse as IPv4 (including IPv6) never matches a list or a network policy.
package netaccess

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Class is the LAN/WAN classification of a source address.
type Class string

const (
	ClassLAN     Class = "lan"
	ClassWAN     Class = "wan"
	ClassInvalid Class = "invalid"
)

// Private ranges considered LAN, plus loopback.
var lanRanges = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
}

// ipv4ToUint32 parses a dotted-quad IPv4 address into its numeric form.
func ipv4ToUint32(ip string) (uint32, bool) {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return 0, false
	}
	v4 := parsed.To4()
	if v4 == nil {
		// IPv6 is unsupported
		return 0, false
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3]), true
}

// Classify returns the LAN/WAN class of an IPv4 address.
func Classify(ip string) Class {
	ipNum, ok := ipv4ToUint32(ip)
	if !ok {
		return ClassInvalid
	}
	for _, cidr := range lanRanges {
		if matchCIDRNum(ipNum, cidr) {
			return ClassLAN
		}
	}
	return ClassWAN
}

// IsValidIP reports whether s is a syntactically valid IPv4 address.
func IsValidIP(s string) bool {
	_, ok := ipv4ToUint32(s)
	return ok
}

// IsValidCIDR reports whether s is a valid IPv4 CIDR (prefix 0-32).
func IsValidCIDR(s string) bool {
	network, prefix, ok := splitCIDR(s)
	if !ok {
		return false
	}
	if _, ok := ipv4ToUint32(network); !ok {
		return false
	}
	return prefix >= 0 && prefix <= 32
}

func splitCIDR(s string) (network string, prefix int, ok bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return "", 0, false
	}
	prefix, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, false
	}
	return parts[0], prefix, true
}

// matchCIDRNum tests a numeric IP against a CIDR with bitmask comparison:
// (ip & mask) == (network & mask), mask = 0xFFFFFFFF << (32 - prefix).
func matchCIDRNum(ipNum uint32, cidr string) bool {
	network, prefix, ok := splitCIDR(cidr)
	if !ok || prefix < 0 || prefix > 32 {
		return false
	}
	netNum, ok := ipv4ToUint32(network)
	if !ok {
		return false
	}
	var mask uint32
	if prefix > 0 {
		mask = ^uint32(0) << (32 - prefix)
	}
	return ipNum&mask == netNum&mask
}

// IsIPInCIDR reports whether the IPv4 address ip falls inside cidr.
func IsIPInCIDR(ip string, cidr string) bool {
	ipNum, ok := ipv4ToUint32(ip)
	if !ok {
		return false
	}
	return matchCIDRNum(ipNum, cidr)
}

// IsAllowed tests ip against a list of exact IPv4 or CIDR entries.
//
// An empty list means "no restriction" at this layer. The deny-all rule for
// a restricted policy with an empty list is enforced by the decision engine,
// not here. Invalid entries in the list are skipped, an invalid ip never
// matches.
func IsAllowed(ip string, allowList []string) bool {
	if len(allowList) == 0 {
		return true
	}

	ipNum, ok := ipv4ToUint32(ip)
	if !ok {
		return false
	}

	for _, entry := range allowList {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			if matchCIDRNum(ipNum, entry) {
				return true
			}
			continue
		}
		// Exact match for plain addresses
		entryNum, ok := ipv4ToUint32(entry)
		if ok && entryNum == ipNum {
			return true
		}
	}
	return false
}

// ValidateAllowList checks every entry for IP or CIDR syntax. Used at
// preference write time so a bad entry is rejected before it is stored.
func ValidateAllowList(entries []string) error {
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			return fmt.Errorf("allow-list entry must not be empty")
		}
		if strings.Contains(entry, "/") {
			if !IsValidCIDR(entry) {
				return fmt.Errorf("invalid CIDR in allow-list: %q", entry)
			}
			continue
		}
		if !IsValidIP(entry) {
			return fmt.Errorf("invalid IP in allow-list: %q", entry)
		}
	}
	return nil
}
