package enums

import (
	"fmt"
	"strings"
)

// BinStatus is the lifecycle state of a physical bin.
type BinStatus string

const (
	BinStatusPendingJTC          BinStatus = "Pending JTC"
	BinStatusReadyForRelease     BinStatus = "Ready for Release"
	BinStatusReleased            BinStatus = "Released"
	BinStatusPendingRefill       BinStatus = "Pending Refill"
	BinStatusReturnedToWarehouse BinStatus = "Returned to Warehouse"
	BinStatusDamaged             BinStatus = "Damaged"
	BinStatusMissing             BinStatus = "Missing"
)

var validBinStatuses = []BinStatus{
	BinStatusPendingJTC,
	BinStatusReadyForRelease,
	BinStatusReleased,
	BinStatusPendingRefill,
	BinStatusReturnedToWarehouse,
	BinStatusDamaged,
	BinStatusMissing,
}

// String implements fmt.Stringer.
func (s BinStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known BinStatus.
func (s BinStatus) IsValid() bool {
	for _, candidate := range validBinStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsManualOverride reports whether the status is only reachable by an operator override.
func (s BinStatus) IsManualOverride() bool {
	return s == BinStatusDamaged || s == BinStatusMissing
}

// ParseBinStatus converts raw input into a BinStatus. Matching ignores case
// and surrounding whitespace since scanners and spreadsheets disagree on both.
func ParseBinStatus(value string) (BinStatus, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validBinStatuses {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bin status %q", value)
}

// BinZone groups statuses for the warehouse map.
type BinZone string

const (
	BinZoneReady      BinZone = "ready"
	BinZonePending    BinZone = "pending"
	BinZoneRefill     BinZone = "refill"
	BinZoneEmpty      BinZone = "empty"
	BinZoneProduction BinZone = "production"
	BinZoneDamaged    BinZone = "damaged"
	BinZoneMissing    BinZone = "missing"
)

// Zones lists every map zone in display order.
var Zones = []BinZone{
	BinZoneReady,
	BinZonePending,
	BinZoneRefill,
	BinZoneEmpty,
	BinZoneProduction,
	BinZoneDamaged,
	BinZoneMissing,
}

// Zone returns the warehouse map zone for the status. Unknown statuses land in empty.
func (s BinStatus) Zone() BinZone {
	switch s {
	case BinStatusReadyForRelease:
		return BinZoneReady
	case BinStatusPendingJTC:
		return BinZonePending
	case BinStatusPendingRefill:
		return BinZoneRefill
	case BinStatusReleased:
		return BinZoneProduction
	case BinStatusDamaged:
		return BinZoneDamaged
	case BinStatusMissing:
		return BinZoneMissing
	default:
		return BinZoneEmpty
	}
}

// StatusesInZone is the inverse of Zone for the known statuses.
func StatusesInZone(zone BinZone) []BinStatus {
	out := []BinStatus{}
	for _, candidate := range validBinStatuses {
		if candidate.Zone() == zone {
			out = append(out, candidate)
		}
	}
	return out
}

// ParseBinZone converts raw input into a BinZone.
func ParseBinZone(value string) (BinZone, error) {
	for _, candidate := range Zones {
		if string(candidate) == strings.ToLower(strings.TrimSpace(value)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bin zone %q", value)
}
