// Package identifiers normalises the ids operators type or scan.
package identifiers

import "strings"

// jtcBarcodePrefix is printed in front of work order ids on JTC barcodes.
const jtcBarcodePrefix = "*J"

// Normalize trims and upper-cases a bin or component id.
func Normalize(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// NormalizeJTC accepts either a raw work order id or the scanned JTC barcode.
func NormalizeJTC(value string) string {
	v := Normalize(value)
	v = strings.TrimPrefix(v, jtcBarcodePrefix)
	return strings.TrimSpace(v)
}

// NormalizeAll normalises ids and drops blanks and duplicates, preserving order.
func NormalizeAll(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := Normalize(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
