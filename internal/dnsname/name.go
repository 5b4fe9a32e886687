// Package dnsname provides pure functions over canonical DNS names: the
// lowercasing/trailing-dot form used as store keys, wildcard derivation, and
// the ancestor-zone matching used to find the closest enclosing authoritative
// zone for a query. None of this talks to the store; see internal/store for
// that.
package dnsname

import "strings"

// Canonical returns the lowercased, root-dot-terminated form of name used
// for store keys and zone comparisons (e.g. "Example.COM" -> "example.com.").
func Canonical(name string) string {
	n := strings.ToLower(strings.TrimSuffix(name, "."))
	if n == "" {
		return "."
	}
	return n + "."
}

// LabelCount returns the number of labels in a canonical name, with the
// root "." counting as zero labels.
func LabelCount(name string) int {
	n := strings.TrimSuffix(Canonical(name), ".")
	if n == "" {
		return 0
	}
	return strings.Count(n, ".") + 1
}

// Wildcard replaces the leftmost label of a canonical name with "*", the
// key used to look up a wildcard RRset (RFC 1034 Section 4.3.3). The name
// must already be canonical.
func Wildcard(name string) string {
	n := strings.TrimSuffix(name, ".")
	if n == "" {
		return name
	}
	if i := strings.IndexByte(n, '.'); i >= 0 {
		return "*" + n[i:] + "."
	}
	return "*."
}

// IsAncestorOrEqual reports whether zone is an ancestor of, or equal to,
// name, both given as canonical names. "example.com." is an ancestor of
// "www.example.com." and equal to itself.
func IsAncestorOrEqual(zone, name string) bool {
	z := strings.TrimSuffix(zone, ".")
	n := strings.TrimSuffix(name, ".")
	if z == "" {
		return true // the root zone is an ancestor of everything
	}
	return n == z || strings.HasSuffix(n, "."+z)
}

// ClosestEnclosingZone returns the zone among zones that is an ancestor of
// or equal to name with the greatest label count (the longest match), and
// true if one was found. Zones form a tree, so no further tie-breaking is
// required: two zones with the same label count covering the same name
// would be identical.
func ClosestEnclosingZone(zones []string, name string) (string, bool) {
	best := ""
	bestLabels := -1
	found := false
	for _, z := range zones {
		if !IsAncestorOrEqual(z, name) {
			continue
		}
		labels := LabelCount(z)
		if labels > bestLabels {
			best, bestLabels, found = z, labels, true
		}
	}
	return best, found
}

// TruncateToLabelCount returns the last count labels of name, preserving
// the original casing of those labels, trailing-dot terminated. It is used
// to build a synthesized SOA owner name that inherits the query's case but
// matches the zone apex's label count.
func TruncateToLabelCount(name string, count int) string {
	n := strings.TrimSuffix(name, ".")
	if count <= 0 || n == "" {
		return "."
	}
	labels := strings.Split(n, ".")
	if count >= len(labels) {
		return n + "."
	}
	return strings.Join(labels[len(labels)-count:], ".") + "."
}
