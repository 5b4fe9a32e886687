package store

import (
	"fmt"

	"github.com/kvdns/kvdnsd/internal/dnsmsg"
	"github.com/kvdns/kvdnsd/internal/dnsname"
)

// ZonesIndexKey is the well-known list-typed key holding every zone this
// server is authoritative for.
const ZonesIndexKey = "zones"

// DefinitiveKey returns the RRset key for an exact owner name and type,
// e.g. DefinitiveKey("Example.COM.", dnsmsg.TypeA) -> "example.com.:A".
func DefinitiveKey(name string, rtype dnsmsg.RecordType) string {
	return rrsetKey(dnsname.Canonical(name), rtype)
}

// WildcardKey returns the RRset key for the wildcard RRset that would cover
// name, e.g. WildcardKey("foo.example.com.", dnsmsg.TypeA) -> "*.example.com.:A".
func WildcardKey(name string, rtype dnsmsg.RecordType) string {
	return rrsetKey(dnsname.Wildcard(dnsname.Canonical(name)), rtype)
}

// RRSIGKey returns the DNSSEC-pool key holding the RRSIG covering rtype at
// name.
func RRSIGKey(name string, rtype dnsmsg.RecordType) string {
	return fmt.Sprintf("%s:RRSIG:%s", dnsname.Canonical(name), rtype)
}

func rrsetKey(canonicalName string, rtype dnsmsg.RecordType) string {
	return fmt.Sprintf("%s:%s", canonicalName, rtype)
}
