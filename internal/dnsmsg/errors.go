// Package dnsmsg implements DNS wire-format encoding, decoding, and packet
// manipulation (RFC 1035, RFC 3596, RFC 4034, RFC 6891).
//
// Resource record data is kept in a single Record struct with a Data field
// whose concrete type depends on the record's Type; see Record for the
// mapping. Errors are wrapped with fmt.Errorf("...: %w", err) throughout,
// anchored on the ErrDNSError sentinel so callers can classify wire-format
// failures with errors.Is.
package dnsmsg

import "errors"

// ErrDNSError is a sentinel for DNS wire-format violations encountered while
// parsing or marshaling. Wrap it with fmt.Errorf("context: %w", ErrDNSError).
var ErrDNSError = errors.New("dns wire error")
