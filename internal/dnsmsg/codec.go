package dnsmsg

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// NormalizeName returns a lowercase DNS name without a trailing dot, for
// case-insensitive name comparisons (RFC 4343) and for building store keys.
// It must never be applied to a name that will appear back on the wire in a
// response: DNS names are case-preserving on the wire even though they are
// case-insensitive for matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}

// EncodeName encodes a domain name to DNS wire format (RFC 1035 Section 3.1):
// a sequence of length-prefixed labels terminated by a zero-length label.
// This does not perform message compression, and neither does Packet.Marshal.
func EncodeName(domain string) ([]byte, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: domain_name must be non-empty", ErrDNSError)
	}
	domain = trimDot(domain)
	if domain == "" {
		return []byte{0}, nil
	}

	out := make([]byte, 0, len(domain)+2)
	labelStart := 0
	for i := 0; i <= len(domain); i++ {
		if i == len(domain) || domain[i] == '.' {
			if i == labelStart {
				return nil, fmt.Errorf("%w: invalid domain name (empty label): %q", ErrDNSError, domain)
			}
			label := domain[labelStart:i]

			for j := range len(label) {
				if label[j] > 0x7F {
					return nil, fmt.Errorf("%w: domain_name must be ASCII", ErrDNSError)
				}
			}
			if len(label) > 63 {
				return nil, fmt.Errorf("%w: DNS label too long (%d > 63): %q", ErrDNSError, len(label), label)
			}

			out = append(out, byte(len(label)))
			out = append(out, label...)
			labelStart = i + 1
		}
	}
	out = append(out, 0)

	if len(out) > 255 {
		return nil, fmt.Errorf("%w: encoded domain name too long (%d > 255)", ErrDNSError, len(out))
	}
	return out, nil
}

// DecodeName decodes a possibly-compressed DNS name from wire format,
// advancing *off past the encoded name. The returned name preserves the
// exact case of the wire labels.
func DecodeName(msg []byte, off *int) (string, error) {
	return decodeName(msg, off, 0, map[int]struct{}{})
}

func decodeName(msg []byte, off *int, depth int, visited map[int]struct{}) (string, error) {
	const maxCompressionDepth = 20

	if depth > maxCompressionDepth {
		return "", fmt.Errorf("%w: too many DNS compression pointer indirections", ErrDNSError)
	}
	if *off < 0 || *off >= len(msg) {
		return "", fmt.Errorf("%w: unexpected EOF while decoding DNS name", ErrDNSError)
	}

	labels := make([]string, 0, 6)
	for {
		if *off >= len(msg) {
			return "", fmt.Errorf("%w: unexpected EOF while decoding DNS name", ErrDNSError)
		}
		labelLen := msg[*off]
		*off++

		if labelLen == 0 {
			break
		}

		if isCompressionPointer(labelLen) {
			rest, err := followCompressionPointer(msg, off, labelLen, depth, visited)
			if err != nil {
				return "", err
			}
			if rest != "" {
				labels = append(labels, rest)
			}
			break
		}

		if hasReservedBits(labelLen) {
			return "", fmt.Errorf("%w: invalid DNS label length (reserved high bits set)", ErrDNSError)
		}

		label, err := readLabel(msg, off, int(labelLen))
		if err != nil {
			return "", err
		}
		labels = append(labels, label)
	}

	return joinLabels(labels), nil
}

func isCompressionPointer(b byte) bool {
	return (b & 0xC0) == 0xC0
}

func hasReservedBits(b byte) bool {
	return (b & 0xC0) != 0
}

func followCompressionPointer(
	msg []byte,
	off *int,
	firstByte byte,
	depth int,
	visited map[int]struct{},
) (string, error) {
	if *off >= len(msg) {
		return "", fmt.Errorf("%w: unexpected EOF while decoding compression pointer", ErrDNSError)
	}

	ptr := int(binary.BigEndian.Uint16([]byte{firstByte & 0x3F, msg[*off]}))
	*off++

	if ptr >= len(msg) {
		return "", fmt.Errorf("%w: DNS compression pointer out of bounds", ErrDNSError)
	}
	if _, ok := visited[ptr]; ok {
		return "", fmt.Errorf("%w: DNS compression pointer loop detected", ErrDNSError)
	}
	visited[ptr] = struct{}{}

	ptrOff := ptr
	return decodeName(msg, &ptrOff, depth+1, visited)
}

func readLabel(msg []byte, off *int, length int) (string, error) {
	if *off+length > len(msg) {
		return "", fmt.Errorf("%w: unexpected EOF while reading DNS label", ErrDNSError)
	}
	label := msg[*off : *off+length]
	*off += length

	for _, b := range label {
		if b > 0x7F {
			return "", fmt.Errorf("%w: decoded DNS name was not ASCII", ErrDNSError)
		}
	}
	return string(label), nil
}

func trimDot(s string) string {
	for len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

func joinLabels(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	if len(labels) == 1 {
		return labels[0]
	}
	totalSize := len(labels) - 1
	for _, label := range labels {
		totalSize += len(label)
	}
	var b strings.Builder
	b.Grow(totalSize)
	b.WriteString(labels[0])
	for i := 1; i < len(labels); i++ {
		b.WriteByte('.')
		b.WriteString(labels[i])
	}
	return b.String()
}
