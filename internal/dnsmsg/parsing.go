package dnsmsg

import (
	"errors"
	"fmt"

	"github.com/kvdns/kvdnsd/internal/helpers"
)

// Limits for incoming DNS messages, to bound resource use on untrusted input.
const (
	MaxIncomingDNSMessageSize = 4096
	MaxQuestions              = 4
	MaxRRPerSection           = 100
	MaxTotalRR                = 200
)

// ParseRequestBounded parses a DNS request with bounds checking. It rejects
// messages that are too large, responses (QR set), non-standard opcodes, or
// section counts beyond the limits above. A message with zero questions is
// accepted here; the response builder turns that into Refused.
func ParseRequestBounded(msg []byte) (Packet, error) {
	if len(msg) > MaxIncomingDNSMessageSize {
		return Packet{}, errors.New("dns message too large")
	}
	p, err := ParsePacket(msg)
	if err != nil {
		return Packet{}, err
	}

	if isResponse(p.Header.Flags) {
		return Packet{}, errors.New("invalid packet: QR flag set (response packet received)")
	}

	if opcode := extractOpcode(p.Header.Flags); opcode != 0 {
		return Packet{}, fmt.Errorf("unsupported OpCode: %d", opcode)
	}

	if err := validateSectionCounts(p.Header); err != nil {
		return Packet{}, err
	}

	return p, nil
}

func isResponse(flags uint16) bool {
	return (flags & QRFlag) != 0
}

func extractOpcode(flags uint16) uint16 {
	return (flags & OpcodeMask) >> 11
}

func validateSectionCounts(h Header) error {
	qd := int(h.QDCount)
	an := int(h.ANCount)
	ns := int(h.NSCount)
	ar := int(h.ARCount)

	if qd > MaxQuestions {
		return errors.New("too many questions")
	}
	if an > MaxRRPerSection || ns > MaxRRPerSection || ar > MaxRRPerSection {
		return errors.New("too many resource records")
	}
	if (an + ns + ar) > MaxTotalRR {
		return errors.New("too many total resource records")
	}
	return nil
}

// BuildErrorResponse constructs a DNS error response: it preserves the
// transaction ID and RD flag from the request, sets QR, and applies rcode.
// The response includes the request's question section but no answer
// records.
func BuildErrorResponse(req Packet, rcode uint16) Packet {
	flags := buildResponseFlags(req.Header.Flags, rcode)

	h := Header{
		ID:      req.Header.ID,
		Flags:   flags,
		QDCount: helpers.ClampIntToUint16(len(req.Questions)),
		ANCount: 0,
		NSCount: 0,
		ARCount: 0,
	}
	return Packet{Header: h, Questions: req.Questions}
}

func buildResponseFlags(reqFlags uint16, rcode uint16) uint16 {
	flags := QRFlag
	flags |= reqFlags & RDFlag
	flags |= AAFlag

	rcode &= RCodeMask
	flags = (flags &^ RCodeMask) | rcode

	return flags
}
