package dnsmsg

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Record is a DNS resource record (RFC 1035 Section 4.1.3). Data's concrete
// type depends on Type:
//
//   - A, AAAA, OPT: []byte (raw address / OPT RDATA)
//   - CNAME, NS, PTR: string (a domain name)
//   - MX: MXData
//   - SRV: SRVData
//   - CAA: CAAData
//   - TLSA: TLSAData
//   - DNSKEY: DNSKEYData
//   - RRSIG: RRSIGData
//   - TXT: string, []string, or []byte
//   - OPENPGPKEY, SOA and anything else: []byte (raw RDATA)
type Record struct {
	Name  string
	Type  uint16
	Class uint16
	TTL   uint32
	Data  any
}

type MXData struct {
	Preference uint16
	Exchange   string
}

type SRVData struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

// CAAData is a Certification Authority Authorization record (RFC 6844).
// Tag is restricted by the store/response layer to "issue", "issuewild", or
// "iodef"; the wire codec itself accepts any tag it is given.
type CAAData struct {
	Flag  uint8
	Tag   string
	Value []byte
}

type TLSAData struct {
	CertUsage    uint8
	Selector     uint8
	MatchingType uint8
	CertData     []byte
}

type DNSKEYData struct {
	Flags     uint16
	Protocol  uint8
	Algorithm uint8
	PublicKey []byte
}

// RRSIGData is a DNSSEC signature record (RFC 4034 Section 3). The server
// never computes or verifies it, only stores and replays it verbatim.
type RRSIGData struct {
	TypeCovered uint16
	Algorithm   uint8
	Labels      uint8
	OriginalTTL uint32
	Expiration  uint32
	Inception   uint32
	KeyTag      uint16
	SignerName  string
	Signature   []byte
}

func ParseRecord(msg []byte, off *int) (Record, error) {
	name, err := DecodeName(msg, off)
	if err != nil {
		return Record{}, err
	}
	if *off+10 > len(msg) {
		return Record{}, fmt.Errorf("%w: unexpected EOF while reading DNS record", ErrDNSError)
	}
	rrType := binary.BigEndian.Uint16(msg[*off : *off+2])
	rrClass := binary.BigEndian.Uint16(msg[*off+2 : *off+4])
	ttl := binary.BigEndian.Uint32(msg[*off+4 : *off+8])
	rdlen := binary.BigEndian.Uint16(msg[*off+8 : *off+10])
	*off += 10
	start := *off
	if start+int(rdlen) > len(msg) {
		return Record{}, fmt.Errorf("%w: unexpected EOF while reading DNS record rdata", ErrDNSError)
	}

	data, err := parseRData(msg, off, start, int(rdlen), RecordType(rrType))
	if err != nil {
		return Record{}, err
	}

	return Record{Name: name, Type: rrType, Class: rrClass, TTL: ttl, Data: data}, nil
}

func parseRData(msg []byte, off *int, start, rdlen int, t RecordType) (any, error) {
	switch t {
	case TypeCNAME, TypeNS, TypePTR:
		n, err := DecodeName(msg, off)
		if err != nil {
			return nil, err
		}
		if *off-start != rdlen {
			return nil, fmt.Errorf("%w: invalid DNS record rdata length for name-based type", ErrDNSError)
		}
		return n, nil
	case TypeMX:
		if *off+2 > len(msg) {
			return nil, fmt.Errorf("%w: unexpected EOF while reading MX preference", ErrDNSError)
		}
		pref := binary.BigEndian.Uint16(msg[*off : *off+2])
		*off += 2
		ex, err := DecodeName(msg, off)
		if err != nil {
			return nil, err
		}
		if *off-start != rdlen {
			return nil, fmt.Errorf("%w: invalid DNS record rdata length for MX", ErrDNSError)
		}
		return MXData{Preference: pref, Exchange: ex}, nil
	case TypeSRV:
		if rdlen < 6 {
			return nil, fmt.Errorf("%w: SRV rdata too short", ErrDNSError)
		}
		priority := binary.BigEndian.Uint16(msg[*off : *off+2])
		weight := binary.BigEndian.Uint16(msg[*off+2 : *off+4])
		port := binary.BigEndian.Uint16(msg[*off+4 : *off+6])
		*off += 6
		target, err := DecodeName(msg, off)
		if err != nil {
			return nil, err
		}
		if *off-start != rdlen {
			return nil, fmt.Errorf("%w: invalid DNS record rdata length for SRV", ErrDNSError)
		}
		return SRVData{Priority: priority, Weight: weight, Port: port, Target: target}, nil
	case TypeCAA:
		if rdlen < 2 {
			return nil, fmt.Errorf("%w: CAA rdata too short", ErrDNSError)
		}
		flag := msg[*off]
		tagLen := int(msg[*off+1])
		*off += 2
		if tagLen <= 0 || 2+tagLen > rdlen {
			return nil, fmt.Errorf("%w: invalid CAA tag length", ErrDNSError)
		}
		if *off+tagLen > len(msg) {
			return nil, fmt.Errorf("%w: unexpected EOF while reading CAA tag", ErrDNSError)
		}
		tag := string(msg[*off : *off+tagLen])
		*off += tagLen
		valLen := rdlen - 2 - tagLen
		if *off+valLen > len(msg) {
			return nil, fmt.Errorf("%w: unexpected EOF while reading CAA value", ErrDNSError)
		}
		value := make([]byte, valLen)
		copy(value, msg[*off:*off+valLen])
		*off += valLen
		return CAAData{Flag: flag, Tag: tag, Value: value}, nil
	case TypeTLSA:
		if rdlen < 3 {
			return nil, fmt.Errorf("%w: TLSA rdata too short", ErrDNSError)
		}
		usage, selector, matching := msg[*off], msg[*off+1], msg[*off+2]
		*off += 3
		certLen := rdlen - 3
		cert := make([]byte, certLen)
		copy(cert, msg[*off:*off+certLen])
		*off += certLen
		return TLSAData{CertUsage: usage, Selector: selector, MatchingType: matching, CertData: cert}, nil
	case TypeDNSKEY:
		if rdlen < 4 {
			return nil, fmt.Errorf("%w: DNSKEY rdata too short", ErrDNSError)
		}
		flags := binary.BigEndian.Uint16(msg[*off : *off+2])
		protocol := msg[*off+2]
		algorithm := msg[*off+3]
		*off += 4
		keyLen := rdlen - 4
		key := make([]byte, keyLen)
		copy(key, msg[*off:*off+keyLen])
		*off += keyLen
		return DNSKEYData{Flags: flags, Protocol: protocol, Algorithm: algorithm, PublicKey: key}, nil
	case TypeRRSIG:
		if rdlen < 18 {
			return nil, fmt.Errorf("%w: RRSIG rdata too short", ErrDNSError)
		}
		typeCovered := binary.BigEndian.Uint16(msg[*off : *off+2])
		algorithm := msg[*off+2]
		labels := msg[*off+3]
		originalTTL := binary.BigEndian.Uint32(msg[*off+4 : *off+8])
		expiration := binary.BigEndian.Uint32(msg[*off+8 : *off+12])
		inception := binary.BigEndian.Uint32(msg[*off+12 : *off+16])
		keyTag := binary.BigEndian.Uint16(msg[*off+16 : *off+18])
		*off += 18
		signer, err := DecodeName(msg, off)
		if err != nil {
			return nil, err
		}
		sigLen := start + rdlen - *off
		if sigLen < 0 || *off+sigLen > len(msg) {
			return nil, fmt.Errorf("%w: invalid RRSIG rdata length", ErrDNSError)
		}
		sig := make([]byte, sigLen)
		copy(sig, msg[*off:*off+sigLen])
		*off += sigLen
		return RRSIGData{
			TypeCovered: typeCovered,
			Algorithm:   algorithm,
			Labels:      labels,
			OriginalTTL: originalTTL,
			Expiration:  expiration,
			Inception:   inception,
			KeyTag:      keyTag,
			SignerName:  signer,
			Signature:   sig,
		}, nil
	default:
		b := make([]byte, rdlen)
		copy(b, msg[*off:*off+rdlen])
		*off += rdlen
		return b, nil
	}
}

func (rr Record) Marshal() ([]byte, error) {
	nameWire := []byte{0}
	if rr.Type != uint16(TypeOPT) {
		b, err := EncodeName(rr.Name)
		if err != nil {
			return nil, err
		}
		nameWire = b
	}

	rdata, err := rr.marshalRData()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(nameWire)+10+len(rdata))
	out = append(out, nameWire...)
	fixed := make([]byte, 10)
	binary.BigEndian.PutUint16(fixed[0:2], rr.Type)
	binary.BigEndian.PutUint16(fixed[2:4], rr.Class)
	binary.BigEndian.PutUint32(fixed[4:8], rr.TTL)
	binary.BigEndian.PutUint16(fixed[8:10], uint16(len(rdata)))
	out = append(out, fixed...)
	out = append(out, rdata...)
	return out, nil
}

func (rr Record) marshalRData() ([]byte, error) {
	switch RecordType(rr.Type) {
	case TypeA:
		b, ok := rr.Data.([]byte)
		if !ok || len(b) != 4 {
			return nil, fmt.Errorf("%w: A record data must be 4 bytes", ErrDNSError)
		}
		return b, nil
	case TypeAAAA:
		b, ok := rr.Data.([]byte)
		if !ok || len(b) != 16 {
			return nil, fmt.Errorf("%w: AAAA record data must be 16 bytes", ErrDNSError)
		}
		return b, nil
	case TypeMX:
		mx, ok := rr.Data.(MXData)
		if !ok {
			return nil, fmt.Errorf("%w: MX record data must be MXData", ErrDNSError)
		}
		ex, err := EncodeName(mx.Exchange)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 2+len(ex))
		binary.BigEndian.PutUint16(out[0:2], mx.Preference)
		copy(out[2:], ex)
		return out, nil
	case TypeSRV:
		srv, ok := rr.Data.(SRVData)
		if !ok {
			return nil, fmt.Errorf("%w: SRV record data must be SRVData", ErrDNSError)
		}
		target, err := EncodeName(srv.Target)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 6, 6+len(target))
		binary.BigEndian.PutUint16(out[0:2], srv.Priority)
		binary.BigEndian.PutUint16(out[2:4], srv.Weight)
		binary.BigEndian.PutUint16(out[4:6], srv.Port)
		out = append(out, target...)
		return out, nil
	case TypeCAA:
		caa, ok := rr.Data.(CAAData)
		if !ok {
			return nil, fmt.Errorf("%w: CAA record data must be CAAData", ErrDNSError)
		}
		if len(caa.Tag) == 0 || len(caa.Tag) > 255 {
			return nil, fmt.Errorf("%w: CAA tag length must be 1-255", ErrDNSError)
		}
		out := make([]byte, 2+len(caa.Tag)+len(caa.Value))
		out[0] = caa.Flag
		out[1] = byte(len(caa.Tag))
		copy(out[2:], caa.Tag)
		copy(out[2+len(caa.Tag):], caa.Value)
		return out, nil
	case TypeTLSA:
		tlsa, ok := rr.Data.(TLSAData)
		if !ok {
			return nil, fmt.Errorf("%w: TLSA record data must be TLSAData", ErrDNSError)
		}
		out := make([]byte, 3+len(tlsa.CertData))
		out[0], out[1], out[2] = tlsa.CertUsage, tlsa.Selector, tlsa.MatchingType
		copy(out[3:], tlsa.CertData)
		return out, nil
	case TypeDNSKEY:
		key, ok := rr.Data.(DNSKEYData)
		if !ok {
			return nil, fmt.Errorf("%w: DNSKEY record data must be DNSKEYData", ErrDNSError)
		}
		out := make([]byte, 4+len(key.PublicKey))
		binary.BigEndian.PutUint16(out[0:2], key.Flags)
		out[2], out[3] = key.Protocol, key.Algorithm
		copy(out[4:], key.PublicKey)
		return out, nil
	case TypeRRSIG:
		sig, ok := rr.Data.(RRSIGData)
		if !ok {
			return nil, fmt.Errorf("%w: RRSIG record data must be RRSIGData", ErrDNSError)
		}
		signer, err := EncodeName(sig.SignerName)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 18, 18+len(signer)+len(sig.Signature))
		binary.BigEndian.PutUint16(out[0:2], sig.TypeCovered)
		out[2] = sig.Algorithm
		out[3] = sig.Labels
		binary.BigEndian.PutUint32(out[4:8], sig.OriginalTTL)
		binary.BigEndian.PutUint32(out[8:12], sig.Expiration)
		binary.BigEndian.PutUint32(out[12:16], sig.Inception)
		binary.BigEndian.PutUint16(out[16:18], sig.KeyTag)
		out = append(out, signer...)
		out = append(out, sig.Signature...)
		return out, nil
	case TypeCNAME, TypeNS, TypePTR:
		s, ok := rr.Data.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("%w: name-based record data must be a non-empty string", ErrDNSError)
		}
		return EncodeName(s)
	case TypeTXT:
		return marshalTXT(rr.Data)
	case TypeOPT:
		if rr.Data == nil {
			return nil, nil
		}
		b, ok := rr.Data.([]byte)
		if ok {
			return b, nil
		}
		return nil, fmt.Errorf("%w: OPT record data must be raw bytes", ErrDNSError)
	default:
		if b, ok := rr.Data.([]byte); ok {
			return b, nil
		}
		return nil, fmt.Errorf("%w: unsupported RR type for serialization: %d", ErrDNSError, rr.Type)
	}
}

func marshalTXT(v any) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return marshalTXTString(t), nil
	case []string:
		totalLen := 0
		for _, s := range t {
			totalLen += 1 + len(s)
		}
		out := make([]byte, 0, totalLen)
		for _, s := range t {
			b := []byte(s)
			if len(b) > 255 {
				return nil, fmt.Errorf("%w: TXT character-string cannot exceed 255 bytes", ErrDNSError)
			}
			out = append(out, byte(len(b)))
			out = append(out, b...)
		}
		return out, nil
	case []byte:
		return t, nil
	default:
		return nil, fmt.Errorf("%w: TXT record data must be string, []string, or []byte", ErrDNSError)
	}
}

func marshalTXTString(s string) []byte {
	b := []byte(s)
	if len(b) <= 255 {
		out := make([]byte, 1+len(b))
		out[0] = byte(len(b))
		copy(out[1:], b)
		return out
	}
	numChunks := (len(b) + 254) / 255
	out := make([]byte, 0, len(b)+numChunks)
	for i := 0; i < len(b); i += 255 {
		chunk := b[i:]
		if len(chunk) > 255 {
			chunk = chunk[:255]
		}
		out = append(out, byte(len(chunk)))
		out = append(out, chunk...)
	}
	return out
}

func (rr Record) IPv4() (string, bool) {
	if RecordType(rr.Type) != TypeA {
		return "", false
	}
	b, ok := rr.Data.([]byte)
	if !ok || len(b) != 4 {
		return "", false
	}
	return net.IPv4(b[0], b[1], b[2], b[3]).String(), true
}

func (rr Record) IPv6() (string, bool) {
	if RecordType(rr.Type) != TypeAAAA {
		return "", false
	}
	b, ok := rr.Data.([]byte)
	if !ok || len(b) != 16 {
		return "", false
	}
	return net.IP(b).String(), true
}
