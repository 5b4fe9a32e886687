package store

import (
	"encoding/json"
	"fmt"
	"net"

	"github.com/kvdns/kvdnsd/internal/dnsmsg"
)

// StoreEntry is an RRset as persisted in the KV store: the owner name, its
// record type, a single TTL shared by every record in the set, and the set
// of record-specific data.
type StoreEntry struct {
	Name   string  `json:"name"`
	RRType string  `json:"rr_type"`
	TTL    uint32  `json:"ttl"`
	RRSet  []Rdata `json:"rr_set"`
}

// rawBytes marshals a []byte as a JSON array of numbers (the wire shape a
// Rust Vec<u8> produces under serde's default encoding), not as base64 the
// way encoding/json treats []byte natively.
type rawBytes []byte

func (b rawBytes) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

func (b *rawBytes) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		out[i] = byte(v)
	}
	*b = out
	return nil
}

type soaFields struct {
	MName   string `json:"mname"`
	RName   string `json:"rname"`
	Serial  uint32 `json:"serial"`
	Refresh uint32 `json:"refresh"`
	Retry   uint32 `json:"retry"`
	Expire  uint32 `json:"expire"`
	Minimum uint32 `json:"minimum"`
}

type mxFields struct {
	Preference uint16 `json:"preference"`
	Exchange   string `json:"exchange"`
}

type dnskeyFields struct {
	Flags     uint16   `json:"flags"`
	Protocol  uint8    `json:"protocol"`
	Algorithm uint8    `json:"algorithm"`
	KeyData   rawBytes `json:"key_data"`
}

type srvFields struct {
	Priority uint16 `json:"priority"`
	Weight   uint16 `json:"weight"`
	Port     uint16 `json:"port"`
	Target   string `json:"target"`
}

// caaFields restricts Tag to "issue", "issuewild", or "iodef" (RFC 6844);
// anything else is rejected when parsed from the store.
type caaFields struct {
	Flags uint8  `json:"flags"`
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

type tlsaFields struct {
	Usage        uint8    `json:"usage"`
	Selector     uint8    `json:"selector"`
	MatchingType uint8    `json:"matching_type"`
	Data         rawBytes `json:"data"`
}

type rrsigFields struct {
	TypeCovered string   `json:"type_covered"`
	Algorithm   uint8    `json:"algorithm"`
	Labels      uint8    `json:"labels"`
	OriginalTTL uint32   `json:"original_ttl"`
	Expiration  uint32   `json:"expiration"`
	Inception   uint32   `json:"inception"`
	KeyTag      uint16   `json:"key_tag"`
	SignerName  string   `json:"signer_name"`
	Signature   rawBytes `json:"signature"`
}

var allowedCAATags = map[string]bool{"issue": true, "issuewild": true, "iodef": true}

// Rdata is one record's value within an RRset, modeled as a tagged union:
// exactly one field is populated, selected by Tag. On the wire it is a
// single-key JSON object, e.g. {"A":"1.2.3.4"} or {"Mx":{"preference":10,...}},
// matching the store's existing externally-tagged encoding.
type Rdata struct {
	Tag string

	A          net.IP
	AAAA       net.IP
	NS         string
	CNAME      string
	PTR        string
	SOA        soaFields
	MX         mxFields
	TXT        string
	DNSKEY     dnskeyFields
	SRV        srvFields
	CAA        caaFields
	OPENPGPKEY rawBytes
	TLSA       tlsaFields
	RRSIG      rrsigFields
}

func (r Rdata) MarshalJSON() ([]byte, error) {
	var v any
	switch r.Tag {
	case "A":
		v = r.A.String()
	case "A6":
		v = r.AAAA.String()
	case "Ns":
		v = r.NS
	case "Cname":
		v = r.CNAME
	case "Ptr":
		v = r.PTR
	case "Soa":
		v = r.SOA
	case "Mx":
		v = r.MX
	case "Txt":
		v = r.TXT
	case "Dnskey":
		v = r.DNSKEY
	case "Srv":
		v = r.SRV
	case "Caa":
		v = r.CAA
	case "Openpgpkey":
		v = r.OPENPGPKEY
	case "Tlsa":
		v = r.TLSA
	case "Rrsig":
		v = r.RRSIG
	default:
		return nil, fmt.Errorf("%w: unknown rdata tag %q", ErrInvalidStoreValue, r.Tag)
	}
	return json.Marshal(map[string]any{r.Tag: v})
}

func (r *Rdata) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: rdata is not a single-key JSON object: %v", ErrInvalidStoreValue, err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("%w: rdata object must have exactly one key, got %d", ErrInvalidStoreValue, len(obj))
	}
	for tag, raw := range obj {
		r.Tag = tag
		var err error
		switch tag {
		case "A":
			var s string
			err = json.Unmarshal(raw, &s)
			if err == nil {
				r.A = net.ParseIP(s).To4()
				if r.A == nil {
					err = fmt.Errorf("invalid IPv4 address %q", s)
				}
			}
		case "A6":
			var s string
			err = json.Unmarshal(raw, &s)
			if err == nil {
				r.AAAA = net.ParseIP(s).To16()
				if r.AAAA == nil {
					err = fmt.Errorf("invalid IPv6 address %q", s)
				}
			}
		case "Ns":
			err = json.Unmarshal(raw, &r.NS)
		case "Cname":
			err = json.Unmarshal(raw, &r.CNAME)
		case "Ptr":
			err = json.Unmarshal(raw, &r.PTR)
		case "Soa":
			err = json.Unmarshal(raw, &r.SOA)
		case "Mx":
			err = json.Unmarshal(raw, &r.MX)
		case "Txt":
			err = json.Unmarshal(raw, &r.TXT)
		case "Dnskey":
			err = json.Unmarshal(raw, &r.DNSKEY)
		case "Srv":
			err = json.Unmarshal(raw, &r.SRV)
		case "Caa":
			err = json.Unmarshal(raw, &r.CAA)
			if err == nil && !allowedCAATags[r.CAA.Tag] {
				err = fmt.Errorf("unsupported CAA tag %q", r.CAA.Tag)
			}
		case "Openpgpkey":
			err = json.Unmarshal(raw, &r.OPENPGPKEY)
		case "Tlsa":
			err = json.Unmarshal(raw, &r.TLSA)
		case "Rrsig":
			err = json.Unmarshal(raw, &r.RRSIG)
		default:
			err = fmt.Errorf("unknown rdata tag %q", tag)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidStoreValue, err)
		}
	}
	return nil
}

// ToWireRecords converts the entry into wire dnsmsg.Records whose owner
// name is owner (the client-supplied, case-preserved query name, or a
// truncated zone apex name for SOA synthesis) rather than the entry's
// stored (lowercased) name.
func (e StoreEntry) ToWireRecords(owner string, rtype dnsmsg.RecordType) ([]dnsmsg.Record, error) {
	out := make([]dnsmsg.Record, 0, len(e.RRSet))
	for _, rd := range e.RRSet {
		data, err := rd.toWireData()
		if err != nil {
			return nil, err
		}
		out = append(out, dnsmsg.Record{
			Name:  owner,
			Type:  uint16(rtype),
			Class: uint16(dnsmsg.ClassIN),
			TTL:   e.TTL,
			Data:  data,
		})
	}
	return out, nil
}

func (rd Rdata) toWireData() (any, error) {
	switch rd.Tag {
	case "A":
		return []byte(rd.A.To4()), nil
	case "A6":
		return []byte(rd.AAAA.To16()), nil
	case "Ns":
		return rd.NS, nil
	case "Cname":
		return rd.CNAME, nil
	case "Ptr":
		return rd.PTR, nil
	case "Soa":
		return encodeSOARData(rd.SOA), nil
	case "Mx":
		return dnsmsg.MXData{Preference: rd.MX.Preference, Exchange: rd.MX.Exchange}, nil
	case "Txt":
		return rd.TXT, nil
	case "Dnskey":
		return dnsmsg.DNSKEYData{Flags: rd.DNSKEY.Flags, Protocol: rd.DNSKEY.Protocol, Algorithm: rd.DNSKEY.Algorithm, PublicKey: rd.DNSKEY.KeyData}, nil
	case "Srv":
		return dnsmsg.SRVData{Priority: rd.SRV.Priority, Weight: rd.SRV.Weight, Port: rd.SRV.Port, Target: rd.SRV.Target}, nil
	case "Caa":
		return dnsmsg.CAAData{Flag: rd.CAA.Flags, Tag: rd.CAA.Tag, Value: []byte(rd.CAA.Value)}, nil
	case "Openpgpkey":
		return []byte(rd.OPENPGPKEY), nil
	case "Tlsa":
		return dnsmsg.TLSAData{CertUsage: rd.TLSA.Usage, Selector: rd.TLSA.Selector, MatchingType: rd.TLSA.MatchingType, CertData: rd.TLSA.Data}, nil
	case "Rrsig":
		return dnsmsg.RRSIGData{
			TypeCovered: mnemonicToType(rd.RRSIG.TypeCovered),
			Algorithm:   rd.RRSIG.Algorithm,
			Labels:      rd.RRSIG.Labels,
			OriginalTTL: rd.RRSIG.OriginalTTL,
			Expiration:  rd.RRSIG.Expiration,
			Inception:   rd.RRSIG.Inception,
			KeyTag:      rd.RRSIG.KeyTag,
			SignerName:  rd.RRSIG.SignerName,
			Signature:   rd.RRSIG.Signature,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown rdata tag %q", ErrInvalidStoreValue, rd.Tag)
	}
}

// encodeSOARData packs SOA fields into the wire rdata used for TypeSOA
// records: mname + rname as encoded names followed by five 32-bit fields.
// SOA has no dedicated dnsmsg data struct; it is encoded here as raw bytes,
// which the wire codec's default arm writes verbatim (no name compression).
func encodeSOARData(f soaFields) []byte {
	mname, _ := dnsmsg.EncodeName(f.MName)
	rname, _ := dnsmsg.EncodeName(f.RName)
	out := make([]byte, 0, len(mname)+len(rname)+20)
	out = append(out, mname...)
	out = append(out, rname...)
	var buf [4]byte
	for _, v := range []uint32{f.Serial, f.Refresh, f.Retry, f.Expire, f.Minimum} {
		buf[0], buf[1], buf[2], buf[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
		out = append(out, buf[:]...)
	}
	return out
}

func mnemonicToType(m string) uint16 {
	for t, name := range dnsmsgTypeNames() {
		if name == m {
			return uint16(t)
		}
	}
	return 0
}

func dnsmsgTypeNames() map[dnsmsg.RecordType]string {
	return map[dnsmsg.RecordType]string{
		dnsmsg.TypeA: "A", dnsmsg.TypeNS: "NS", dnsmsg.TypeCNAME: "CNAME", dnsmsg.TypeSOA: "SOA",
		dnsmsg.TypePTR: "PTR", dnsmsg.TypeMX: "MX", dnsmsg.TypeTXT: "TXT", dnsmsg.TypeAAAA: "AAAA",
		dnsmsg.TypeSRV: "SRV", dnsmsg.TypeRRSIG: "RRSIG", dnsmsg.TypeDNSKEY: "DNSKEY",
		dnsmsg.TypeTLSA: "TLSA", dnsmsg.TypeOPENPGPKEY: "OPENPGPKEY", dnsmsg.TypeCAA: "CAA",
	}
}
