package dnsmsg_test

import (
	"testing"

	"github.com/kvdns/kvdnsd/internal/dnsmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTripRecord(t *testing.T, rr dnsmsg.Record) dnsmsg.Record {
	t.Helper()
	wire, err := rr.Marshal()
	require.NoError(t, err)
	off := 0
	got, err := dnsmsg.ParseRecord(wire, &off)
	require.NoError(t, err)
	assert.Equal(t, len(wire), off)
	return got
}

func TestRecordRoundTripA(t *testing.T) {
	rr := dnsmsg.Record{Name: "example.com", Type: uint16(dnsmsg.TypeA), Class: uint16(dnsmsg.ClassIN), TTL: 300, Data: []byte{1, 2, 3, 4}}
	got := roundTripRecord(t, rr)
	ip, ok := got.IPv4()
	require.True(t, ok)
	assert.Equal(t, "1.2.3.4", ip)
}

func TestRecordRoundTripAAAA(t *testing.T) {
	addr := make([]byte, 16)
	addr[15] = 1
	rr := dnsmsg.Record{Name: "example.com", Type: uint16(dnsmsg.TypeAAAA), Class: uint16(dnsmsg.ClassIN), TTL: 300, Data: addr}
	got := roundTripRecord(t, rr)
	ip, ok := got.IPv6()
	require.True(t, ok)
	assert.Equal(t, "::1", ip)
}

func TestRecordRoundTripCNAME(t *testing.T) {
	rr := dnsmsg.Record{Name: "www.example.com", Type: uint16(dnsmsg.TypeCNAME), Class: uint16(dnsmsg.ClassIN), TTL: 300, Data: "example.com"}
	got := roundTripRecord(t, rr)
	assert.Equal(t, "example.com", got.Data)
}

func TestRecordRoundTripMX(t *testing.T) {
	rr := dnsmsg.Record{Name: "example.com", Type: uint16(dnsmsg.TypeMX), Class: uint16(dnsmsg.ClassIN), TTL: 300,
		Data: dnsmsg.MXData{Preference: 10, Exchange: "mail.example.com"}}
	got := roundTripRecord(t, rr)
	assert.Equal(t, dnsmsg.MXData{Preference: 10, Exchange: "mail.example.com"}, got.Data)
}

func TestRecordRoundTripSRV(t *testing.T) {
	rr := dnsmsg.Record{Name: "_sip._tcp.example.com", Type: uint16(dnsmsg.TypeSRV), Class: uint16(dnsmsg.ClassIN), TTL: 300,
		Data: dnsmsg.SRVData{Priority: 1, Weight: 2, Port: 5060, Target: "sip.example.com"}}
	got := roundTripRecord(t, rr)
	assert.Equal(t, dnsmsg.SRVData{Priority: 1, Weight: 2, Port: 5060, Target: "sip.example.com"}, got.Data)
}

func TestRecordRoundTripCAA(t *testing.T) {
	rr := dnsmsg.Record{Name: "example.com", Type: uint16(dnsmsg.TypeCAA), Class: uint16(dnsmsg.ClassIN), TTL: 300,
		Data: dnsmsg.CAAData{Flag: 0, Tag: "issue", Value: []byte("letsencrypt.org")}}
	got := roundTripRecord(t, rr)
	assert.Equal(t, dnsmsg.CAAData{Flag: 0, Tag: "issue", Value: []byte("letsencrypt.org")}, got.Data)
}

func TestRecordRoundTripTLSA(t *testing.T) {
	rr := dnsmsg.Record{Name: "_443._tcp.example.com", Type: uint16(dnsmsg.TypeTLSA), Class: uint16(dnsmsg.ClassIN), TTL: 300,
		Data: dnsmsg.TLSAData{CertUsage: 3, Selector: 1, MatchingType: 1, CertData: []byte{0xde, 0xad, 0xbe, 0xef}}}
	got := roundTripRecord(t, rr)
	assert.Equal(t, dnsmsg.TLSAData{CertUsage: 3, Selector: 1, MatchingType: 1, CertData: []byte{0xde, 0xad, 0xbe, 0xef}}, got.Data)
}

func TestRecordRoundTripDNSKEY(t *testing.T) {
	rr := dnsmsg.Record{Name: "example.com", Type: uint16(dnsmsg.TypeDNSKEY), Class: uint16(dnsmsg.ClassIN), TTL: 300,
		Data: dnsmsg.DNSKEYData{Flags: 257, Protocol: 3, Algorithm: 13, PublicKey: []byte{1, 2, 3, 4, 5}}}
	got := roundTripRecord(t, rr)
	assert.Equal(t, dnsmsg.DNSKEYData{Flags: 257, Protocol: 3, Algorithm: 13, PublicKey: []byte{1, 2, 3, 4, 5}}, got.Data)
}

func TestRecordRoundTripRRSIG(t *testing.T) {
	rr := dnsmsg.Record{Name: "example.com", Type: uint16(dnsmsg.TypeRRSIG), Class: uint16(dnsmsg.ClassIN), TTL: 300,
		Data: dnsmsg.RRSIGData{
			TypeCovered: uint16(dnsmsg.TypeA), Algorithm: 13, Labels: 2,
			OriginalTTL: 300, Expiration: 1893456000, Inception: 1861920000,
			KeyTag: 12345, SignerName: "example.com", Signature: []byte("sig-bytes"),
		}}
	got := roundTripRecord(t, rr)
	want := rr.Data.(dnsmsg.RRSIGData)
	assert.Equal(t, want, got.Data)
}

func TestRecordRoundTripTXT(t *testing.T) {
	rr := dnsmsg.Record{Name: "example.com", Type: uint16(dnsmsg.TypeTXT), Class: uint16(dnsmsg.ClassIN), TTL: 300, Data: "v=spf1 -all"}
	wire, err := rr.Marshal()
	require.NoError(t, err)
	off := 0
	got, err := dnsmsg.ParseRecord(wire, &off)
	require.NoError(t, err)
	want := append([]byte{byte(len("v=spf1 -all"))}, []byte("v=spf1 -all")...)
	assert.Equal(t, want, got.Data)
}

func TestMarshalRejectsTypeMismatch(t *testing.T) {
	rr := dnsmsg.Record{Name: "example.com", Type: uint16(dnsmsg.TypeA), Data: "not-bytes"}
	_, err := rr.Marshal()
	assert.ErrorIs(t, err, dnsmsg.ErrDNSError)
}
