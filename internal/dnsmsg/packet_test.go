package dnsmsg_test

import (
	"testing"

	"github.com/kvdns/kvdnsd/internal/dnsmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketRoundTrip(t *testing.T) {
	p := dnsmsg.Packet{
		Header: dnsmsg.Header{ID: 42, Flags: dnsmsg.QRFlag | dnsmsg.AAFlag},
		Questions: []dnsmsg.Question{
			{Name: "example.com", Type: uint16(dnsmsg.TypeA), Class: uint16(dnsmsg.ClassIN)},
		},
		Answers: []dnsmsg.Record{
			{Name: "example.com", Type: uint16(dnsmsg.TypeA), Class: uint16(dnsmsg.ClassIN), TTL: 300, Data: []byte{10, 0, 0, 1}},
		},
	}
	wire, err := p.Marshal()
	require.NoError(t, err)

	got, err := dnsmsg.ParsePacket(wire)
	require.NoError(t, err)
	assert.Equal(t, p.Header.ID, got.Header.ID)
	assert.Equal(t, p.Header.Flags, got.Header.Flags)
	require.Len(t, got.Questions, 1)
	assert.Equal(t, "example.com", got.Questions[0].Name)
	require.Len(t, got.Answers, 1)
	ip, ok := got.Answers[0].IPv4()
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1", ip)
}

func TestParsePacketEmptyQuestions(t *testing.T) {
	p := dnsmsg.Packet{Header: dnsmsg.Header{ID: 7}}
	wire, err := p.Marshal()
	require.NoError(t, err)

	got, err := dnsmsg.ParsePacket(wire)
	require.NoError(t, err)
	assert.Empty(t, got.Questions)
}
