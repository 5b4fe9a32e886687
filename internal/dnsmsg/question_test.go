package dnsmsg_test

import (
	"testing"

	"github.com/kvdns/kvdnsd/internal/dnsmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionRoundTripPreservesCase(t *testing.T) {
	q := dnsmsg.Question{Name: "WWW.Example.com", Type: uint16(dnsmsg.TypeA), Class: uint16(dnsmsg.ClassIN)}
	wire, err := q.Marshal()
	require.NoError(t, err)

	off := 0
	got, err := dnsmsg.ParseQuestion(wire, &off)
	require.NoError(t, err)
	assert.Equal(t, "WWW.Example.com", got.Name)
	assert.Equal(t, q.Type, got.Type)
	assert.Equal(t, q.Class, got.Class)
}

func TestParseQuestionTruncated(t *testing.T) {
	off := 0
	_, err := dnsmsg.ParseQuestion([]byte{0}, &off)
	assert.ErrorIs(t, err, dnsmsg.ErrDNSError)
}
