package store_test

import (
	"encoding/json"
	"testing"

	"github.com/kvdns/kvdnsd/internal/dnsmsg"
	"github.com/kvdns/kvdnsd/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreEntryUnmarshalA(t *testing.T) {
	raw := `{"name":"example.com.","rr_type":"A","ttl":300,"rr_set":[{"A":"1.2.3.4"},{"A":"5.6.7.8"}]}`
	var e store.StoreEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	assert.Equal(t, "example.com.", e.Name)
	assert.Equal(t, uint32(300), e.TTL)
	require.Len(t, e.RRSet, 2)
	assert.Equal(t, "A", e.RRSet[0].Tag)
	assert.Equal(t, "1.2.3.4", e.RRSet[0].A.String())
}

func TestStoreEntryUnmarshalSOAWithMinimum(t *testing.T) {
	raw := `{"name":"example.com.","rr_type":"SOA","ttl":3600,"rr_set":[
		{"Soa":{"mname":"ns1.example.com.","rname":"hostmaster.example.com.","serial":1,"refresh":7200,"retry":3600,"expire":1209600,"minimum":300}}
	]}`
	var e store.StoreEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	require.Len(t, e.RRSet, 1)
	assert.Equal(t, uint32(300), e.RRSet[0].SOA.Minimum)
	assert.Equal(t, "ns1.example.com.", e.RRSet[0].SOA.MName)
}

func TestStoreEntryUnmarshalCAARejectsUnknownTag(t *testing.T) {
	raw := `{"name":"example.com.","rr_type":"CAA","ttl":300,"rr_set":[{"Caa":{"flags":0,"tag":"bogus","value":"x"}}]}`
	var e store.StoreEntry
	err := json.Unmarshal([]byte(raw), &e)
	assert.ErrorIs(t, err, store.ErrInvalidStoreValue)
}

func TestStoreEntryMarshalRoundTrip(t *testing.T) {
	e := store.StoreEntry{
		Name:   "example.com.",
		RRType: "TXT",
		TTL:    60,
		RRSet:  []store.Rdata{{Tag: "Txt", TXT: "hello"}},
	}
	b, err := json.Marshal(e)
	require.NoError(t, err)

	var back store.StoreEntry
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, e.RRSet[0].TXT, back.RRSet[0].TXT)
}

func TestStoreEntryToWireRecords(t *testing.T) {
	e := store.StoreEntry{
		Name:  "example.com.",
		TTL:   300,
		RRSet: []store.Rdata{{Tag: "A", A: []byte{1, 2, 3, 4}}},
	}
	recs, err := e.ToWireRecords("Example.COM.", dnsmsg.TypeA)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Example.COM.", recs[0].Name)
	assert.Equal(t, uint32(300), recs[0].TTL)
	assert.Equal(t, []byte{1, 2, 3, 4}, recs[0].Data)
}

func TestRdataUnmarshalRejectsMultiKeyObject(t *testing.T) {
	var rd store.Rdata
	err := json.Unmarshal([]byte(`{"A":"1.2.3.4","Ns":"ns.example.com."}`), &rd)
	assert.ErrorIs(t, err, store.ErrInvalidStoreValue)
}
