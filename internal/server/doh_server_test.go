package server

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvdns/kvdnsd/internal/dnsmsg"
)

func buildDoHQuery(t *testing.T) []byte {
	t.Helper()
	p := dnsmsg.Packet{
		Header:    dnsmsg.Header{ID: 7, Flags: dnsmsg.RDFlag, QDCount: 1},
		Questions: []dnsmsg.Question{{Name: "example.com.", Type: uint16(dnsmsg.TypeA), Class: uint16(dnsmsg.ClassIN)}},
	}
	b, err := p.Marshal()
	require.NoError(t, err)
	return b
}

func newTestDoHServer() *DoHServer {
	resolver := &mockResolver{response: buildTestResponse("example.com.", dnsmsg.TypeA)}
	h := &QueryHandler{Resolver: resolver, Timeout: 2 * time.Second}
	d := &DoHServer{Handler: h}
	d.startTime = time.Now()
	return d
}

func TestDoHServer_POST_Success(t *testing.T) {
	d := newTestDoHServer()
	ts := httptest.NewServer(d.engine())
	defer ts.Close()

	query := buildDoHQuery(t)
	resp, err := http.Post(ts.URL+"/dns-query", "application/dns-message", bytes.NewReader(query))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/dns-message", resp.Header.Get("Content-Type"))
}

func TestDoHServer_GET_Success(t *testing.T) {
	d := newTestDoHServer()
	ts := httptest.NewServer(d.engine())
	defer ts.Close()

	query := buildDoHQuery(t)
	encoded := base64.RawURLEncoding.EncodeToString(query)
	resp, err := http.Get(ts.URL + "/dns-query?dns=" + encoded)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDoHServer_GET_MissingParam(t *testing.T) {
	d := newTestDoHServer()
	ts := httptest.NewServer(d.engine())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/dns-query")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDoHServer_GET_InvalidBase64(t *testing.T) {
	d := newTestDoHServer()
	ts := httptest.NewServer(d.engine())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/dns-query?dns=not-valid-base64!!!")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDoHServer_CORSHeaders(t *testing.T) {
	d := newTestDoHServer()
	ts := httptest.NewServer(d.engine())
	defer ts.Close()

	query := buildDoHQuery(t)
	resp, err := http.Post(ts.URL+"/dns-query", "application/dns-message", bytes.NewReader(query))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestDoHServer_Healthz(t *testing.T) {
	d := newTestDoHServer()
	ts := httptest.NewServer(d.engine())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
