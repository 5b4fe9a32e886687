package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/kvdns/kvdnsd/internal/dnsmsg"
	"github.com/kvdns/kvdnsd/internal/resolver"
	"github.com/kvdns/kvdnsd/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// integrationBackend is an in-memory resolver.StoreBackend fixture used to
// exercise a real UDP socket end to end without a running Redis.
type integrationBackend struct {
	rrsets map[string]store.QueryResponse
	zones  []string
}

func (b *integrationBackend) GetRRset(_ context.Context, name string, rtype dnsmsg.RecordType) (store.QueryResponse, error) {
	return b.rrsets[name+":"+rtype.String()], nil
}

func (b *integrationBackend) GetRRSIG(_ context.Context, _ string, _ dnsmsg.RecordType) (store.QueryResponse, error) {
	return store.QueryResponse{}, nil
}

func (b *integrationBackend) ListAuthoritativeZones(_ context.Context) ([]string, error) {
	return b.zones, nil
}

func TestUDPServer_ZoneAnswer(t *testing.T) {
	backend := &integrationBackend{
		rrsets: map[string]store.QueryResponse{
			"www.test.local.:A": {Definitive: &store.StoreEntry{
				TTL:   300,
				RRSet: []store.Rdata{{Tag: "A", A: net.ParseIP("10.0.0.2").To4()}},
			}},
		},
		zones: []string{"test.local."},
	}
	res := resolver.NewStoreResolver(backend)
	defer res.Close()

	h := &QueryHandler{Resolver: res, Timeout: 2 * time.Second}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err, "listen udp failed")
	addr := conn.LocalAddr().(*net.UDPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &UDPServer{Handler: h, WorkersPerSocket: 8}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.RunOnConn(ctx, conn) }()
	defer func() {
		_ = srv.Stop(2 * time.Second)
		cancel()
		<-errCh
	}()

	client, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: addr.IP, Port: addr.Port})
	require.NoError(t, err, "dial udp failed")
	defer client.Close()

	req := dnsmsg.Packet{
		Header:    dnsmsg.Header{ID: 0xABCD, Flags: dnsmsg.RDFlag},
		Questions: []dnsmsg.Question{{Name: "www.test.local.", Type: uint16(dnsmsg.TypeA), Class: uint16(dnsmsg.ClassIN)}},
	}
	b, err := req.Marshal()
	require.NoError(t, err, "marshal failed")

	_ = client.SetDeadline(time.Now().Add(2 * time.Second))
	_, err = client.Write(b)
	require.NoError(t, err, "write failed")

	buf := make([]byte, 2048)
	n, err := client.Read(buf)
	require.NoError(t, err, "read failed")

	resp, err := dnsmsg.ParsePacket(buf[:n])
	require.NoError(t, err, "parse failed")

	assert.Equal(t, uint16(0xABCD), resp.Header.ID, "transaction ID mismatch")
	assert.NotZero(t, resp.Header.Flags&dnsmsg.QRFlag, "expected QR=1")
	assert.Equal(t, dnsmsg.RCodeNoError, dnsmsg.RCodeFromFlags(resp.Header.Flags), "expected NOERROR rcode")
	require.Len(t, resp.Answers, 1, "expected 1 answer")
	assert.Equal(t, dnsmsg.TypeA, dnsmsg.RecordType(resp.Answers[0].Type), "expected A record")
}

// TestUDPServer_MalformedRequest_SilentlyDropped sends a message whose
// header parses but whose body is garbage, and confirms no reply arrives:
// UDP never answers a request it could not parse.
func TestUDPServer_MalformedRequest_SilentlyDropped(t *testing.T) {
	backend := &integrationBackend{zones: []string{"test.local."}}
	res := resolver.NewStoreResolver(backend)
	defer res.Close()

	h := &QueryHandler{Resolver: res, Timeout: 2 * time.Second}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err, "listen udp failed")
	addr := conn.LocalAddr().(*net.UDPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &UDPServer{Handler: h, WorkersPerSocket: 8}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.RunOnConn(ctx, conn) }()
	defer func() {
		_ = srv.Stop(2 * time.Second)
		cancel()
		<-errCh
	}()

	client, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: addr.IP, Port: addr.Port})
	require.NoError(t, err, "dial udp failed")
	defer client.Close()

	// A valid 12-byte header claiming one question, followed by bytes that
	// are not a well-formed question section.
	garbage := []byte{0xAB, 0xCD, 0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF}
	_ = client.SetDeadline(time.Now().Add(2 * time.Second))
	_, err = client.Write(garbage)
	require.NoError(t, err, "write failed")

	_ = client.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	buf := make([]byte, 2048)
	_, err = client.Read(buf)
	assert.Error(t, err, "expected no reply (read timeout) for malformed request")
}

// TestTCPServer_MalformedRequest_ClosesConnection confirms a malformed
// message body gets no reply and the connection is closed, rather than
// staying open for the next pipelined query.
func TestTCPServer_MalformedRequest_ClosesConnection(t *testing.T) {
	backend := &integrationBackend{zones: []string{"test.local."}}
	res := resolver.NewStoreResolver(backend)
	defer res.Close()

	h := &QueryHandler{Resolver: res, Timeout: 2 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &TCPServer{Handler: h, IdleTimeout: 2 * time.Second}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "listen tcp failed")
	addr := ln.Addr().String()
	_ = ln.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx, addr) }()
	defer func() {
		_ = srv.Stop(2 * time.Second)
		cancel()
		<-errCh
	}()
	time.Sleep(50 * time.Millisecond) // let the listener bind

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err, "dial tcp failed")
	defer conn.Close()

	garbage := []byte{0xAB, 0xCD, 0x01, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0xFF}
	var framed bytes.Buffer
	_ = binary.Write(&framed, binary.BigEndian, uint16(len(garbage)))
	framed.Write(garbage)

	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Write(framed.Bytes())
	require.NoError(t, err, "write failed")

	buf := make([]byte, 2048)
	n, err := conn.Read(buf)
	assert.Equal(t, 0, n, "expected no reply bytes")
	assert.Error(t, err, "expected connection closed (EOF) after malformed request")
	assert.ErrorIs(t, err, io.EOF)
}
