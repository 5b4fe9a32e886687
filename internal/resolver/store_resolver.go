package resolver

import (
	"context"

	"github.com/kvdns/kvdnsd/internal/dnsmsg"
	"github.com/kvdns/kvdnsd/internal/dnsname"
	"github.com/kvdns/kvdnsd/internal/store"
)

// StoreBackend is the subset of the store client the resolver needs. It is
// an interface (rather than a concrete *store.Client) so tests can swap in
// an in-memory fake without a running Redis.
type StoreBackend interface {
	GetRRset(ctx context.Context, name string, rtype dnsmsg.RecordType) (store.QueryResponse, error)
	GetRRSIG(ctx context.Context, name string, coveredType dnsmsg.RecordType) (store.QueryResponse, error)
	ListAuthoritativeZones(ctx context.Context) ([]string, error)
}

// EDNSUDPPayloadSize is the udp_payload advertised on every response's OPT
// record, independent of what the client asked for; truncation to the
// client's own advertised size happens in the transport layer, not here.
const EDNSUDPPayloadSize = 4096

// StoreResolver is the sole Resolver implementation: it turns a decoded
// request into a decoded response entirely from store reads.
type StoreResolver struct {
	backend StoreBackend
}

// NewStoreResolver constructs a StoreResolver over backend.
func NewStoreResolver(backend StoreBackend) *StoreResolver {
	return &StoreResolver{backend: backend}
}

// Close releases the underlying store client, if it supports it.
func (r *StoreResolver) Close() error {
	if c, ok := r.backend.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Resolve runs the full query pipeline: header seeding, per-query RRset and
// RRSIG lookups, and authority synthesis on a miss.
func (r *StoreResolver) Resolve(ctx context.Context, req dnsmsg.Packet) (dnsmsg.Packet, error) {
	resp := seedHeader(req)

	var zoneName string
	zoneNameSet := false
	answerStored := false
	wantsDNSSEC := dnsmsg.RequestWantsDNSSEC(req)

loop:
	for _, q := range req.Questions {
		if !zoneNameSet {
			zoneName = q.Name
			zoneNameSet = true
		}

		qtype := dnsmsg.RecordType(q.Type)
		qr, err := r.backend.GetRRset(ctx, q.Name, qtype)
		if err != nil {
			resp = setRCode(resp, dnsmsg.RCodeServFail)
			break loop
		}
		if qr.Empty() {
			continue
		}

		entry := qr.Preferred()
		recs, err := entry.ToWireRecords(q.Name, qtype)
		if err != nil {
			resp = setRCode(resp, dnsmsg.RCodeServFail)
			break loop
		}
		resp.Answers = append(resp.Answers, recs...)
		answerStored = true

		if wantsDNSSEC {
			sigQR, err := r.backend.GetRRSIG(ctx, q.Name, qtype)
			if err != nil {
				resp = setRCode(resp, dnsmsg.RCodeServFail)
				break loop
			}
			if sig := sigQR.Preferred(); sig != nil {
				sigRecs, err := sig.ToWireRecords(q.Name, dnsmsg.TypeRRSIG)
				if err != nil {
					resp = setRCode(resp, dnsmsg.RCodeServFail)
					break loop
				}
				resp.Answers = append(resp.Answers, sigRecs...)
			}
		}
	}

	if !answerStored && dnsmsg.RCodeFromFlags(resp.Header.Flags) != dnsmsg.RCodeServFail {
		resp = r.synthesizeAuthority(ctx, resp, zoneName, zoneNameSet)
	}

	resp.Questions = req.Questions
	return resp, nil
}

// synthesizeAuthority builds the negative-answer response: Refused when the
// request had no question at all or no authoritative zone covers it,
// NXDomain with a synthesized SOA when the zone exists but the queried
// RRset is absent.
func (r *StoreResolver) synthesizeAuthority(ctx context.Context, resp dnsmsg.Packet, zoneName string, zoneNameSet bool) dnsmsg.Packet {
	if !zoneNameSet {
		return setRCode(resp, dnsmsg.RCodeRefused)
	}

	zones, err := r.backend.ListAuthoritativeZones(ctx)
	if err != nil {
		return setRCode(resp, dnsmsg.RCodeServFail)
	}

	authZone, ok := dnsname.ClosestEnclosingZone(zones, dnsname.Canonical(zoneName))
	if !ok {
		return setRCode(resp, dnsmsg.RCodeRefused)
	}

	soaQR, err := r.backend.GetRRset(ctx, authZone, dnsmsg.TypeSOA)
	if err != nil {
		return setRCode(resp, dnsmsg.RCodeServFail)
	}
	soaEntry := soaQR.Preferred()
	if soaEntry == nil {
		return setRCode(resp, dnsmsg.RCodeRefused)
	}

	owner := dnsname.TruncateToLabelCount(zoneName, dnsname.LabelCount(authZone))
	authRecs, err := soaEntry.ToWireRecords(owner, dnsmsg.TypeSOA)
	if err != nil {
		return setRCode(resp, dnsmsg.RCodeServFail)
	}
	resp.Authorities = append(resp.Authorities, authRecs...)
	return setRCode(resp, dnsmsg.RCodeNXDomain)
}

func seedHeader(req dnsmsg.Packet) dnsmsg.Packet {
	flags := dnsmsg.QRFlag | dnsmsg.AAFlag
	flags |= req.Header.Flags & dnsmsg.OpcodeMask
	flags |= req.Header.Flags & dnsmsg.RDFlag

	opt := dnsmsg.CreateOPT(EDNSUDPPayloadSize)
	return dnsmsg.Packet{
		Header:      dnsmsg.Header{ID: req.Header.ID, Flags: flags},
		Additionals: []dnsmsg.Record{opt.ToRecord()},
	}
}

func setRCode(resp dnsmsg.Packet, rcode dnsmsg.RCode) dnsmsg.Packet {
	resp.Header.Flags = (resp.Header.Flags &^ dnsmsg.RCodeMask) | (uint16(rcode) & dnsmsg.RCodeMask)
	return resp
}
