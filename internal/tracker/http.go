package tracker

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/netip"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/trim21/errgo"
	"github.com/zeebo/bencode"
)

type httpTracker struct {
	client *resty.Client
	url    string
}

func (t *httpTracker) URL() string {
	return t.url
}

type trackerAnnounceResponse struct {
	FailureReason string             `bencode:"failure reason"`
	Peers         bencode.RawMessage `bencode:"peers"`
	Peers6        bencode.RawMessage `bencode:"peers6"`
	Interval      int                `bencode:"interval"`
	Complete      int                `bencode:"complete"`
	Incomplete    int                `bencode:"incomplete"`
}

type nonCompactAnnounceResponse struct {
	IP   string `bencode:"ip"`
	Port uint16 `bencode:"port"`
}

func (t *httpTracker) Announce(ctx context.Context, r AnnounceRequest) (AnnounceResponse, error) {
	log.Trace().Str("url", t.url).Msg("announce to tracker")

	req := t.client.R().
		SetContext(ctx).
		SetQueryParam("info_hash", r.InfoHash.AsString()).
		SetQueryParam("peer_id", string(r.PeerID[:])).
		SetQueryParam("port", strconv.FormatUint(uint64(r.Port), 10)).
		SetQueryParam("uploaded", strconv.FormatInt(r.Uploaded, 10)).
		SetQueryParam("downloaded", strconv.FormatInt(r.Downloaded, 10)).
		SetQueryParam("left", strconv.FormatInt(r.Left, 10))

	if r.Compact {
		req = req.SetQueryParam("compact", "1")
	}

	if r.NumWant > 0 {
		req = req.SetQueryParam("numwant", strconv.Itoa(r.NumWant))
	}

	if r.Event != "" {
		req = req.SetQueryParam("event", r.Event)
	}

	res, err := req.Get(t.url)
	if err != nil {
		return AnnounceResponse{}, errgo.Wrap(err, "failed to connect to tracker")
	}

	if res.IsError() {
		return AnnounceResponse{}, fmt.Errorf("tracker %s responded with status %d", t.url, res.StatusCode())
	}

	var body trackerAnnounceResponse
	if err := bencode.DecodeBytes(res.Body(), &body); err != nil {
		log.Debug().Err(err).Str("res", res.String()).Msg("failed to decode tracker response")
		return AnnounceResponse{}, errgo.Wrap(err, "failed to parse torrent announce response")
	}

	if body.FailureReason != "" {
		return AnnounceResponse{}, &FailureError{URL: t.url, Reason: body.FailureReason}
	}

	result := AnnounceResponse{
		Interval: defaultInterval,
		Seeders:  body.Complete,
		Leechers: body.Incomplete,
	}

	if body.Interval > 0 {
		result.Interval = time.Duration(body.Interval) * time.Second
	}

	// BEP says we must support both format
	peers, err := parsePeers(body.Peers, 4)
	if err != nil {
		return result, errgo.Wrap(err, "failed to parse 'peers'")
	}

	peers6, err := parsePeers(body.Peers6, 16)
	if err != nil {
		return result, errgo.Wrap(err, "failed to parse 'peers6'")
	}

	result.Peers = append(peers, peers6...)

	return result, nil
}

func parsePeers(raw bencode.RawMessage, addrLen int) ([]netip.AddrPort, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	if raw[0] == 'l' {
		return parseNonCompactResponse(raw)
	}

	var b []byte
	if err := bencode.DecodeBytes(raw, &b); err != nil {
		return nil, err
	}

	return parseCompactPeers(b, addrLen)
}

func parseNonCompactResponse(data []byte) ([]netip.AddrPort, error) {
	var s []nonCompactAnnounceResponse
	if err := bencode.DecodeBytes(data, &s); err != nil {
		return nil, err
	}

	var results = make([]netip.AddrPort, 0, len(s))
	for _, item := range s {
		a, err := netip.ParseAddr(item.IP)
		if err != nil {
			continue
		}
		results = append(results, netip.AddrPortFrom(a.Unmap(), item.Port))
	}

	return results, nil
}

// parseCompactPeers decodes addrLen address bytes followed by a big-endian port, repeated.
func parseCompactPeers(b []byte, addrLen int) ([]netip.AddrPort, error) {
	size := addrLen + 2
	if len(b)%size != 0 {
		return nil, fmt.Errorf("invalid binary peers length %d", len(b))
	}

	var results = make([]netip.AddrPort, 0, len(b)/size)
	for i := 0; i < len(b); i += size {
		addr, _ := netip.AddrFromSlice(b[i : i+addrLen])
		port := binary.BigEndian.Uint16(b[i+addrLen:])
		results = append(results, netip.AddrPortFrom(addr.Unmap(), port))
	}

	return results, nil
}
