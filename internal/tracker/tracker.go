// Package tracker announces to HTTP and UDP trackers to discover peers.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc"

	"tget/internal/meta"
)

const EventStarted = "started"
const EventCompleted = "completed"
const EventStopped = "stopped"

// used when a tracker doesn't send an interval.
const defaultInterval = 30 * time.Minute

var ErrUnsupportedScheme = errors.New("unsupported tracker scheme")

// FailureError is a failure reported by the tracker itself.
type FailureError struct {
	URL    string
	Reason string
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("tracker %s: %s", e.URL, e.Reason)
}

type AnnounceRequest struct {
	Event      string
	InfoHash   meta.Hash
	PeerID     [20]byte
	Downloaded int64
	Uploaded   int64
	Left       int64
	NumWant    int
	Port       uint16
	Compact    bool
}

type AnnounceResponse struct {
	Peers    []netip.AddrPort
	Interval time.Duration
	Seeders  int
	Leechers int
}

type Tracker interface {
	Announce(ctx context.Context, req AnnounceRequest) (AnnounceResponse, error)
	URL() string
}

// New returns a tracker client for rawURL, chosen by its scheme.
func New(rawURL string, client *resty.Client) (Tracker, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid tracker url %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "http", "https":
		return &httpTracker{url: rawURL, client: client}, nil
	case "udp":
		if u.Port() == "" {
			return nil, fmt.Errorf("udp tracker %q has no port", rawURL)
		}
		return &udpTracker{url: rawURL, host: u.Host, timeout: udpTimeout, retry: udpRetry}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, rawURL)
}

// AnnounceAll announces to every tracker concurrently and merges the peers they return.
// It only fails when no tracker answered.
func AnnounceAll(ctx context.Context, trackers []Tracker, req AnnounceRequest) ([]netip.AddrPort, error) {
	var m sync.Mutex
	var peers []netip.AddrPort
	var errs []error
	var ok bool

	wg := conc.NewWaitGroup()
	for _, t := range trackers {
		wg.Go(func() {
			r, err := t.Announce(ctx, req)

			m.Lock()
			defer m.Unlock()

			if err != nil {
				errs = append(errs, err)
				return
			}

			ok = true
			peers = append(peers, r.Peers...)
		})
	}
	wg.Wait()

	if !ok {
		if len(errs) == 0 {
			return nil, errors.New("no tracker to announce to")
		}
		return nil, errors.Join(errs...)
	}

	return lo.Uniq(peers), nil
}
