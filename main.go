package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/profile"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/trim21/errgo"
	_ "go.uber.org/automaxprocs"

	"tget/internal/config"
	"tget/internal/download"
	"tget/internal/meta"
	"tget/internal/peer"
	"tget/internal/pkg/global"
	"tget/internal/pkg/netutil"
	"tget/internal/tracker"
	"tget/internal/web"
)

type options struct {
	output        string
	maxRate       string
	configFile    string
	statusAddress string
	peers         []string
	p2pPort       uint16
	workers       int
	debug         bool
	trace         bool
	noAnnounce    bool
}

func main() {
	var opt options

	pflag.StringVarP(&opt.output, "output", "o", "", "output file (default {download_dir}/{torrent name})")
	pflag.StringVar(&opt.configFile, "config-file", "", "path to config file")
	pflag.StringArrayVar(&opt.peers, "peer", nil, "connect to this peer, may be repeated")
	pflag.BoolVar(&opt.noAnnounce, "no-announce", false, "don't ask trackers for peers, only use --peer")
	pflag.Uint16Var(&opt.p2pPort, "p2p-port", 0, "port reported to trackers")
	pflag.IntVar(&opt.workers, "workers", 0, "pieces downloaded at the same time")
	pflag.StringVar(&opt.maxRate, "max-rate", "", "limit download rate per second, like 10MiB")
	pflag.StringVar(&opt.statusAddress, "status-address", "", "serve download status as json on this address")
	pflag.BoolVar(&opt.debug, "debug", false, "enable debug logging")
	pflag.BoolVar(&opt.trace, "trace", false, "enable trace logging")

	var profiling = pflag.Bool("profile", false, "enable profiling for CPU and Memory")
	var profileCpu = pflag.Bool("profile-cpu", false, "enable CPU profiling only")
	var profileMem = pflag.Bool("profile-memory", false, "enable Memory profiling only")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <file.torrent>\n\n", filepath.Base(os.Args[0]))
		pflag.PrintDefaults()
	}

	// this avoids 'pflag: help requested' error when calling for help message.
	if slices.Contains(os.Args[1:], "--help") || slices.Contains(os.Args[1:], "-h") {
		pflag.Usage()
		fmt.Println("\nNote: extra options will override config file, but won't change config file.")
		return
	}

	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(2)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if opt.debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if opt.trace {
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	}

	err := func() error {
		if *profileCpu || *profileMem || *profiling {
			var opts []func(*profile.Profile)
			if *profileCpu || *profiling {
				opts = append(opts, profile.CPUProfile)
			}
			if *profileMem || *profiling {
				opts = append(opts, profile.MemProfile)
			}
			defer profile.Start(append(opts, profile.NoShutdownHook)...).Stop()
		}

		return run(opt, pflag.Arg(0))
	}()

	if err != nil {
		log.Error().Err(err).Msg("download failed")
		os.Exit(1)
	}
}

func run(opt options, torrentPath string) error {
	cfg, err := config.LoadFromFile(opt.configFile)
	if err != nil {
		return errgo.Wrap(err, "failed to load config")
	}

	if opt.p2pPort != 0 {
		cfg.App.P2PPort = opt.p2pPort
	}

	if opt.workers > 0 {
		cfg.App.MaxInFlight = opt.workers
	}

	if opt.maxRate != "" {
		cfg.App.MaxDownloadRate = opt.maxRate
	}

	if err := cfg.Validate(); err != nil {
		return errgo.Wrap(err, "invalid options")
	}

	m, err := meta.Load(torrentPath)
	if err != nil {
		return err
	}

	output := opt.output
	if output == "" {
		output = filepath.Join(cfg.App.DownloadDir, m.Name)
	}

	initialPeers, err := resolvePeers(opt.peers)
	if err != nil {
		return err
	}

	localID := peer.NewID()

	log.Info().
		Str("name", m.Name).
		Stringer("info_hash", m.Hash).
		Str("size", humanize.IBytes(uint64(m.TotalLength))).
		Uint32("pieces", m.NumPieces).
		Str("piece_length", humanize.IBytes(uint64(m.PieceLength))).
		Str("output", output).
		Msg("start download")

	dopt := cfg.DownloadOptions()
	dopt.PublicAddr = netutil.PublicAddrPort(cfg.App.P2PPort)

	d := download.New(m, output, localID, dopt)
	d.AddPeers(initialPeers...)

	var trackers []tracker.Tracker
	if !opt.noAnnounce {
		trackers = newTrackers(cfg, m)
	}

	announce := func(ctx context.Context, event string) ([]netip.AddrPort, error) {
		p := d.Progress()
		return tracker.AnnounceAll(ctx, trackers, tracker.AnnounceRequest{
			InfoHash:   m.Hash,
			PeerID:     localID,
			Port:       cfg.App.P2PPort,
			Downloaded: p.Downloaded,
			Left:       p.Total - p.Done,
			NumWant:    int(cfg.App.NumWant),
			Compact:    true,
			Event:      event,
		})
	}

	if len(trackers) != 0 {
		var started bool
		d.SetPeerSource(func(ctx context.Context) ([]netip.AddrPort, error) {
			event := ""
			if !started {
				event = tracker.EventStarted
				started = true
			}
			return announce(ctx, event)
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opt.statusAddress != "" {
		srv := web.Serve(opt.statusAddress, web.New(m, d, opt.debug || global.Dev))
		defer shutdown(srv)
	}

	res, err := d.Run(ctx)

	log.Info().
		Uint32("completed", res.Completed).
		Uint32("pieces", res.NumPieces).
		Str("downloaded", humanize.IBytes(uint64(res.Downloaded))).
		Str("corrupted", humanize.IBytes(uint64(res.Corrupted))).
		Msg("download finished")

	if len(trackers) != 0 {
		event := tracker.EventStopped
		if err == nil {
			event = tracker.EventCompleted
		}

		actx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, aerr := announce(actx, event); aerr != nil {
			log.Debug().Err(aerr).Str("event", event).Msg("failed to announce")
		}
		cancel()
	}

	return err
}

// resolvePeers turns host:port arguments into addresses, looking up host names.
func resolvePeers(peers []string) ([]netip.AddrPort, error) {
	var addrs []netip.AddrPort

	for _, s := range peers {
		a, err := net.ResolveTCPAddr("tcp", s)
		if err != nil {
			return nil, errgo.Wrap(err, fmt.Sprintf("invalid --peer %q", s))
		}

		if a.Port == 0 {
			return nil, fmt.Errorf("invalid --peer %q: missing port", s)
		}

		ap := a.AddrPort()
		addrs = append(addrs, netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()))
	}

	return addrs, nil
}

func newTrackers(cfg config.Config, m *meta.Metadata) []tracker.Tracker {
	tr := &http.Transport{
		Proxy:              http.ProxyFromEnvironment,
		MaxIdleConns:       cfg.App.MaxHTTPParallel,
		IdleConnTimeout:    30 * time.Second,
		DisableCompression: true,
	}

	hc := resty.NewWithClient(&http.Client{Transport: tr, Timeout: 30 * time.Second}).
		SetHeader("User-Agent", global.UserAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(3))

	var trackers []tracker.Tracker
	for _, u := range m.AnnounceList {
		t, err := tracker.New(u, hc)
		if err != nil {
			log.Warn().Err(err).Msg("skip tracker")
			continue
		}
		trackers = append(trackers, t)
	}

	return trackers
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
}
