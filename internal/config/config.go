package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/trim21/errgo"

	"tget/internal/download"
	"tget/internal/peer"
)

type Application struct {
	DownloadDir     string        `toml:"download_dir"`
	MaxDownloadRate string        `toml:"max_download_rate"`
	MaxHTTPParallel int           `toml:"max_http_parallel"`
	MaxInFlight     int           `toml:"max_in_flight"`
	MaxRounds       int           `toml:"max_rounds"`
	ConnectLimit    int           `toml:"connect_limit"`
	RetryDelay      time.Duration `toml:"retry_delay"`
	P2PPort         uint16        `toml:"p2p_port"`
	NumWant         uint16        `toml:"num_want"`
	Fallocate       bool          `toml:"fallocate"`
}

type Peer struct {
	DialTimeout time.Duration `toml:"dial_timeout"`
	InitTimeout time.Duration `toml:"init_timeout"`
	ReadTimeout time.Duration `toml:"read_timeout"`
}

type Config struct {
	App  Application `toml:"application"`
	Peer Peer        `toml:"peer"`
}

func Default() Config {
	d := download.DefaultOptions()

	return Config{
		App: Application{
			DownloadDir:     ".",
			MaxHTTPParallel: 100,
			MaxInFlight:     d.MaxInFlight,
			MaxRounds:       d.MaxRounds,
			ConnectLimit:    d.ConnectLimit,
			RetryDelay:      d.RetryDelay,
			P2PPort:         6881,
			NumWant:         50,
			Fallocate:       d.Preallocate,
		},
		Peer: Peer{
			DialTimeout: d.Peer.DialTimeout,
			InitTimeout: d.Peer.InitTimeout,
			ReadTimeout: d.Peer.ReadTimeout,
		},
	}
}

// LoadFromFile reads path over the defaults. An empty path returns Default().
func LoadFromFile(path string) (Config, error) {
	var cfg = Default()

	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, errgo.Wrap(err, "failed to parse config file")
	}

	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return cfg, fmt.Errorf("unknown config keys %v", undecoded)
	}

	return cfg, cfg.Validate()
}

// Validate checks limits, timeouts and the rate format.
func (c Config) Validate() error {
	var errs []error

	if c.App.MaxInFlight <= 0 {
		errs = append(errs, errors.New("application.max_in_flight must be positive"))
	}
	if c.App.MaxRounds <= 0 {
		errs = append(errs, errors.New("application.max_rounds must be positive"))
	}
	if c.App.ConnectLimit <= 0 {
		errs = append(errs, errors.New("application.connect_limit must be positive"))
	}
	if c.App.MaxHTTPParallel <= 0 {
		errs = append(errs, errors.New("application.max_http_parallel must be positive"))
	}
	if _, err := c.maxRate(); err != nil {
		errs = append(errs, err)
	}
	if c.Peer.DialTimeout <= 0 || c.Peer.InitTimeout <= 0 || c.Peer.ReadTimeout <= 0 {
		errs = append(errs, errors.New("peer timeouts must be positive"))
	}

	return errors.Join(errs...)
}

// maxRate parses max_download_rate, a size like "10MiB" per second. Empty means unlimited.
func (c Config) maxRate() (int64, error) {
	if c.App.MaxDownloadRate == "" {
		return 0, nil
	}

	n, err := units.RAMInBytes(c.App.MaxDownloadRate)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid application.max_download_rate %q", c.App.MaxDownloadRate)
	}

	return n, nil
}

// DownloadOptions converts the config to the options of a download.
func (c Config) DownloadOptions() download.Options {
	o := download.DefaultOptions()

	o.MaxInFlight = c.App.MaxInFlight
	o.MaxRounds = c.App.MaxRounds
	o.ConnectLimit = c.App.ConnectLimit
	o.RetryDelay = c.App.RetryDelay
	o.Preallocate = c.App.Fallocate
	o.MaxRate, _ = c.maxRate()
	o.Peer = peer.Options{
		DialTimeout: c.Peer.DialTimeout,
		InitTimeout: c.Peer.InitTimeout,
		ReadTimeout: c.Peer.ReadTimeout,
		BlockSize:   peer.DefaultBlockSize,
	}

	return o
}
