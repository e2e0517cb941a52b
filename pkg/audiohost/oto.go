package audiohost

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/zurustar/midiplay/pkg/player"
)

var (
	// oto allows only one context per process.
	otoContext     *oto.Context
	otoContextOpts oto.NewContextOptions
	otoContextErr  error
	otoContextOnce sync.Once
)

// getOtoContext creates the process context on first use and waits until it is ready.
func getOtoContext(opts oto.NewContextOptions) (*oto.Context, error) {
	otoContextOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&opts)
		if err != nil {
			otoContextErr = err
			return
		}
		<-ready
		otoContext = ctx
		otoContextOpts = opts
	})
	if otoContextErr != nil {
		return nil, otoContextErr
	}
	if otoContextOpts.SampleRate != opts.SampleRate ||
		otoContextOpts.ChannelCount != opts.ChannelCount ||
		otoContextOpts.Format != opts.Format {
		return nil, fmt.Errorf("%w: oto context already opened with another configuration", ErrUnsupportedConfig)
	}
	return otoContext, nil
}

// otoFormat maps a sample format to oto's.
func otoFormat(f player.SampleFormat) (oto.Format, error) {
	switch f {
	case player.FormatF32:
		return oto.FormatFloat32LE, nil
	case player.FormatI16:
		return oto.FormatSignedInt16LE, nil
	}
	return 0, fmt.Errorf("%w: oto backend cannot play %s samples", ErrUnsupportedConfig, f)
}

// OtoHost plays through an oto context. Mono and stereo are supported.
type OtoHost struct {
	cfg  player.OutputConfig
	opts oto.NewContextOptions
}

// NewOtoHost validates cfg against what oto can play.
func NewOtoHost(cfg Config) (*OtoHost, error) {
	cfg = cfg.withDefaults()
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return nil, fmt.Errorf("%w: oto backend plays 1 or 2 channels, got %d", ErrUnsupportedConfig, cfg.Channels)
	}
	format, err := otoFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	return &OtoHost{
		cfg: player.OutputConfig{
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
			Format:     cfg.Format,
		},
		opts: oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       format,
		},
	}, nil
}

func (h *OtoHost) DefaultOutputDevice() (player.Device, error) {
	ctx, err := getOtoContext(h.opts)
	if err != nil {
		return nil, err
	}
	return &otoDevice{ctx: ctx, cfg: h.cfg}, nil
}

type otoDevice struct {
	ctx *oto.Context
	cfg player.OutputConfig
}

func (d *otoDevice) Name() string {
	return "oto"
}

func (d *otoDevice) DefaultOutputConfig() (player.OutputConfig, error) {
	return d.cfg, nil
}

func (d *otoDevice) BuildOutputStream(cfg player.OutputConfig, cb player.Callback, onErr player.ErrorFunc) (player.Stream, error) {
	if cfg != d.cfg {
		return nil, fmt.Errorf("%w: device opened as %+v", ErrUnsupportedConfig, d.cfg)
	}
	p := d.ctx.NewPlayer(newCallbackReader(cb, cfg))
	return &otoStream{player: p, onErr: onErr, stop: make(chan struct{})}, nil
}

type otoStream struct {
	player *oto.Player
	onErr  player.ErrorFunc
	stop   chan struct{}
	once   sync.Once
}

func (s *otoStream) Play() error {
	s.player.Play()
	go watchErrors(s.player.Err, s.onErr, s.stop)
	return nil
}

func (s *otoStream) Close() error {
	s.once.Do(func() { close(s.stop) })
	return s.player.Close()
}
