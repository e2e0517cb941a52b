package audiohost

import (
	"fmt"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/zurustar/midiplay/pkg/player"
)

var (
	// Ebitengine allows only one audio context per process.
	ebitenContext     *audio.Context
	ebitenContextRate int
	ebitenContextMu   sync.Mutex
)

// getEbitenContext returns the process audio context, creating it at sampleRate if necessary.
func getEbitenContext(sampleRate int) (*audio.Context, error) {
	ebitenContextMu.Lock()
	defer ebitenContextMu.Unlock()

	if ebitenContext == nil {
		ebitenContext = audio.NewContext(sampleRate)
		ebitenContextRate = sampleRate
	}
	if ebitenContextRate != sampleRate {
		return nil, fmt.Errorf("%w: audio context already running at %d Hz", ErrUnsupportedConfig, ebitenContextRate)
	}
	return ebitenContext, nil
}

// EbitenHost plays through Ebitengine's audio package. Output is always stereo.
type EbitenHost struct {
	cfg player.OutputConfig
}

// NewEbitenHost validates cfg against what Ebitengine can play.
func NewEbitenHost(cfg Config) (*EbitenHost, error) {
	cfg = cfg.withDefaults()
	if cfg.Channels != 2 {
		return nil, fmt.Errorf("%w: ebiten backend is stereo only, got %d channels", ErrUnsupportedConfig, cfg.Channels)
	}
	if cfg.Format != player.FormatF32 && cfg.Format != player.FormatI16 {
		return nil, fmt.Errorf("%w: ebiten backend cannot play %s samples", ErrUnsupportedConfig, cfg.Format)
	}
	return &EbitenHost{cfg: player.OutputConfig{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		Format:     cfg.Format,
	}}, nil
}

func (h *EbitenHost) DefaultOutputDevice() (player.Device, error) {
	ctx, err := getEbitenContext(h.cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	return &ebitenDevice{ctx: ctx, cfg: h.cfg}, nil
}

type ebitenDevice struct {
	ctx *audio.Context
	cfg player.OutputConfig
}

func (d *ebitenDevice) Name() string {
	return "ebiten"
}

func (d *ebitenDevice) DefaultOutputConfig() (player.OutputConfig, error) {
	return d.cfg, nil
}

func (d *ebitenDevice) BuildOutputStream(cfg player.OutputConfig, cb player.Callback, _ player.ErrorFunc) (player.Stream, error) {
	if cfg != d.cfg {
		return nil, fmt.Errorf("%w: device opened as %+v", ErrUnsupportedConfig, d.cfg)
	}

	src := newCallbackReader(cb, cfg)
	var (
		p   *audio.Player
		err error
	)
	switch cfg.Format {
	case player.FormatF32:
		p, err = d.ctx.NewPlayerF32(src)
	case player.FormatI16:
		p, err = d.ctx.NewPlayer(src)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfig, cfg.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create audio player: %w", err)
	}
	return &ebitenStream{player: p}, nil
}

// ebitenStream has no asynchronous error source: Ebitengine surfaces audio
// driver errors through its game loop, which this program does not run.
type ebitenStream struct {
	player *audio.Player
}

func (s *ebitenStream) Play() error {
	s.player.Play()
	return nil
}

func (s *ebitenStream) Close() error {
	return s.player.Close()
}
