// Package player streams a MIDI event model to the default audio output device.
//
// Playback is a single blocking run: the device is acquired, the SoundFont and
// the sequence are loaded into the synthesis engine, and a device callback
// pulls rendered blocks until the sequence ends. There is no cancellation.
package player

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zurustar/midiplay/pkg/logger"
	"github.com/zurustar/midiplay/pkg/midifile"
	"github.com/zurustar/midiplay/pkg/render"
)

// ErrAudioPlayback is wrapped by every setup failure of Run.
var ErrAudioPlayback = errors.New("audio playback failed")

const (
	// DefaultBlockSize is the number of samples per channel rendered at once.
	DefaultBlockSize = 4096
	// DefaultPollInterval is how often the foreground checks for the end of the sequence.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultSettle is the wait after the end of the sequence for queued device buffers to drain.
	DefaultSettle = 500 * time.Millisecond
)

// State is the lifecycle stage of a Player.
type State int32

const (
	Uninitialized State = iota
	DeviceAcquired
	EngineLoaded
	SequenceLoaded
	Streaming
	Draining
	Complete
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case DeviceAcquired:
		return "device-acquired"
	case EngineLoaded:
		return "engine-loaded"
	case SequenceLoaded:
		return "sequence-loaded"
	case Streaming:
		return "streaming"
	case Draining:
		return "draining"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Player plays one MIDI file once.
type Player struct {
	file      *midifile.File
	soundFont []byte

	host         Host
	engine       EngineFactory
	log          *slog.Logger
	blockSize    int
	pollInterval time.Duration
	settle       time.Duration

	state atomic.Int32
}

// Option configures a Player.
type Option func(*Player)

// WithHost sets the audio host. It is required unless the caller only
// wants setup to fail with ErrAudioPlayback.
func WithHost(h Host) Option {
	return func(p *Player) { p.host = h }
}

// WithEngine replaces the go-meltysynth engine.
func WithEngine(f EngineFactory) Option {
	return func(p *Player) { p.engine = f }
}

// WithLogger sets the diagnostic sink.
func WithLogger(l *slog.Logger) Option {
	return func(p *Player) { p.log = l }
}

// WithBlockSize sets the number of samples rendered per refill.
func WithBlockSize(n int) Option {
	return func(p *Player) {
		if n > 0 {
			p.blockSize = n
		}
	}
}

// WithPollInterval sets the end-of-sequence polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.pollInterval = d
		}
	}
}

// WithSettle sets the drain wait after the end of the sequence.
func WithSettle(d time.Duration) Option {
	return func(p *Player) { p.settle = d }
}

// New creates a Player for f using the given SoundFont bytes.
func New(f *midifile.File, soundFont []byte, opts ...Option) *Player {
	p := &Player{
		file:         f,
		soundFont:    soundFont,
		engine:       meltysynthEngine,
		log:          logger.GetLogger(),
		blockSize:    DefaultBlockSize,
		pollInterval: DefaultPollInterval,
		settle:       DefaultSettle,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the current lifecycle stage. It is safe to call while Run is executing.
func (p *Player) State() State {
	return State(p.state.Load())
}

func (p *Player) setState(s State) {
	p.state.Store(int32(s))
	p.log.Debug("Player state changed", "state", s)
}

// Run plays the file to the end and returns once the device has drained.
// Any setup failure aborts before sound is produced and is returned wrapped
// in ErrAudioPlayback. Errors after the stream has started are only logged.
func (p *Player) Run() error {
	if p.host == nil {
		return fmt.Errorf("%w: no audio host configured", ErrAudioPlayback)
	}

	device, err := p.host.DefaultOutputDevice()
	if err != nil {
		return fmt.Errorf("%w: no output device available: %w", ErrAudioPlayback, err)
	}
	cfg, err := device.DefaultOutputConfig()
	if err != nil {
		return fmt.Errorf("%w: failed to get default output config: %w", ErrAudioPlayback, err)
	}
	p.setState(DeviceAcquired)
	p.log.Info("Output device acquired",
		"device", device.Name(),
		"sampleRate", cfg.SampleRate,
		"channels", cfg.Channels,
		"format", cfg.Format)

	engine, err := p.engine(p.soundFont, cfg.SampleRate)
	if err != nil {
		return fmt.Errorf("%w: failed to load soundfont: %w", ErrAudioPlayback, err)
	}
	p.setState(EngineLoaded)

	synth, err := engine.Load(p.file)
	if err != nil {
		return fmt.Errorf("%w: failed to load MIDI sequence: %w", ErrAudioPlayback, err)
	}
	p.setState(SequenceLoaded)

	shared := &sharedSynth{synth: synth, log: p.log}
	cb, err := newCallback(cfg, newBlockSource(shared, p.blockSize))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAudioPlayback, err)
	}

	stream, err := device.BuildOutputStream(cfg, cb, func(err error) {
		p.log.Error("Stream error", "error", err)
		shared.fail()
	})
	if err != nil {
		return fmt.Errorf("%w: failed to build output stream: %w", ErrAudioPlayback, err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			p.log.Warn("Failed to close output stream", "error", err)
		}
	}()

	if err := stream.Play(); err != nil {
		return fmt.Errorf("%w: failed to play stream: %w", ErrAudioPlayback, err)
	}
	p.setState(Streaming)
	start := time.Now()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for !shared.endOfSequence() {
		<-ticker.C
	}

	p.setState(Draining)
	time.Sleep(p.settle)
	p.setState(Complete)

	p.log.Info("Playback complete", "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// meltysynthEngine is the default EngineFactory.
func meltysynthEngine(soundFont []byte, sampleRate int) (Engine, error) {
	synth, err := render.NewSynthesizer(soundFont, sampleRate)
	if err != nil {
		return nil, err
	}
	return renderEngine{synth}, nil
}

type renderEngine struct {
	synth *render.Synthesizer
}

func (e renderEngine) Load(f *midifile.File) (Synth, error) {
	seq, err := e.synth.Load(f)
	if err != nil {
		return nil, err
	}
	return seq, nil
}
