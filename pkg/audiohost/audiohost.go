// Package audiohost adapts the process audio backends to player.Host.
//
// Two backends are available: Ebitengine's audio package (the default) and
// oto directly. Both pull bytes through an io.Reader, so the player's device
// callback is wrapped in a reader that hands out whole frames.
package audiohost

import (
	"errors"
	"fmt"
	"time"

	"github.com/zurustar/midiplay/pkg/player"
)

// Backend names accepted by New.
const (
	BackendEbiten = "ebiten"
	BackendOto    = "oto"
)

// DefaultSampleRate is the output rate used when none is configured.
const DefaultSampleRate = 44100

// errPollInterval is how often a backend is checked for asynchronous errors.
const errPollInterval = 50 * time.Millisecond

// ErrUnsupportedConfig is returned when a backend cannot open the requested configuration.
var ErrUnsupportedConfig = errors.New("unsupported output configuration")

// Config is the requested output configuration. Zero fields select the backend default.
type Config struct {
	SampleRate int
	Channels   int
	Format     player.SampleFormat
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = 2
	}
	if c.Format == player.FormatUnknown {
		c.Format = player.FormatF32
	}
	return c
}

// Backends returns the accepted backend names.
func Backends() []string {
	return []string{BackendEbiten, BackendOto}
}

// New returns the host for the named backend.
func New(backend string, cfg Config) (player.Host, error) {
	cfg = cfg.withDefaults()
	switch backend {
	case "", BackendEbiten:
		return NewEbitenHost(cfg)
	case BackendOto:
		return NewOtoHost(cfg)
	}
	return nil, fmt.Errorf("unknown audio backend: %s", backend)
}

// callbackReader turns a device callback into the io.Reader the backends pull from.
type callbackReader struct {
	cb    player.Callback
	frame int
}

func newCallbackReader(cb player.Callback, cfg player.OutputConfig) *callbackReader {
	return &callbackReader{cb: cb, frame: cfg.Channels * cfg.Format.Size()}
}

// Read fills the largest whole-frame prefix of p. It never reports EOF: the
// stream plays silence once the sequence is done until it is closed.
func (r *callbackReader) Read(p []byte) (int, error) {
	n := len(p)
	if r.frame > 0 && n >= r.frame {
		n -= n % r.frame
	}
	r.cb(p[:n])
	return n, nil
}

// watchErrors polls errFn until stop is closed and reports the first error.
func watchErrors(errFn func() error, onErr player.ErrorFunc, stop <-chan struct{}) {
	ticker := time.NewTicker(errPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := errFn(); err != nil {
				onErr(err)
				return
			}
		}
	}
}
