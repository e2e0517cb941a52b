package player

import (
	"fmt"

	"github.com/zurustar/midiplay/pkg/midifile"
)

// SampleFormat is the native sample representation of an output device.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatF32                  // 32-bit float, little-endian
	FormatI16                  // 16-bit signed integer, little-endian
	FormatU16                  // 16-bit unsigned integer, little-endian
)

func (f SampleFormat) String() string {
	switch f {
	case FormatF32:
		return "f32"
	case FormatI16:
		return "i16"
	case FormatU16:
		return "u16"
	default:
		return "unknown"
	}
}

// Size returns the number of bytes per sample, or 0 for FormatUnknown.
func (f SampleFormat) Size() int {
	switch f {
	case FormatF32:
		return 4
	case FormatI16, FormatU16:
		return 2
	default:
		return 0
	}
}

// ParseSampleFormat converts a format name ("f32", "i16", "u16") to a SampleFormat.
func ParseSampleFormat(name string) (SampleFormat, error) {
	for _, f := range []SampleFormat{FormatF32, FormatI16, FormatU16} {
		if f.String() == name {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("unknown sample format: %s", name)
}

// OutputConfig is the native configuration of an output device.
type OutputConfig struct {
	SampleRate int
	Channels   int
	Format     SampleFormat
}

// Callback fills one device buffer with interleaved frames in the device's
// native little-endian representation. It is invoked on the device's thread.
type Callback func(out []byte)

// ErrorFunc receives stream errors raised after the stream was built.
type ErrorFunc func(err error)

// Host is the audio system of the machine.
type Host interface {
	DefaultOutputDevice() (Device, error)
}

// Device is an audio output device.
type Device interface {
	Name() string
	DefaultOutputConfig() (OutputConfig, error)
	BuildOutputStream(cfg OutputConfig, cb Callback, onErr ErrorFunc) (Stream, error)
}

// Stream is a built output stream. Play starts pulling from the callback.
type Stream interface {
	Play() error
	Close() error
}

// Synth is a sequencer producing stereo float samples.
type Synth interface {
	// Render fills left and right with the next block of samples.
	Render(left, right []float32)
	// EndOfSequence reports whether the whole sequence has been rendered.
	EndOfSequence() bool
}

// Engine is a synthesizer with a SoundFont loaded, ready to sequence a file.
type Engine interface {
	Load(f *midifile.File) (Synth, error)
}

// EngineFactory loads SoundFont bytes into a synthesis engine running at sampleRate.
type EngineFactory func(soundFont []byte, sampleRate int) (Engine, error)
