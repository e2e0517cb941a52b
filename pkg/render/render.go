// Package render feeds the MIDI event model to the go-meltysynth synthesizer.
//
// The synthesizer consumes Standard MIDI File bytes, so the model is encoded
// with the same encoder used for writing files and parsed back by meltysynth.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/zurustar/midiplay/pkg/midifile"
)

// ErrParseSoundFont is returned when the SoundFont bytes are rejected by the synthesizer.
var ErrParseSoundFont = errors.New("failed to parse SoundFont")

// ErrLoadSequence is returned when the encoded sequence cannot be loaded.
var ErrLoadSequence = errors.New("failed to load MIDI sequence")

// Encode returns the SMF bytes handed to the synthesizer.
func Encode(f *midifile.File) []byte {
	return midifile.Encode(f)
}

// LoadMidiFile encodes f and parses it into a meltysynth MidiFile.
func LoadMidiFile(f *midifile.File) (*meltysynth.MidiFile, error) {
	midi, err := meltysynth.NewMidiFile(bytes.NewReader(Encode(f)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadSequence, err)
	}
	return midi, nil
}

// LoadSoundFont parses SoundFont bytes.
func LoadSoundFont(data []byte) (*meltysynth.SoundFont, error) {
	sf, err := meltysynth.NewSoundFont(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseSoundFont, err)
	}
	return sf, nil
}

// Sequencer plays one MIDI file through a synthesizer, non-looping, from time zero.
// It is not safe for concurrent use; the player guards it with a mutex.
type Sequencer struct {
	seq        *meltysynth.MidiFileSequencer
	sampleRate int
	length     time.Duration
	rendered   int64
}

// Synthesizer is a SoundFont loaded at a fixed output sample rate.
type Synthesizer struct {
	synth      *meltysynth.Synthesizer
	sampleRate int
}

// NewSynthesizer parses the SoundFont and creates a synthesizer producing
// samples at sampleRate.
func NewSynthesizer(soundFont []byte, sampleRate int) (*Synthesizer, error) {
	sf, err := LoadSoundFont(soundFont)
	if err != nil {
		return nil, err
	}

	synth, err := meltysynth.NewSynthesizer(sf, meltysynth.NewSynthesizerSettings(int32(sampleRate)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseSoundFont, err)
	}
	return &Synthesizer{synth: synth, sampleRate: sampleRate}, nil
}

// SampleRate returns the output sample rate.
func (s *Synthesizer) SampleRate() int {
	return s.sampleRate
}

// Load encodes f and starts sequencing it from time zero without looping.
func (s *Synthesizer) Load(f *midifile.File) (*Sequencer, error) {
	midi, err := LoadMidiFile(f)
	if err != nil {
		return nil, err
	}

	seq := meltysynth.NewMidiFileSequencer(s.synth)
	seq.Play(midi, false)
	return &Sequencer{
		seq:        seq,
		sampleRate: s.sampleRate,
		length:     midi.GetLength(),
	}, nil
}

// NewSequencer is NewSynthesizer followed by Load.
func NewSequencer(soundFont []byte, sampleRate int, f *midifile.File) (*Sequencer, error) {
	synth, err := NewSynthesizer(soundFont, sampleRate)
	if err != nil {
		return nil, err
	}
	return synth.Load(f)
}

// Render fills left and right with the next block of samples.
func (s *Sequencer) Render(left, right []float32) {
	s.seq.Render(left, right)
	s.rendered += int64(min(len(left), len(right)))
}

// Position returns the amount of audio rendered so far.
func (s *Sequencer) Position() time.Duration {
	return samplesToDuration(s.rendered, s.sampleRate)
}

// Length returns the duration of the loaded sequence.
func (s *Sequencer) Length() time.Duration {
	return s.length
}

// EndOfSequence reports whether every event of the sequence has been rendered.
func (s *Sequencer) EndOfSequence() bool {
	return s.Position() >= s.length
}

func samplesToDuration(samples int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
