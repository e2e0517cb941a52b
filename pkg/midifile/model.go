// Package midifile holds the Standard MIDI File event model and its binary encoder.
//
// The model mirrors the structure of an SMF: a header describing the file
// format and timing, followed by tracks of delta-timed events. It is built
// once (by Decode or by the caller) and treated as read-only afterwards.
package midifile

// Format is the SMF format code written in the header chunk.
type Format uint16

const (
	// SingleTrack is format 0: one track carrying every channel.
	SingleTrack Format = 0
	// Parallel is format 1: simultaneous tracks sharing one tempo map.
	Parallel Format = 1
	// Sequential is format 2: independent single-track patterns.
	Sequential Format = 2
)

func (f Format) String() string {
	switch f {
	case SingleTrack:
		return "single-track"
	case Parallel:
		return "parallel"
	case Sequential:
		return "sequential"
	default:
		return "unknown"
	}
}

// Timing is the division field of the header: either Metrical or Timecode.
type Timing interface {
	division() uint16
}

// Metrical is the number of ticks per quarter note.
type Metrical uint16

func (m Metrical) division() uint16 {
	return uint16(m)
}

// FPS is the SMPTE frame rate of a Timecode division.
type FPS uint8

const (
	FPS24 FPS = 24
	FPS25 FPS = 25
	FPS29 FPS = 29 // 30 drop-frame
	FPS30 FPS = 30
)

// Timecode expresses time as SMPTE frames per second and ticks per frame.
type Timecode struct {
	FPS      FPS
	Subframe uint8
}

// division packs the negative frame rate into the high byte.
func (t Timecode) division() uint16 {
	return uint16(uint8(-int8(t.FPS)))<<8 | uint16(t.Subframe)
}

// Header is the content of the MThd chunk, minus the track count.
type Header struct {
	Format Format
	Timing Timing
}

// File is a complete SMF: header plus ordered tracks.
type File struct {
	Header Header
	Tracks []Track
}

// Track is an ordered list of events. Order encodes time through the deltas.
type Track []Event

// Event is one track event, timed relative to the previous event of the same track.
type Event struct {
	Delta uint32
	Kind  Kind
}

// Kind is the payload of an event: Midi, Meta, SysEx or Escape.
type Kind interface {
	isKind()
}

// Midi is a channel voice message on a channel in 0-15.
type Midi struct {
	Channel uint8
	Message Message
}

// Meta is a file-only meta event.
type Meta struct {
	Message MetaMessage
}

// SysEx is a system exclusive message; the bytes follow the F0 status verbatim.
type SysEx []byte

// Escape is an F7 escape sequence; the bytes are written verbatim.
type Escape []byte

func (Midi) isKind()   {}
func (Meta) isKind()   {}
func (SysEx) isKind()  {}
func (Escape) isKind() {}

// Message is a channel voice message.
type Message interface {
	// status returns the high nibble of the status byte.
	status() byte
}

type (
	NoteOff struct{ Key, Vel uint8 }
	NoteOn  struct{ Key, Vel uint8 }
	// Aftertouch is polyphonic key pressure.
	Aftertouch        struct{ Key, Vel uint8 }
	Controller        struct{ Controller, Value uint8 }
	ProgramChange     struct{ Program uint8 }
	ChannelAftertouch struct{ Vel uint8 }
	// PitchBend is signed around the center: -8192 to 8191.
	PitchBend struct{ Bend int16 }
)

func (NoteOff) status() byte           { return 0x80 }
func (NoteOn) status() byte            { return 0x90 }
func (Aftertouch) status() byte        { return 0xA0 }
func (Controller) status() byte        { return 0xB0 }
func (ProgramChange) status() byte     { return 0xC0 }
func (ChannelAftertouch) status() byte { return 0xD0 }
func (PitchBend) status() byte         { return 0xE0 }

// Meta event type codes.
const (
	MetaSequenceNumber    byte = 0x00
	MetaText              byte = 0x01
	MetaCopyright         byte = 0x02
	MetaTrackName         byte = 0x03
	MetaInstrumentName    byte = 0x04
	MetaLyric             byte = 0x05
	MetaMarker            byte = 0x06
	MetaCuePoint          byte = 0x07
	MetaProgramName       byte = 0x08
	MetaDeviceName        byte = 0x09
	MetaChannelPrefix     byte = 0x20
	MetaPortPrefix        byte = 0x21
	MetaEndOfTrack        byte = 0x2F
	MetaTempo             byte = 0x51
	MetaSMPTEOffset       byte = 0x54
	MetaTimeSignature     byte = 0x58
	MetaKeySignature      byte = 0x59
	MetaSequencerSpecific byte = 0x7F
)

// MetaMessage is the content of a Meta event.
type MetaMessage interface {
	isMeta()
}

// Tempo is microseconds per quarter note. Only the low 24 bits are encodable.
type Tempo uint32

// EndOfTrack terminates every track.
type EndOfTrack struct{}

// TimeSignature is the time signature meta event. DenominatorPow2 is the
// power of two of the denominator (2 means a quarter note).
type TimeSignature struct {
	Numerator               uint8
	DenominatorPow2         uint8
	ClocksPerClick          uint8
	ThirtySecondsPerQuarter uint8
}

// KeySignature holds the number of sharps (positive) or flats (negative).
type KeySignature struct {
	Key   int8
	Major bool
}

type (
	TrackName []byte
	Text      []byte
	Copyright []byte
)

// RawMeta carries any other meta type verbatim.
type RawMeta struct {
	Type byte
	Data []byte
}

func (Tempo) isMeta()         {}
func (EndOfTrack) isMeta()    {}
func (TimeSignature) isMeta() {}
func (KeySignature) isMeta()  {}
func (TrackName) isMeta()     {}
func (Text) isMeta()          {}
func (Copyright) isMeta()     {}
func (RawMeta) isMeta()       {}

// EndOfTrackEvent is a convenience for the mandatory last event of a track.
func EndOfTrackEvent(delta uint32) Event {
	return Event{Delta: delta, Kind: Meta{Message: EndOfTrack{}}}
}
