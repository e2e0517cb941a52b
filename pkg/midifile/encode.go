package midifile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrWriteOutput is returned when the encoded file cannot be written.
var ErrWriteOutput = errors.New("failed to write MIDI file")

var (
	headerTag = []byte("MThd")
	trackTag  = []byte("MTrk")
)

// headerLength is the fixed length of the MThd body.
const headerLength = 6

// Options controls encoder policies that are not dictated by the file format.
type Options struct {
	// DropUnknownMeta discards RawMeta events instead of writing them through.
	// The delta of a dropped event is carried over to the next event so that
	// the timing of the rest of the track is unchanged.
	DropUnknownMeta bool
}

// Encoder serializes a File into SMF bytes. The zero value is ready to use.
type Encoder struct {
	opts Options
}

// NewEncoder creates an Encoder with the given options.
func NewEncoder(opts Options) *Encoder {
	return &Encoder{opts: opts}
}

// Encode serializes f with the default options.
func Encode(f *File) []byte {
	var e Encoder
	return e.Encode(f)
}

// EncodeTrack serializes a single track body (without the MTrk chunk header)
// with the default options.
func EncodeTrack(t Track) []byte {
	var e Encoder
	return e.appendTrackBody(nil, t)
}

// Encode serializes f. It never fails: the model is written as-is, see Validate
// for contract checks.
func (e *Encoder) Encode(f *File) []byte {
	out := make([]byte, 0, 14+estimateSize(f))

	out = append(out, headerTag...)
	out = binary.BigEndian.AppendUint32(out, headerLength)
	out = binary.BigEndian.AppendUint16(out, uint16(f.Header.Format))
	out = binary.BigEndian.AppendUint16(out, uint16(len(f.Tracks)))
	out = binary.BigEndian.AppendUint16(out, timingField(f.Header.Timing))

	var body []byte
	for _, t := range f.Tracks {
		body = e.appendTrackBody(body[:0], t)
		out = append(out, trackTag...)
		out = binary.BigEndian.AppendUint32(out, uint32(len(body)))
		out = append(out, body...)
	}
	return out
}

// timingField encodes the header division. A nil timing is written as 0.
func timingField(t Timing) uint16 {
	if t == nil {
		return 0
	}
	return t.division()
}

func estimateSize(f *File) int {
	n := 0
	for _, t := range f.Tracks {
		n += 8 + len(t)*4
	}
	return n
}

func (e *Encoder) appendTrackBody(dst []byte, t Track) []byte {
	var running byte // 0 means no running status
	var carry uint32

	for _, ev := range t {
		delta := carryDelta(ev.Delta, carry)
		carry = 0

		switch k := ev.Kind.(type) {
		case Midi:
			if k.Message == nil {
				carry = delta
				continue
			}
			dst = AppendVLQ(dst, delta)
			status := k.Message.status() | k.Channel&0x0F
			if status != running {
				dst = append(dst, status)
				running = status
			}
			dst = appendChannelData(dst, k.Message)

		case Meta:
			running = 0
			if _, ok := k.Message.(RawMeta); ok && e.opts.DropUnknownMeta {
				carry = delta
				continue
			}
			dst = AppendVLQ(dst, delta)
			dst = appendMeta(dst, k.Message)

		case SysEx:
			running = 0
			dst = AppendVLQ(dst, delta)
			dst = appendSized(append(dst, 0xF0), k)

		case Escape:
			running = 0
			dst = AppendVLQ(dst, delta)
			dst = appendSized(append(dst, 0xF7), k)

		default:
			// Unknown kinds have no encoding; keep their time.
			carry = delta
		}
	}
	return dst
}

// carryDelta adds the time of skipped events to the next one, saturating at
// MaxVLQ.
func carryDelta(delta, carry uint32) uint32 {
	if carry == 0 {
		return delta
	}
	if sum := uint64(delta) + uint64(carry); sum < MaxVLQ {
		return uint32(sum)
	}
	return MaxVLQ
}

func appendChannelData(dst []byte, m Message) []byte {
	switch m := m.(type) {
	case NoteOff:
		return append(dst, m.Key, m.Vel)
	case NoteOn:
		return append(dst, m.Key, m.Vel)
	case Aftertouch:
		return append(dst, m.Key, m.Vel)
	case Controller:
		return append(dst, m.Controller, m.Value)
	case ProgramChange:
		return append(dst, m.Program)
	case ChannelAftertouch:
		return append(dst, m.Vel)
	case PitchBend:
		v := uint16(int32(m.Bend) + 8192)
		return append(dst, byte(v&0x7F), byte(v>>7&0x7F))
	}
	return dst
}

func appendMeta(dst []byte, m MetaMessage) []byte {
	dst = append(dst, 0xFF)
	switch m := m.(type) {
	case Tempo:
		return append(dst, MetaTempo, 3, byte(m>>16), byte(m>>8), byte(m))
	case EndOfTrack:
		return append(dst, MetaEndOfTrack, 0)
	case TimeSignature:
		return append(dst, MetaTimeSignature, 4,
			m.Numerator, m.DenominatorPow2, m.ClocksPerClick, m.ThirtySecondsPerQuarter)
	case KeySignature:
		// Mode byte is 0 for major, 1 for minor.
		mode := byte(1)
		if m.Major {
			mode = 0
		}
		return append(dst, MetaKeySignature, 2, byte(m.Key), mode)
	case TrackName:
		return appendSized(append(dst, MetaTrackName), m)
	case Text:
		return appendSized(append(dst, MetaText), m)
	case Copyright:
		return appendSized(append(dst, MetaText), m)
	case RawMeta:
		return appendSized(append(dst, m.Type), m.Data)
	}
	// Unreachable for the closed set above; write an empty text event so the
	// preceding delta stays well-formed.
	return append(dst, MetaText, 0)
}

func appendSized(dst, data []byte) []byte {
	dst = AppendVLQ(dst, uint32(len(data)))
	return append(dst, data...)
}

// Write encodes f to w.
func Write(w io.Writer, f *File) (int64, error) {
	n, err := w.Write(Encode(f))
	return int64(n), err
}

// WriteFile encodes f and writes it to path, replacing any existing file.
func WriteFile(path string, f *File) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}

	bw := bufio.NewWriter(out)
	if _, err := Write(bw, f); err != nil {
		out.Close()
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	if err := bw.Flush(); err != nil {
		out.Close()
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	return nil
}
