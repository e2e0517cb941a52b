package midifile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zurustar/midiplay/pkg/fileutil"
	"gitlab.com/gomidi/midi/v2/smf"
)

// ErrReadInput is returned when the input MIDI file cannot be read.
var ErrReadInput = errors.New("failed to read input file")

// ErrParseInput is returned when the input bytes are not a valid Standard MIDI File.
var ErrParseInput = errors.New("failed to parse MIDI file")

// ReadFile loads and parses a MIDI file through fsys. A nil fsys resolves
// path against the working directory.
func ReadFile(fsys fileutil.FileSystem, path string) (*File, error) {
	if fsys == nil {
		fsys = fileutil.NewRealFS("")
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadInput, err)
	}
	return Parse(data)
}

// Decode reads all of r and parses it.
func Decode(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadInput, err)
	}
	return Parse(data)
}

// Parse converts SMF bytes into the event model. Track parsing is delegated to
// gomidi; the header fields are taken from the MThd chunk as written.
func Parse(data []byte) (f *File, err error) {
	chunks, err := scanChunks(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseInput, err)
	}

	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("%w: reader panic: %v", ErrParseInput, r)
		}
	}()

	var parsed []smf.Track
	if want := len(chunks.tracks) - chunks.empty(); want > 0 {
		s, err := smf.ReadFrom(bytes.NewReader(chunks.readerInput()))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParseInput, err)
		}
		if len(s.Tracks) != want {
			return nil, fmt.Errorf("%w: reader returned %d tracks, expected %d", ErrParseInput, len(s.Tracks), want)
		}
		parsed = s.Tracks
	}

	f = &File{
		Header: Header{
			Format: chunks.format,
			Timing: parseDivision(chunks.division),
		},
		Tracks: make([]Track, 0, len(chunks.tracks)),
	}

	next := 0
	for i, body := range chunks.tracks {
		if len(body) == 0 {
			f.Tracks = append(f.Tracks, make(Track, 0))
			continue
		}
		src := parsed[next]
		next++

		track := make(Track, 0, len(src))
		for j, ev := range src {
			kind, err := decodeMessage(ev.Message)
			if err != nil {
				return nil, fmt.Errorf("%w: track %d event %d: %v", ErrParseInput, i, j, err)
			}
			track = append(track, Event{Delta: ev.Delta, Kind: kind})
		}
		f.Tracks = append(f.Tracks, track)
	}
	return f, nil
}

// smfChunks is the chunk layout of an SMF byte stream.
type smfChunks struct {
	format   Format
	division uint16
	tracks   [][]byte
}

// scanChunks checks the chunk structure before the bytes reach the reader,
// which accepts a track chunk that is shorter than its declared length.
// Chunks other than MTrk are skipped.
func scanChunks(data []byte) (*smfChunks, error) {
	if len(data) < 14 || !bytes.Equal(data[:4], headerTag) {
		return nil, errors.New("missing MThd header")
	}
	headerLen := binary.BigEndian.Uint32(data[4:8])
	if headerLen < 6 || uint64(headerLen) > uint64(len(data)-8) {
		return nil, fmt.Errorf("bad MThd length %d", headerLen)
	}

	c := &smfChunks{
		format:   Format(binary.BigEndian.Uint16(data[8:10])),
		division: binary.BigEndian.Uint16(data[12:14]),
	}
	declared := int(binary.BigEndian.Uint16(data[10:12]))

	rest := data[8+headerLen:]
	for len(c.tracks) < declared {
		if len(rest) < 8 {
			return nil, fmt.Errorf("found %d of %d track chunks", len(c.tracks), declared)
		}
		size := binary.BigEndian.Uint32(rest[4:8])
		if uint64(size) > uint64(len(rest)-8) {
			return nil, fmt.Errorf("chunk %q declares %d bytes, %d present", rest[:4], size, len(rest)-8)
		}
		if bytes.Equal(rest[:4], trackTag) {
			c.tracks = append(c.tracks, rest[8:8+size])
		}
		rest = rest[8+size:]
	}
	return c, nil
}

func (c *smfChunks) empty() int {
	n := 0
	for _, t := range c.tracks {
		if len(t) == 0 {
			n++
		}
	}
	return n
}

// readerInput rebuilds the stream for gomidi: empty track chunks are left out
// and a timecode division is replaced by a metrical one, since the reader
// computes absolute times with metrical ticks only. The real division is
// restored from the header afterwards.
func (c *smfChunks) readerInput() []byte {
	division := c.division
	if division&0x8000 != 0 {
		division = 960
	}

	out := append([]byte(nil), headerTag...)
	out = binary.BigEndian.AppendUint32(out, 6)
	out = binary.BigEndian.AppendUint16(out, uint16(c.format))
	out = binary.BigEndian.AppendUint16(out, uint16(len(c.tracks)-c.empty()))
	out = binary.BigEndian.AppendUint16(out, division)
	for _, body := range c.tracks {
		if len(body) == 0 {
			continue
		}
		out = append(out, trackTag...)
		out = binary.BigEndian.AppendUint32(out, uint32(len(body)))
		out = append(out, body...)
	}
	return out
}

func parseDivision(v uint16) Timing {
	if v&0x8000 == 0 {
		return Metrical(v)
	}
	return Timecode{
		FPS:      FPS(uint8(-int8(v >> 8))),
		Subframe: uint8(v),
	}
}

// decodeMessage converts one message as stored by the reader: the status byte
// is always present (running status already expanded).
func decodeMessage(msg []byte) (Kind, error) {
	if len(msg) == 0 {
		return nil, errors.New("empty message")
	}

	status := msg[0]
	switch {
	case status == 0xFF:
		if len(msg) < 2 {
			return nil, errors.New("truncated meta event")
		}
		return Meta{Message: decodeMeta(msg[1], metaPayload(msg[2:]))}, nil
	case status == 0xF0:
		return SysEx(clone(msg[1:])), nil
	case status == 0xF7:
		return Escape(clone(msg[1:])), nil
	case status >= 0x80 && status < 0xF0:
		return decodeChannel(status, msg[1:])
	}
	return nil, fmt.Errorf("unsupported status byte 0x%02X", status)
}

// metaPayload strips the length prefix of a meta event body when present.
func metaPayload(rest []byte) []byte {
	if n, size, ok := readVLQ(rest); ok && size+int(n) == len(rest) {
		return rest[size:]
	}
	return rest
}

func decodeChannel(status byte, data []byte) (Kind, error) {
	want := 2
	if kind := status & 0xF0; kind == 0xC0 || kind == 0xD0 {
		want = 1
	}
	if len(data) < want {
		return nil, fmt.Errorf("status 0x%02X needs %d data bytes, got %d", status, want, len(data))
	}

	var m Message
	switch status & 0xF0 {
	case 0x80:
		m = NoteOff{Key: data[0], Vel: data[1]}
	case 0x90:
		m = NoteOn{Key: data[0], Vel: data[1]}
	case 0xA0:
		m = Aftertouch{Key: data[0], Vel: data[1]}
	case 0xB0:
		m = Controller{Controller: data[0], Value: data[1]}
	case 0xC0:
		m = ProgramChange{Program: data[0]}
	case 0xD0:
		m = ChannelAftertouch{Vel: data[0]}
	case 0xE0:
		raw := int16(data[0]&0x7F) | int16(data[1]&0x7F)<<7
		m = PitchBend{Bend: raw - 8192}
	}
	return Midi{Channel: status & 0x0F, Message: m}, nil
}

func decodeMeta(typ byte, data []byte) MetaMessage {
	switch typ {
	case MetaTempo:
		if len(data) == 3 {
			return Tempo(uint32(data[0])<<16 | uint32(data[1])<<8 | uint32(data[2]))
		}
	case MetaEndOfTrack:
		if len(data) == 0 {
			return EndOfTrack{}
		}
	case MetaTimeSignature:
		if len(data) == 4 {
			return TimeSignature{
				Numerator:               data[0],
				DenominatorPow2:         data[1],
				ClocksPerClick:          data[2],
				ThirtySecondsPerQuarter: data[3],
			}
		}
	case MetaKeySignature:
		if len(data) == 2 {
			return KeySignature{Key: int8(data[0]), Major: data[1] == 0}
		}
	case MetaTrackName:
		return TrackName(clone(data))
	case MetaText:
		return Text(clone(data))
	case MetaCopyright:
		return Copyright(clone(data))
	}
	return RawMeta{Type: typ, Data: clone(data)}
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
