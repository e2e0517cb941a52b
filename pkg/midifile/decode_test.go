package midifile

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zurustar/midiplay/pkg/fileutil"
	"gitlab.com/gomidi/midi/v2/smf"
)

// randomTrack builds a track of n events that a conformant reader reproduces
// exactly: no zero-velocity note-ons, no Copyright (written as Text) and no
// SysEx (reader-specific framing).
func randomTrack(rng *rand.Rand, n int) Track {
	track := make(Track, 0, n+1)
	for range n {
		delta := uint32(rng.Intn(2000))
		if rng.Intn(10) == 0 {
			delta = uint32(rng.Intn(MaxVLQ))
		}
		ch := uint8(rng.Intn(16))
		d1 := uint8(rng.Intn(128))
		d2 := uint8(rng.Intn(127) + 1)

		var kind Kind
		switch rng.Intn(12) {
		case 0:
			kind = Midi{Channel: ch, Message: NoteOff{Key: d1, Vel: d2 - 1}}
		case 1, 2, 3:
			kind = Midi{Channel: ch, Message: NoteOn{Key: d1, Vel: d2}}
		case 4:
			kind = Midi{Channel: ch, Message: Aftertouch{Key: d1, Vel: d2}}
		case 5:
			kind = Midi{Channel: ch, Message: Controller{Controller: d1, Value: d2}}
		case 6:
			kind = Midi{Channel: ch, Message: ProgramChange{Program: d1}}
		case 7:
			kind = Midi{Channel: ch, Message: ChannelAftertouch{Vel: d1}}
		case 8:
			kind = Midi{Channel: ch, Message: PitchBend{Bend: int16(rng.Intn(16384) - 8192)}}
		case 9:
			kind = Meta{Message: Tempo(rng.Intn(0xFFFFFF) + 1)}
		case 10:
			kind = Meta{Message: KeySignature{Key: int8(rng.Intn(15) - 7), Major: rng.Intn(2) == 0}}
		default:
			kind = Meta{Message: TimeSignature{uint8(rng.Intn(12) + 1), uint8(rng.Intn(5)), 24, 8}}
		}
		track = append(track, Event{Delta: delta, Kind: kind})
	}
	return append(track, EndOfTrackEvent(uint32(rng.Intn(100))))
}

func TestRoundTripThroughReader(t *testing.T) {
	f := &File{
		Header: Header{Format: Parallel, Timing: Metrical(960)},
		Tracks: []Track{
			{
				{0, Meta{Message: TrackName("Conductor")}},
				{0, Meta{Message: Tempo(500000)}},
				{0, Meta{Message: TimeSignature{3, 2, 24, 8}}},
				{0, Meta{Message: KeySignature{Key: -2, Major: false}}},
				{0, Meta{Message: RawMeta{Type: MetaMarker, Data: []byte("Intro")}}},
				EndOfTrackEvent(0),
			},
			{
				{0, Meta{Message: Text("melody")}},
				{0, Midi{Channel: 3, Message: ProgramChange{Program: 40}}},
				{0, Midi{Channel: 3, Message: NoteOn{Key: 67, Vel: 80}}},
				{0, Midi{Channel: 3, Message: NoteOn{Key: 71, Vel: 80}}},
				{960, Midi{Channel: 3, Message: NoteOff{Key: 67, Vel: 64}}},
				{0, Midi{Channel: 3, Message: NoteOff{Key: 71, Vel: 64}}},
				{10, Midi{Channel: 3, Message: PitchBend{Bend: -8192}}},
				{10, Midi{Channel: 3, Message: PitchBend{Bend: 8191}}},
				EndOfTrackEvent(0),
			},
		},
	}

	data := Encode(f)

	// The reader itself must accept the bytes and see the same track layout.
	parsed, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, parsed.Tracks, len(f.Tracks))
	for i := range f.Tracks {
		assert.Len(t, parsed.Tracks[i], len(f.Tracks[i]), "track %d", i)
	}

	got, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("encode then parse yields the same model", prop.ForAll(
		func(seed int64, tracks int, events int) bool {
			rng := rand.New(rand.NewSource(seed))
			f := &File{Header: Header{Format: Parallel, Timing: Metrical(uint16(rng.Intn(0x7FFF) + 1))}}
			if tracks == 1 && rng.Intn(2) == 0 {
				f.Header.Format = SingleTrack
			}
			if rng.Intn(4) == 0 {
				f.Header.Timing = Timecode{FPS: []FPS{FPS24, FPS25, FPS29, FPS30}[rng.Intn(4)], Subframe: uint8(rng.Intn(256))}
			}
			for range tracks {
				f.Tracks = append(f.Tracks, randomTrack(rng, events))
			}

			got, err := Parse(Encode(f))
			if err != nil {
				t.Logf("Parse failed: %v", err)
				return false
			}
			return assert.ObjectsAreEqual(f, got)
		},
		gen.Int64(),
		gen.IntRange(1, 4),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

func TestVLQProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("readVLQ inverts AppendVLQ", prop.ForAll(
		func(v uint32) bool {
			enc := AppendVLQ(nil, v)
			got, n, ok := readVLQ(enc)
			return ok && n == len(enc) && got == v
		},
		gen.UInt32Range(0, MaxVLQ),
	))

	properties.Property("only the last byte has the continuation bit clear", prop.ForAll(
		func(v uint32) bool {
			enc := AppendVLQ(nil, v)
			for i, b := range enc {
				last := i == len(enc)-1
				if last == (b&0x80 != 0) {
					return false
				}
			}
			return len(enc) <= 4
		},
		gen.UInt32Range(0, MaxVLQ),
	))

	properties.TestingRun(t)
}

func TestParseErrors(t *testing.T) {
	t.Run("not a MIDI file", func(t *testing.T) {
		_, err := Parse([]byte("not a midi file at all"))
		assert.True(t, errors.Is(err, ErrParseInput), "got %v", err)
	})

	t.Run("truncated track", func(t *testing.T) {
		data := Encode(&File{
			Header: Header{Format: SingleTrack, Timing: Metrical(480)},
			Tracks: []Track{{{0, Midi{Message: NoteOn{Key: 60, Vel: 100}}}, EndOfTrackEvent(0)}},
		})
		_, err := Parse(data[:len(data)-3])
		assert.True(t, errors.Is(err, ErrParseInput), "got %v", err)
	})

	t.Run("missing track chunk", func(t *testing.T) {
		data := Encode(&File{
			Header: Header{Format: Parallel, Timing: Metrical(480)},
			Tracks: []Track{{EndOfTrackEvent(0)}, {EndOfTrackEvent(0)}},
		})
		_, err := Parse(data[:len(data)-12])
		assert.True(t, errors.Is(err, ErrParseInput), "got %v", err)
	})

	t.Run("short header chunk", func(t *testing.T) {
		data := Encode(&File{
			Header: Header{Format: SingleTrack, Timing: Metrical(480)},
			Tracks: []Track{{EndOfTrackEvent(0)}},
		})
		data[7] = 4
		_, err := Parse(data)
		assert.True(t, errors.Is(err, ErrParseInput), "got %v", err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ReadFile(nil, filepath.Join(t.TempDir(), "missing.mid"))
		assert.True(t, errors.Is(err, ErrReadInput), "got %v", err)
	})
}

func TestReadFileThroughFileSystem(t *testing.T) {
	dir := t.TempDir()
	f := &File{
		Header: Header{Format: SingleTrack, Timing: Metrical(240)},
		Tracks: []Track{{{0, Midi{Channel: 9, Message: NoteOn{Key: 36, Vel: 127}}}, EndOfTrackEvent(240)}},
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Drums.MID"), Encode(f), 0644))

	got, err := ReadFile(fileutil.NewRealFS(dir), "drums.mid")
	require.NoError(t, err)
	assert.Equal(t, f, got)

	got, err = Decode(bytes.NewReader(Encode(f)))
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestParseTimecode(t *testing.T) {
	for _, fps := range []FPS{FPS24, FPS25, FPS29, FPS30} {
		t.Run(fmt.Sprintf("%d fps", fps), func(t *testing.T) {
			f := &File{
				Header: Header{Format: SingleTrack, Timing: Timecode{FPS: fps, Subframe: 40}},
				Tracks: []Track{{
					{0, Meta{Message: Tempo(500000)}},
					{0, Midi{Channel: 0, Message: NoteOn{Key: 60, Vel: 100}}},
					{40, Midi{Channel: 0, Message: NoteOff{Key: 60, Vel: 0}}},
					EndOfTrackEvent(0),
				}},
			}

			got, err := Parse(Encode(f))
			require.NoError(t, err)
			assert.Equal(t, f, got)
		})
	}
}

func TestParseEmptyTracks(t *testing.T) {
	t.Run("only track", func(t *testing.T) {
		f := &File{Header: Header{Format: SingleTrack, Timing: Metrical(96)}, Tracks: []Track{{}}}
		got, err := Parse(Encode(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	})

	t.Run("between tracks", func(t *testing.T) {
		f := &File{
			Header: Header{Format: Parallel, Timing: Timecode{FPS: FPS25, Subframe: 4}},
			Tracks: []Track{
				{{0, Meta{Message: TrackName("a")}}, EndOfTrackEvent(0)},
				{},
				{{5, Midi{Channel: 1, Message: ProgramChange{Program: 3}}}, EndOfTrackEvent(0)},
			},
		}
		got, err := Parse(Encode(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	})
}

func TestParseSkipsUnknownChunks(t *testing.T) {
	f := &File{
		Header: Header{Format: SingleTrack, Timing: Metrical(480)},
		Tracks: []Track{{{0, Midi{Channel: 2, Message: NoteOn{Key: 64, Vel: 90}}}, EndOfTrackEvent(480)}},
	}
	data := Encode(f)
	alien := []byte{'X', 'F', 'I', 'H', 0, 0, 0, 3, 1, 2, 3}
	spliced := append(append(append([]byte(nil), data[:14]...), alien...), data[14:]...)

	got, err := Parse(spliced)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}
