package midifile

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	valid := func() *File {
		return &File{
			Header: Header{Format: Parallel, Timing: Metrical(480)},
			Tracks: []Track{
				{{0, Meta{Message: Tempo(500000)}}, EndOfTrackEvent(0)},
				{{0, Midi{Channel: 15, Message: NoteOn{Key: 127, Vel: 127}}}, EndOfTrackEvent(0)},
			},
		}
	}

	if err := Validate(valid()); err != nil {
		t.Fatalf("Validate(valid) = %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(f *File)
		message string
	}{
		{
			name:    "missing end of track",
			mutate:  func(f *File) { f.Tracks[0] = f.Tracks[0][:1] },
			message: "does not end with EndOfTrack",
		},
		{
			name:    "empty track",
			mutate:  func(f *File) { f.Tracks[1] = Track{} },
			message: "track 1 does not end",
		},
		{
			name: "channel out of range",
			mutate: func(f *File) {
				f.Tracks[1][0].Kind = Midi{Channel: 16, Message: NoteOn{Key: 1, Vel: 1}}
			},
			message: "channel 16 out of range",
		},
		{
			name: "data byte with status bit",
			mutate: func(f *File) {
				f.Tracks[1][0].Kind = Midi{Channel: 0, Message: Controller{Controller: 0x80, Value: 0}}
			},
			message: "status bit",
		},
		{
			name: "pitch bend out of range",
			mutate: func(f *File) {
				f.Tracks[1][0].Kind = Midi{Channel: 0, Message: PitchBend{Bend: 9000}}
			},
			message: "pitch bend 9000",
		},
		{
			name:    "tempo wider than 24 bits",
			mutate:  func(f *File) { f.Tracks[0][0].Kind = Meta{Message: Tempo(0x1000000)} },
			message: "exceeds 24 bits",
		},
		{
			name:    "metrical top bit",
			mutate:  func(f *File) { f.Header.Timing = Metrical(0x8000) },
			message: "metrical division",
		},
		{
			name:    "unsupported frame rate",
			mutate:  func(f *File) { f.Header.Timing = Timecode{FPS: 60, Subframe: 4} },
			message: "frame rate 60",
		},
		{
			name:    "single track format with two tracks",
			mutate:  func(f *File) { f.Header.Format = SingleTrack },
			message: "single-track format with 2 tracks",
		},
		{
			name:    "delta too large",
			mutate:  func(f *File) { f.Tracks[0][0].Delta = MaxVLQ + 1 },
			message: "exceeds variable-length range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid()
			tt.mutate(f)

			err := Validate(f)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !errors.Is(err, ErrInvalidModel) {
				t.Errorf("Expected ErrInvalidModel, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("Expected message containing %q, got %q", tt.message, err.Error())
			}
		})
	}

	t.Run("reports every violation", func(t *testing.T) {
		f := valid()
		f.Tracks[0] = f.Tracks[0][:1]
		f.Tracks[1][0].Kind = Midi{Channel: 20, Message: NoteOn{Key: 1, Vel: 1}}

		err := Validate(f)
		if err == nil {
			t.Fatal("Expected validation error")
		}
		if n := strings.Count(err.Error(), ErrInvalidModel.Error()); n != 2 {
			t.Errorf("Expected 2 violations, got %d: %v", n, err)
		}
	})
}
