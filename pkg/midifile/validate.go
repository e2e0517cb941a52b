package midifile

import (
	"errors"
	"fmt"
)

// ErrInvalidModel is wrapped by every error returned from Validate.
var ErrInvalidModel = errors.New("invalid MIDI model")

// Validate checks the contract the encoder relies on but does not enforce.
// All violations are reported together; nil means the model is conformant.
func Validate(f *File) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidModel}, args...)...))
	}

	switch f.Header.Format {
	case SingleTrack:
		if len(f.Tracks) != 1 {
			add("single-track format with %d tracks", len(f.Tracks))
		}
	case Parallel, Sequential:
	default:
		add("unknown format %d", f.Header.Format)
	}
	if len(f.Tracks) > 0xFFFF {
		add("too many tracks: %d", len(f.Tracks))
	}

	switch t := f.Header.Timing.(type) {
	case nil:
		add("missing timing")
	case Metrical:
		if t == 0 || t&0x8000 != 0 {
			add("metrical division out of range: %d", uint16(t))
		}
	case Timecode:
		switch t.FPS {
		case FPS24, FPS25, FPS29, FPS30:
		default:
			add("unsupported timecode frame rate %d", t.FPS)
		}
	}

	for i, track := range f.Tracks {
		if n := len(track); n == 0 || !isEndOfTrack(track[n-1]) {
			add("track %d does not end with EndOfTrack", i)
		}
		for j, ev := range track {
			if err := validateEvent(ev); err != nil {
				add("track %d event %d: %v", i, j, err)
			}
		}
	}
	return errors.Join(errs...)
}

func isEndOfTrack(ev Event) bool {
	m, ok := ev.Kind.(Meta)
	if !ok {
		return false
	}
	_, ok = m.Message.(EndOfTrack)
	return ok
}

func validateEvent(ev Event) error {
	if ev.Delta > MaxVLQ {
		return fmt.Errorf("delta %d exceeds variable-length range", ev.Delta)
	}
	switch k := ev.Kind.(type) {
	case Midi:
		if k.Channel > 15 {
			return fmt.Errorf("channel %d out of range", k.Channel)
		}
		return validateMessage(k.Message)
	case Meta:
		switch m := k.Message.(type) {
		case Tempo:
			if m > 0xFFFFFF {
				return fmt.Errorf("tempo %d exceeds 24 bits", uint32(m))
			}
		case RawMeta:
			if m.Type >= 0x80 {
				return fmt.Errorf("meta type 0x%02X out of range", m.Type)
			}
		case nil:
			return errors.New("empty meta event")
		}
	case SysEx, Escape:
	default:
		return fmt.Errorf("unsupported event kind %T", ev.Kind)
	}
	return nil
}

func validateMessage(m Message) error {
	var data []uint8
	switch m := m.(type) {
	case NoteOff:
		data = []uint8{m.Key, m.Vel}
	case NoteOn:
		data = []uint8{m.Key, m.Vel}
	case Aftertouch:
		data = []uint8{m.Key, m.Vel}
	case Controller:
		data = []uint8{m.Controller, m.Value}
	case ProgramChange:
		data = []uint8{m.Program}
	case ChannelAftertouch:
		data = []uint8{m.Vel}
	case PitchBend:
		if m.Bend < -8192 || m.Bend > 8191 {
			return fmt.Errorf("pitch bend %d out of range", m.Bend)
		}
	case nil:
		return errors.New("empty channel message")
	}
	for _, b := range data {
		if b > 0x7F {
			return fmt.Errorf("data byte 0x%02X has the status bit set", b)
		}
	}
	return nil
}
