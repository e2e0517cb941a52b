// Package report summarizes a MIDI event model for the --inspect output.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/zurustar/midiplay/pkg/midifile"
)

// defaultTempo is 120 BPM, in effect until the first Tempo event.
const defaultTempo = 500000

// Summary describes a file without its events.
type Summary struct {
	Format     midifile.Format
	Timing     string
	Tracks     []TrackSummary
	Tempos     []TempoChange
	TotalTicks uint64
	// Duration is the playing time derived from the tempo map, or zero when
	// it cannot be determined.
	Duration time.Duration
}

// TrackSummary counts the events of one track.
type TrackSummary struct {
	Index    int
	Name     []byte
	Events   int
	Notes    int
	Channel  int
	Meta     int
	SysEx    int
	Channels []uint8
	Ticks    uint64
}

// TempoChange is a Tempo event at an absolute tick.
type TempoChange struct {
	Track            int
	Tick             uint64
	MicrosPerQuarter uint32
}

// BPM returns the tempo in beats per minute.
func (t TempoChange) BPM() float64 {
	if t.MicrosPerQuarter == 0 {
		return 0
	}
	return 60_000_000 / float64(t.MicrosPerQuarter)
}

// Summarize walks every track of f once.
func Summarize(f *midifile.File) Summary {
	s := Summary{
		Format: f.Header.Format,
		Timing: describeTiming(f.Header.Timing),
	}

	for i, track := range f.Tracks {
		ts := TrackSummary{Index: i, Events: len(track)}
		var used [16]bool
		for _, ev := range track {
			ts.Ticks += uint64(ev.Delta)
			switch k := ev.Kind.(type) {
			case midifile.Midi:
				ts.Channel++
				if k.Channel < 16 {
					used[k.Channel] = true
				}
				if _, ok := k.Message.(midifile.NoteOn); ok {
					ts.Notes++
				}
			case midifile.Meta:
				ts.Meta++
				switch m := k.Message.(type) {
				case midifile.TrackName:
					if ts.Name == nil {
						ts.Name = m
					}
				case midifile.Tempo:
					s.Tempos = append(s.Tempos, TempoChange{Track: i, Tick: ts.Ticks, MicrosPerQuarter: uint32(m)})
				}
			case midifile.SysEx, midifile.Escape:
				ts.SysEx++
			}
		}
		for ch, ok := range used {
			if ok {
				ts.Channels = append(ts.Channels, uint8(ch))
			}
		}

		if f.Header.Format == midifile.Sequential {
			s.TotalTicks += ts.Ticks
		} else {
			s.TotalTicks = max(s.TotalTicks, ts.Ticks)
		}
		s.Tracks = append(s.Tracks, ts)
	}

	sort.SliceStable(s.Tempos, func(a, b int) bool { return s.Tempos[a].Tick < s.Tempos[b].Tick })
	s.Duration = duration(f, s)
	return s
}

func describeTiming(t midifile.Timing) string {
	switch t := t.(type) {
	case midifile.Metrical:
		return fmt.Sprintf("%d ticks per quarter note", uint16(t))
	case midifile.Timecode:
		return fmt.Sprintf("%d fps, %d ticks per frame", t.FPS, t.Subframe)
	}
	return "unknown"
}

func duration(f *midifile.File, s Summary) time.Duration {
	switch t := f.Header.Timing.(type) {
	case midifile.Metrical:
		if t == 0 {
			return 0
		}
		if f.Header.Format != midifile.Sequential {
			return metricalDuration(s.TotalTicks, s.Tempos, uint64(t))
		}
		// Each sequence carries its own tempo map.
		var total time.Duration
		for _, ts := range s.Tracks {
			var own []TempoChange
			for _, tc := range s.Tempos {
				if tc.Track == ts.Index {
					own = append(own, tc)
				}
			}
			total += metricalDuration(ts.Ticks, own, uint64(t))
		}
		return total
	case midifile.Timecode:
		if t.FPS == 0 || t.Subframe == 0 {
			return 0
		}
		fps := float64(t.FPS)
		if t.FPS == midifile.FPS29 {
			fps = 29.97
		}
		seconds := float64(s.TotalTicks) / (fps * float64(t.Subframe))
		return time.Duration(seconds * float64(time.Second))
	}
	return 0
}

// metricalDuration integrates the tempo map over ticks. tempos must be sorted by tick.
func metricalDuration(ticks uint64, tempos []TempoChange, ppq uint64) time.Duration {
	var (
		micros uint64
		last   uint64
		tempo  uint64 = defaultTempo
	)
	for _, tc := range tempos {
		if tc.Tick >= ticks {
			break
		}
		micros += (tc.Tick - last) * tempo / ppq
		last = tc.Tick
		tempo = uint64(tc.MicrosPerQuarter)
	}
	micros += (ticks - last) * tempo / ppq
	return time.Duration(micros) * time.Microsecond
}
