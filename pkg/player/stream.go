package player

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// sharedSynth is the single mutex-guarded handle to the synthesizer, shared
// by the device callback and the foreground completion poll.
type sharedSynth struct {
	mu     sync.Mutex
	synth  Synth
	failed bool
	log    *slog.Logger
}

// render fills the block. After a synthesis panic or a stream error the
// handle is marked failed and every later block is silent.
func (s *sharedSynth) render(left, right []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed {
		clear(left)
		clear(right)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.failed = true
			clear(left)
			clear(right)
			s.log.Error("Synthesis failed, continuing with silence", "panic", r)
		}
	}()
	s.synth.Render(left, right)
}

// endOfSequence reports completion. A failed handle counts as complete so the
// foreground wait terminates.
func (s *sharedSynth) endOfSequence() (done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed {
		return true
	}

	defer func() {
		if r := recover(); r != nil {
			s.failed = true
			done = true
			s.log.Error("End-of-sequence query failed", "panic", r)
		}
	}()
	return s.synth.EndOfSequence()
}

func (s *sharedSynth) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = true
}

// blockSource hands out stereo sample pairs from a block of rendered samples,
// refilling the block through the shared handle when it is exhausted.
// Only the device callback uses it.
type blockSource struct {
	shared *sharedSynth
	left   []float32
	right  []float32
	pos    int
}

func newBlockSource(shared *sharedSynth, blockSize int) *blockSource {
	return &blockSource{
		shared: shared,
		left:   make([]float32, blockSize),
		right:  make([]float32, blockSize),
		pos:    blockSize,
	}
}

func (b *blockSource) next() (float32, float32) {
	if b.pos >= len(b.left) {
		b.shared.render(b.left, b.right)
		b.pos = 0
	}
	l, r := b.left[b.pos], b.right[b.pos]
	b.pos++
	return l, r
}

type sample interface {
	float32 | int16 | uint16
}

// fillFrames writes one stereo pair per frame of out. Mono devices get the
// mean of both channels; wider devices get left and right on the first two
// channels and silence on the rest. A trailing partial frame is silent.
func fillFrames[T sample](out []T, channels int, src *blockSource, conv func(float32) T) {
	silence := conv(0)
	i := 0
	for ; i+channels <= len(out); i += channels {
		l, r := src.next()
		frame := out[i : i+channels]
		if channels == 1 {
			frame[0] = conv((l + r) * 0.5)
			continue
		}
		frame[0] = conv(l)
		frame[1] = conv(r)
		for c := 2; c < channels; c++ {
			frame[c] = silence
		}
	}
	for ; i < len(out); i++ {
		out[i] = silence
	}
}

// byteCallback adapts fillFrames to a device buffer of raw bytes.
func byteCallback[T sample](channels int, src *blockSource, conv func(float32) T, put func([]byte, T), size int) Callback {
	var scratch []T
	return func(out []byte) {
		n := len(out) / size
		if cap(scratch) < n {
			scratch = make([]T, n)
		}
		buf := scratch[:n]
		fillFrames(buf, channels, src, conv)
		for i, v := range buf {
			put(out[i*size:], v)
		}
		clear(out[n*size:])
	}
}

func newCallback(cfg OutputConfig, src *blockSource) (Callback, error) {
	if cfg.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", cfg.Channels)
	}

	switch cfg.Format {
	case FormatF32:
		return byteCallback(cfg.Channels, src, toF32, putF32, 4), nil
	case FormatI16:
		return byteCallback(cfg.Channels, src, toI16, putI16, 2), nil
	case FormatU16:
		return byteCallback(cfg.Channels, src, toU16, putU16, 2), nil
	}
	return nil, fmt.Errorf("unsupported sample format %s", cfg.Format)
}

func clamp(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func toF32(v float32) float32 {
	return v
}

func toI16(v float32) int16 {
	return int16(clamp(v, -1, 1) * 32767)
}

// toU16 maps [-1, 1] onto [0, 65535] with silence at 32768.
func toU16(v float32) uint16 {
	return uint16(math.Round((float64(clamp(v, -1, 1)) + 1) * 32767.5))
}

func putF32(b []byte, v float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(v)) }
func putI16(b []byte, v int16)   { binary.LittleEndian.PutUint16(b, uint16(v)) }
func putU16(b []byte, v uint16)  { binary.LittleEndian.PutUint16(b, v) }
