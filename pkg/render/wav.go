package render

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/zurustar/midiplay/pkg/midifile"
)

const (
	// DefaultTail is rendered after the last event so releases can fade out.
	DefaultTail = time.Second
	// wavBlockSize is the number of samples per channel rendered at once.
	wavBlockSize = 4096
)

// Source is a sequencer that renders stereo float blocks until the sequence ends.
type Source interface {
	Render(left, right []float32)
	EndOfSequence() bool
}

// WriteWAV renders src to the end of its sequence followed by tail, and writes
// the result to w as a 16-bit stereo PCM WAV file.
func WriteWAV(w io.Writer, src Source, sampleRate int, tail time.Duration) (int64, error) {
	left := make([]float32, wavBlockSize)
	right := make([]float32, wavBlockSize)
	var pcm bytes.Buffer

	appendBlock := func(n int) {
		src.Render(left[:n], right[:n])
		frame := make([]byte, 4)
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(frame[0:], uint16(int16(clamp(left[i])*32767)))
			binary.LittleEndian.PutUint16(frame[2:], uint16(int16(clamp(right[i])*32767)))
			pcm.Write(frame)
		}
	}

	for !src.EndOfSequence() {
		appendBlock(wavBlockSize)
	}
	for remaining := int(int64(tail) * int64(sampleRate) / int64(time.Second)); remaining > 0; remaining -= wavBlockSize {
		appendBlock(min(remaining, wavBlockSize))
	}

	header := wavHeader(sampleRate, pcm.Len())
	n, err := w.Write(header)
	if err != nil {
		return int64(n), err
	}
	m, err := pcm.WriteTo(w)
	return int64(n) + m, err
}

// wavHeader is the canonical 44-byte RIFF header for 16-bit stereo PCM.
func wavHeader(sampleRate, dataLen int) []byte {
	const (
		channels      = 2
		bitsPerSample = 16
		blockAlign    = channels * bitsPerSample / 8
	)
	h := make([]byte, 0, 44)
	h = append(h, "RIFF"...)
	h = binary.LittleEndian.AppendUint32(h, uint32(36+dataLen))
	h = append(h, "WAVE"...)
	h = append(h, "fmt "...)
	h = binary.LittleEndian.AppendUint32(h, 16)
	h = binary.LittleEndian.AppendUint16(h, 1) // PCM
	h = binary.LittleEndian.AppendUint16(h, channels)
	h = binary.LittleEndian.AppendUint32(h, uint32(sampleRate))
	h = binary.LittleEndian.AppendUint32(h, uint32(sampleRate*blockAlign))
	h = binary.LittleEndian.AppendUint16(h, blockAlign)
	h = binary.LittleEndian.AppendUint16(h, bitsPerSample)
	h = append(h, "data"...)
	h = binary.LittleEndian.AppendUint32(h, uint32(dataLen))
	return h
}

func clamp(v float32) float32 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// WriteWAVFile renders f with the SoundFont offline and writes it to path.
func WriteWAVFile(path string, soundFont []byte, sampleRate int, f *midifile.File) error {
	seq, err := NewSequencer(soundFont, sampleRate, f)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := WriteWAV(&buf, seq, sampleRate, DefaultTail); err != nil {
		return fmt.Errorf("%w: %v", midifile.ErrWriteOutput, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("%w: %v", midifile.ErrWriteOutput, err)
	}
	return nil
}
