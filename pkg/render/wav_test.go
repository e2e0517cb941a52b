package render

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio/wav"

	"github.com/zurustar/midiplay/pkg/midifile"
)

// constSource renders a fixed value for a number of samples.
type constSource struct {
	value    float32
	samples  int
	rendered int
}

func (s *constSource) Render(left, right []float32) {
	for i := range left {
		left[i] = s.value
		right[i] = -s.value
	}
	s.rendered += len(left)
}

func (s *constSource) EndOfSequence() bool {
	return s.rendered >= s.samples
}

func TestWriteWAVHeader(t *testing.T) {
	src := &constSource{value: 0.5, samples: 100}
	var buf bytes.Buffer

	n, err := WriteWAV(&buf, src, 8000, 0)
	if err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("Reported %d bytes, wrote %d", n, buf.Len())
	}

	b := buf.Bytes()
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" || string(b[36:40]) != "data" {
		t.Fatalf("Malformed header: % X", b[:44])
	}

	// One whole block is rendered even though the sequence is shorter.
	dataLen := binary.LittleEndian.Uint32(b[40:44])
	if dataLen != wavBlockSize*4 {
		t.Errorf("data length = %d, expected %d", dataLen, wavBlockSize*4)
	}
	if riff := binary.LittleEndian.Uint32(b[4:8]); riff != 36+dataLen {
		t.Errorf("RIFF length = %d, expected %d", riff, 36+dataLen)
	}
	if rate := binary.LittleEndian.Uint32(b[24:28]); rate != 8000 {
		t.Errorf("sample rate = %d", rate)
	}

	l := int16(binary.LittleEndian.Uint16(b[44:]))
	r := int16(binary.LittleEndian.Uint16(b[46:]))
	if l != 16383 || r != -16383 {
		t.Errorf("first frame = %d, %d", l, r)
	}
}

func TestWriteWAVTail(t *testing.T) {
	src := &constSource{samples: 0}
	var buf bytes.Buffer

	if _, err := WriteWAV(&buf, src, 10000, 500*time.Millisecond); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}
	if src.rendered != 5000 {
		t.Errorf("Rendered %d tail samples, expected 5000", src.rendered)
	}
	if got := buf.Len() - 44; got != 5000*4 {
		t.Errorf("data length = %d, expected %d", got, 5000*4)
	}
}

func TestWriteWAVDecodes(t *testing.T) {
	src := &constSource{value: 0.25, samples: 3 * wavBlockSize}
	var buf bytes.Buffer
	if _, err := WriteWAV(&buf, src, 44100, 0); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	stream, err := wav.DecodeWithSampleRate(44100, bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decoder rejected the file: %v", err)
	}
	if stream.Length() != int64(3*wavBlockSize*4) {
		t.Errorf("decoded length = %d, expected %d", stream.Length(), 3*wavBlockSize*4)
	}
}

func TestWriteWAVFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "song.wav")

	t.Run("rejects a bad soundfont", func(t *testing.T) {
		err := WriteWAVFile(out, []byte("junk"), 44100, testSong())
		if !errors.Is(err, ErrParseSoundFont) {
			t.Errorf("Expected ErrParseSoundFont, got %v", err)
		}
	})

	t.Run("renders the song", func(t *testing.T) {
		sf := findSoundFont(t)
		if err := WriteWAVFile(out, sf, 22050, testSong()); err != nil {
			t.Fatalf("WriteWAVFile failed: %v", err)
		}
		info, err := os.Stat(out)
		if err != nil {
			t.Fatalf("output missing: %v", err)
		}
		// One second of song plus one second of tail.
		if info.Size() < 44+2*22050*4 {
			t.Errorf("output too short: %d bytes", info.Size())
		}
	})

	t.Run("unwritable path", func(t *testing.T) {
		sf := findSoundFont(t)
		err := WriteWAVFile(filepath.Join(out, "nested.wav"), sf, 22050, testSong())
		if !errors.Is(err, midifile.ErrWriteOutput) {
			t.Errorf("Expected ErrWriteOutput, got %v", err)
		}
	})
}
