package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// TextEncoding is the character set assumed for text meta events.
type TextEncoding string

const (
	UTF8     TextEncoding = "utf-8"
	ShiftJIS TextEncoding = "shift-jis"
	Latin1   TextEncoding = "latin1"
)

// TextEncodings returns the accepted encoding names.
func TextEncodings() []TextEncoding {
	return []TextEncoding{UTF8, ShiftJIS, Latin1}
}

// ParseTextEncoding accepts the names returned by TextEncodings and a few common aliases.
func ParseTextEncoding(name string) (TextEncoding, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return UTF8, nil
	case "shift-jis", "shift_jis", "sjis":
		return ShiftJIS, nil
	case "latin1", "latin-1", "iso-8859-1":
		return Latin1, nil
	}
	return "", fmt.Errorf("unknown text encoding: %s", name)
}

func (e TextEncoding) decoder() *encoding.Decoder {
	switch e {
	case ShiftJIS:
		return japanese.ShiftJIS.NewDecoder()
	case Latin1:
		return charmap.ISO8859_1.NewDecoder()
	}
	return nil
}

// Decode converts text meta bytes to a printable string. Undecodable input is
// replaced rather than rejected.
func (e TextEncoding) Decode(data []byte) string {
	dec := e.decoder()
	if dec == nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), dec))
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(out)
}
