package midifile

// MaxVLQ is the largest value an SMF variable-length quantity may hold (four bytes).
const MaxVLQ = 0x0FFFFFFF

// AppendVLQ appends v as a variable-length quantity: seven bits per byte,
// most significant group first, continuation bit on every byte but the last.
// Zero encodes as a single 0x00 byte.
func AppendVLQ(dst []byte, v uint32) []byte {
	var buf [5]byte
	n := len(buf) - 1
	buf[n] = byte(v & 0x7F)
	v >>= 7
	for v > 0 {
		n--
		buf[n] = byte(v&0x7F) | 0x80
		v >>= 7
	}
	return append(dst, buf[n:]...)
}

// readVLQ decodes a variable-length quantity from the front of data and
// returns the value and the number of bytes consumed. ok is false when data
// ends inside the number.
func readVLQ(data []byte) (v uint32, n int, ok bool) {
	for n < len(data) && n < 4 {
		b := data[n]
		n++
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			return v, n, true
		}
	}
	return v, n, false
}
