// Package rbsp implements emulation prevention (byte stuffing) for NAL unit payloads.
//
// A NAL payload must never contain 00 00 00, 00 00 01, 00 00 02 or 00 00 03 as a
// 3-byte window. Encode inserts an escape byte 0x03 after every 00 00 pair that is
// followed by such a byte, and Decode removes those escape bytes again.
package rbsp

const (
	// EscapeByte is the emulation prevention byte.
	EscapeByte = 0x03
	// StopByte is the rbsp_stop_one_bit followed by alignment zero bits.
	StopByte = 0x80
)

// Encode returns data with emulation prevention bytes inserted.
func Encode(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/2+1)
	zeros := 0
	for _, b := range data {
		if zeros >= 2 && b <= EscapeByte {
			out = append(out, EscapeByte)
			zeros = 0
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}

// Decode removes emulation prevention bytes. A 0x03 that follows two zero bytes is
// dropped and the zero run starts over, so Decode(Encode(x)) == x for every x.
func Decode(ebsp []byte) []byte {
	out := make([]byte, 0, len(ebsp))
	zeros := 0
	for _, b := range ebsp {
		if zeros >= 2 && b == EscapeByte {
			zeros = 0
			continue
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}

// DecodePayload decodes ebsp and strips a trailing stop byte, if any.
func DecodePayload(ebsp []byte) []byte {
	out := Decode(ebsp)
	if n := len(out); n > 0 && out[n-1] == StopByte {
		out = out[:n-1]
	}
	return out
}

// HasStartCodeEmulation reports whether data contains a 3-byte window that Encode
// would have escaped.
func HasStartCodeEmulation(data []byte) bool {
	for i := 2; i < len(data); i++ {
		if data[i-2] == 0 && data[i-1] == 0 && data[i] <= EscapeByte {
			return true
		}
	}
	return false
}
