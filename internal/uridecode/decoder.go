package uridecode

import (
	"bytes"

	"github.com/weft-web/weft/http/status"
)

var hexTable = func() (t [256]byte) {
	for i := range t {
		t[i] = 0xff
	}
	for c := byte('0'); c <= '9'; c++ {
		t[c] = c - '0'
	}
	for c := byte('a'); c <= 'f'; c++ {
		t[c] = c - 'a' + 10
	}
	for c := byte('A'); c <= 'F'; c++ {
		t[c] = c - 'A' + 10
	}
	return t
}()

// Decode normalizes a URI component by translating percent-escaped characters
// into their true form. If src contains no escapes it is returned as-is,
// otherwise the result is appended to buff.
func Decode(src, buff []byte) ([]byte, error) {
	for i := bytes.IndexByte(src, '%'); i != -1; i = bytes.IndexByte(src, '%') {
		if i >= len(src)-2 {
			return nil, status.ErrMalformedPath
		}

		hi, lo := hexTable[src[i+1]], hexTable[src[i+2]]
		if hi == 0xff || lo == 0xff {
			return nil, status.ErrMalformedPath
		}

		buff = append(buff, src[:i]...)
		buff = append(buff, hi<<4|lo)
		src = src[i+3:]
	}

	if len(buff) == 0 {
		return src, nil
	}

	return append(buff, src...), nil
}
