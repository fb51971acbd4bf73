package fastcgi

import "encoding/binary"

// encodeLen appends name-value length-prefix encoding of n, per
// spec §6: a single byte for lengths < 128, else a four-byte
// big-endian length with the high bit set.
func encodeLen(buf []byte, n int) []byte {
	if n < 128 {
		return append(buf, byte(n))
	}
	var lbuf [4]byte
	binary.BigEndian.PutUint32(lbuf[:], uint32(n)|0x80000000)
	return append(buf, lbuf[:]...)
}

// EncodeParam appends one FastCGI PARAMS name-value pair to buf.
func EncodeParam(buf []byte, name, value string) []byte {
	buf = encodeLen(buf, len(name))
	buf = encodeLen(buf, len(value))
	buf = append(buf, name...)
	buf = append(buf, value...)
	return buf
}

// EncodeParams encodes an ordered list of name-value pairs into a
// single PARAMS content block, in the order given (callers wanting a
// deterministic wire form should sort env before calling).
func EncodeParams(env []Param) []byte {
	var buf []byte
	for _, p := range env {
		buf = EncodeParam(buf, p.Name, p.Value)
	}
	return buf
}

// Param is one CGI/FastCGI environment variable.
type Param struct {
	Name  string
	Value string
}

func decodeLen(buf []byte) (int, int, bool) {
	if len(buf) == 0 {
		return 0, 0, false
	}
	if buf[0]&0x80 == 0 {
		return int(buf[0]), 1, true
	}
	if len(buf) < 4 {
		return 0, 0, false
	}
	n := binary.BigEndian.Uint32(buf[:4]) & 0x7fffffff
	return int(n), 4, true
}

// DecodeParams parses a complete PARAMS content block into an ordered
// list of name-value pairs.
func DecodeParams(buf []byte) ([]Param, error) {
	var out []Param
	for len(buf) > 0 {
		nameLen, n1, ok := decodeLen(buf)
		if !ok {
			return nil, errShortRecord
		}
		buf = buf[n1:]
		valueLen, n2, ok := decodeLen(buf)
		if !ok {
			return nil, errShortRecord
		}
		buf = buf[n2:]
		if len(buf) < nameLen+valueLen {
			return nil, errShortRecord
		}
		out = append(out, Param{Name: string(buf[:nameLen]), Value: string(buf[nameLen : nameLen+valueLen])})
		buf = buf[nameLen+valueLen:]
	}
	return out, nil
}
