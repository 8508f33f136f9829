// Package dagcbor implements the minimal deterministic CBOR subset
// ("dag-cbor") needed to build and read the three node shapes used by this
// system: a raw-bytes leaf, a two-field {L,R} link map, and a bare CID link
// (which this system never produces, only tolerates on decode). It does not
// attempt to be a general purpose CBOR library: only the major types the
// spec names are implemented, and only the encodings those types need.
package dagcbor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Major types, per the CBOR spec (RFC 8949).
const (
	majorUint = 0
	majorNint = 1
	majorBstr = 2
	majorTstr = 3
	majorArr  = 4
	majorMap  = 5
	majorTag  = 6
	majorSimp = 7
)

// LinkTag is the CBOR tag used for IPLD links (tag 42).
const LinkTag = 42

var (
	ErrTruncated    = errors.New("dagcbor: input truncated")
	ErrTrailingData = errors.New("dagcbor: trailing bytes after value")
	ErrBadLinkTag   = errors.New("dagcbor: tag 42 payload must start with 0x00")
	ErrUnsupported  = errors.New("dagcbor: unsupported major type or encoding")
)

func appendHead(buf []byte, major byte, n uint64) []byte {
	switch {
	case n < 24:
		return append(buf, major<<5|byte(n))
	case n <= 0xff:
		return append(buf, major<<5|24, byte(n))
	case n <= 0xffff:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(n))
		return append(append(buf, major<<5|25), b...)
	case n <= 0xffffffff:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(n))
		return append(append(buf, major<<5|26), b...)
	default:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, n)
		return append(append(buf, major<<5|27), b...)
	}
}

// EncodeBytes appends the dag-cbor byte-string encoding of b.
func EncodeBytes(buf []byte, b []byte) []byte {
	buf = appendHead(buf, majorBstr, uint64(len(b)))
	return append(buf, b...)
}

// EncodeText appends the dag-cbor text-string encoding of s.
func EncodeText(buf []byte, s string) []byte {
	buf = appendHead(buf, majorTstr, uint64(len(s)))
	return append(buf, s...)
}

// EncodeArrayHeader appends the dag-cbor header for an array of n items.
func EncodeArrayHeader(buf []byte, n int) []byte {
	return appendHead(buf, majorArr, uint64(n))
}

// EncodeMapHeader appends the dag-cbor header for a map of n entries.
func EncodeMapHeader(buf []byte, n int) []byte {
	return appendHead(buf, majorMap, uint64(n))
}

// EncodeTag appends a CBOR tag header.
func EncodeTag(buf []byte, tag uint64) []byte {
	return appendHead(buf, majorTag, tag)
}

// EncodeUint appends an unsigned integer.
func EncodeUint(buf []byte, n uint64) []byte {
	return appendHead(buf, majorUint, n)
}

// EncodeNint appends a negative integer (n must be < 0).
func EncodeNint(buf []byte, n int64) []byte {
	return appendHead(buf, majorNint, uint64(-1-n))
}

// EncodeBool appends a CBOR boolean.
func EncodeBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, majorSimp<<5|21)
	}
	return append(buf, majorSimp<<5|20)
}

// EncodeNull appends the dag-cbor encoding of null: a single 0xf6 byte. This
// is also the canonical "empty MMR" value hashed to produce the null-CID.
func EncodeNull(buf []byte) []byte {
	return append(buf, majorSimp<<5|22)
}

// EncodeFloat64 appends an IEEE-754 double.
func EncodeFloat64(buf []byte, f float64) []byte {
	buf = append(buf, majorSimp<<5|27)
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(f))
	return append(buf, b...)
}

// SortedStringKeys returns m's keys in byte-lexical order, the canonical map
// key ordering dag-cbor requires. This system only ever writes maps keyed by
// "L" and "R", so this is used defensively rather than load-bearing.
func SortedStringKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// head describes one decoded CBOR item header.
type head struct {
	major byte
	info  byte
	n     uint64
}

func readHead(data []byte) (head, []byte, error) {
	if len(data) == 0 {
		return head{}, nil, ErrTruncated
	}
	b := data[0]
	major := b >> 5
	info := b & 0x1f
	rest := data[1:]

	switch {
	case info < 24:
		return head{major, info, uint64(info)}, rest, nil
	case info == 24:
		if len(rest) < 1 {
			return head{}, nil, ErrTruncated
		}
		return head{major, info, uint64(rest[0])}, rest[1:], nil
	case info == 25:
		if len(rest) < 2 {
			return head{}, nil, ErrTruncated
		}
		return head{major, info, uint64(binary.BigEndian.Uint16(rest))}, rest[2:], nil
	case info == 26:
		if len(rest) < 4 {
			return head{}, nil, ErrTruncated
		}
		return head{major, info, uint64(binary.BigEndian.Uint32(rest))}, rest[4:], nil
	case info == 27:
		if len(rest) < 8 {
			return head{}, nil, ErrTruncated
		}
		return head{major, info, binary.BigEndian.Uint64(rest)}, rest[8:], nil
	default:
		return head{}, nil, fmt.Errorf("%w: additional info %d", ErrUnsupported, info)
	}
}

// Decode parses exactly one dag-cbor value from data, failing if any bytes
// remain afterwards. The returned value is one of: []byte, string, uint64,
// int64, bool, nil, float64, []any, map[string]any, or *Link (for a tag-42
// item).
func Decode(data []byte) (any, error) {
	v, rest, err := decodeValue(data)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, ErrTrailingData
	}
	return v, nil
}

func decodeValue(data []byte) (any, []byte, error) {
	h, rest, err := readHead(data)
	if err != nil {
		return nil, nil, err
	}
	switch h.major {
	case majorUint:
		return h.n, rest, nil
	case majorNint:
		return -1 - int64(h.n), rest, nil
	case majorBstr:
		if uint64(len(rest)) < h.n {
			return nil, nil, ErrTruncated
		}
		return append([]byte{}, rest[:h.n]...), rest[h.n:], nil
	case majorTstr:
		if uint64(len(rest)) < h.n {
			return nil, nil, ErrTruncated
		}
		return string(rest[:h.n]), rest[h.n:], nil
	case majorArr:
		items := make([]any, 0, h.n)
		cur := rest
		for i := uint64(0); i < h.n; i++ {
			var v any
			var err error
			v, cur, err = decodeValue(cur)
			if err != nil {
				return nil, nil, err
			}
			items = append(items, v)
		}
		return items, cur, nil
	case majorMap:
		m := make(map[string]any, h.n)
		cur := rest
		for i := uint64(0); i < h.n; i++ {
			var k, v any
			var err error
			k, cur, err = decodeValue(cur)
			if err != nil {
				return nil, nil, err
			}
			ks, ok := k.(string)
			if !ok {
				return nil, nil, fmt.Errorf("%w: map keys must be text strings", ErrUnsupported)
			}
			v, cur, err = decodeValue(cur)
			if err != nil {
				return nil, nil, err
			}
			m[ks] = v
		}
		return m, cur, nil
	case majorTag:
		if h.n != LinkTag {
			return nil, nil, fmt.Errorf("%w: tag %d", ErrUnsupported, h.n)
		}
		inner, cur, err := decodeValue(rest)
		if err != nil {
			return nil, nil, err
		}
		raw, ok := inner.([]byte)
		if !ok || len(raw) == 0 || raw[0] != 0x00 {
			return nil, nil, ErrBadLinkTag
		}
		link, err := linkFromMultibaseBytes(raw[1:])
		if err != nil {
			return nil, nil, err
		}
		return link, cur, nil
	case majorSimp:
		switch h.info {
		case 20:
			return false, rest, nil
		case 21:
			return true, rest, nil
		case 22:
			return nil, rest, nil
		case 27:
			return math.Float64frombits(h.n), rest, nil
		default:
			return nil, nil, fmt.Errorf("%w: simple value %d", ErrUnsupported, h.info)
		}
	default:
		return nil, nil, fmt.Errorf("%w: major type %d", ErrUnsupported, h.major)
	}
}
