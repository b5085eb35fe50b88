package base32

import (
	"errors"
	"fmt"
	"strings"
)

// Alphabet is the RFC 4648 base32 alphabet.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"

const padChar = '='

var (
	ErrMalformed        = errors.New("malformed base32 input")
	ErrInvalidCharacter = errors.New("invalid base32 character")
	ErrInvalidPadding   = errors.New("invalid base32 padding")
	ErrInvalidLength    = errors.New("invalid base32 length")
	ErrTrailingBits     = errors.New("non-zero trailing bits in final base32 group")
)

// decodeMap maps an input byte to its 5-bit value, 0xFF marks bytes outside the alphabet.
var decodeMap = func() [256]byte {
	var m [256]byte
	for i := range m {
		m[i] = 0xFF
	}
	for i := 0; i < len(Alphabet); i++ {
		m[Alphabet[i]] = byte(i)
	}
	return m
}()

// validPadding lists the legal trailing pad counts of an 8-character group
// together with the number of data characters left in that group.
var validPadding = map[int]int{
	0: 8,
	1: 7,
	3: 5,
	4: 4,
	6: 2,
}

// partialGroupBytes maps the data characters of a final group to the number of decoded bytes.
var partialGroupBytes = map[int]int{
	2: 1,
	4: 2,
	5: 3,
	7: 4,
	8: 5,
}

// Encode encodes b with the RFC 4648 alphabet, padding the output to an 8-character boundary.
func Encode(b []byte) string {
	return encode(b, true)
}

// EncodeNoPadding encodes b without trailing padding.
func EncodeNoPadding(b []byte) string {
	return encode(b, false)
}

func encode(b []byte, pad bool) string {
	if len(b) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow((len(b) + 4) / 5 * 8)

	for len(b) > 0 {
		var chunk [5]byte
		n := copy(chunk[:], b)
		b = b[n:]

		// 40 bits of the chunk, most significant first.
		bits := uint64(chunk[0])<<32 | uint64(chunk[1])<<24 | uint64(chunk[2])<<16 |
			uint64(chunk[3])<<8 | uint64(chunk[4])

		chars := (n*8 + 4) / 5
		for i := range chars {
			shift := uint(35 - 5*i)
			sb.WriteByte(Alphabet[(bits>>shift)&0x1F])
		}
		if pad {
			for range 8 - chars {
				sb.WriteByte(padChar)
			}
		}
	}

	return sb.String()
}

// Decode decodes strict RFC 4648 base32.
//
// Padding, when present, must be a trailing run of 1, 3, 4 or 6 '=' completing
// an 8-character group. Unpadded input is accepted when its final group holds
// 2, 4, 5 or 7 characters. The bits of a final group that do not form a
// whole byte must be zero, so every byte sequence has exactly one encoding.
func Decode(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}

	data := strings.TrimRight(s, string(padChar))
	padding := len(s) - len(data)

	if i := strings.IndexByte(data, padChar); i >= 0 {
		return nil, errors.Join(ErrMalformed, ErrInvalidPadding,
			fmt.Errorf("padding character at offset %d", i))
	}

	lastGroup := len(data) % 8
	if lastGroup == 0 && len(data) > 0 {
		lastGroup = 8
	}

	if padding > 0 {
		want, ok := validPadding[padding]
		if !ok {
			return nil, errors.Join(ErrMalformed, ErrInvalidPadding,
				fmt.Errorf("%d padding characters", padding))
		}
		if len(s)%8 != 0 || lastGroup != want {
			return nil, errors.Join(ErrMalformed, ErrInvalidPadding,
				fmt.Errorf("padding does not complete an 8-character group"))
		}
	}

	tailBytes, ok := partialGroupBytes[lastGroup]
	if !ok {
		return nil, errors.Join(ErrMalformed, ErrInvalidLength,
			fmt.Errorf("final group of %d characters", lastGroup))
	}

	fullGroups := (len(data) - lastGroup) / 8
	out := make([]byte, 0, fullGroups*5+tailBytes)

	for off := 0; off < len(data); off += 8 {
		end := min(off+8, len(data))
		group := data[off:end]

		var bits uint64
		for i := 0; i < len(group); i++ {
			v := decodeMap[group[i]]
			if v == 0xFF {
				return nil, errors.Join(ErrMalformed, ErrInvalidCharacter,
					fmt.Errorf("character %q at offset %d", group[i], off+i))
			}
			bits = bits<<5 | uint64(v)
		}
		// Left-align a short group inside the 40-bit window.
		bits <<= uint(5 * (8 - len(group)))

		n := partialGroupBytes[len(group)]
		if unused := uint64(1)<<uint(40-8*n) - 1; bits&unused != 0 {
			return nil, errors.Join(ErrMalformed, ErrTrailingBits,
				fmt.Errorf("final group %q is not canonical", group))
		}
		for i := range n {
			out = append(out, byte(bits>>uint(32-8*i)))
		}
	}

	return out, nil
}
