package base32_test

import (
	"crypto/rand"
	stdbase32 "encoding/base32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/twofactor/pkg/base32"
)

// RFC 4648, section 10.
var rfcVectors = []struct {
	plain   string
	encoded string
}{
	{"", ""},
	{"f", "MY======"},
	{"fo", "MZXQ===="},
	{"foo", "MZXW6==="},
	{"foob", "MZXW6YQ="},
	{"fooba", "MZXW6YTB"},
	{"foobar", "MZXW6YTBOI======"},
}

func TestEncode(t *testing.T) {
	t.Parallel()
	for _, tt := range rfcVectors {
		t.Run(tt.encoded, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.encoded, base32.Encode([]byte(tt.plain)))
		})
	}
}

func TestEncodeNoPadding(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "MZXW6YTBOI", base32.EncodeNoPadding([]byte("foobar")))
	assert.Equal(t, "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", base32.EncodeNoPadding([]byte("12345678901234567890")))
}

func TestDecode(t *testing.T) {
	t.Parallel()
	for _, tt := range rfcVectors {
		t.Run(tt.encoded, func(t *testing.T) {
			t.Parallel()
			got, err := base32.Decode(tt.encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.plain, string(got))
		})
	}
}

func TestDecode_Unpadded(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"MY", "f"},
		{"MZXQ", "fo"},
		{"MZXW6", "foo"},
		{"MZXW6YQ", "foob"},
		{"MZXW6YTBOI", "foobar"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := base32.Decode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{name: "two padding chars", in: "MZXW6Y==", wantErr: base32.ErrInvalidPadding},
		{name: "five padding chars", in: "MZX=====", wantErr: base32.ErrInvalidPadding},
		{name: "seven padding chars", in: "M=======", wantErr: base32.ErrInvalidPadding},
		{name: "only padding", in: "========", wantErr: base32.ErrInvalidPadding},
		{name: "padding not on group boundary", in: "MY=====", wantErr: base32.ErrInvalidPadding},
		{name: "padding count mismatches data", in: "MZXW6Y=", wantErr: base32.ErrInvalidPadding},
		{name: "padding inside data", in: "MZ=W6YTB", wantErr: base32.ErrInvalidPadding},
		{name: "padding in first group", in: "MY======MZXW6YTB", wantErr: base32.ErrInvalidPadding},
		{name: "lowercase", in: "mzxw6ytb", wantErr: base32.ErrInvalidCharacter},
		{name: "digit one", in: "MZXW6YT1", wantErr: base32.ErrInvalidCharacter},
		{name: "digit eight", in: "MZXW6YT8", wantErr: base32.ErrInvalidCharacter},
		{name: "space", in: "MZX 6YTB", wantErr: base32.ErrInvalidCharacter},
		{name: "single char tail", in: "MZXW6YTBO", wantErr: base32.ErrInvalidLength},
		{name: "three char tail", in: "MZX", wantErr: base32.ErrInvalidLength},
		{name: "six char tail", in: "MZXW6Y", wantErr: base32.ErrInvalidLength},
		{name: "non-zero trailing bits padded", in: "MZ======", wantErr: base32.ErrTrailingBits},
		{name: "non-zero trailing bits unpadded", in: "MZ", wantErr: base32.ErrTrailingBits},
		{name: "non-zero trailing bits four chars", in: "MZXR", wantErr: base32.ErrTrailingBits},
		{name: "non-zero trailing bits seven chars", in: "MZXW6YR", wantErr: base32.ErrTrailingBits},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := base32.Decode(tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, base32.ErrMalformed)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	for n := 0; n <= 64; n++ {
		buf := make([]byte, n)
		_, err := rand.Read(buf)
		require.NoError(t, err)

		encoded := base32.Encode(buf)
		assert.Equal(t, stdbase32.StdEncoding.EncodeToString(buf), encoded, "length %d", n)

		decoded, err := base32.Decode(encoded)
		require.NoError(t, err, "length %d", n)
		assert.Equal(t, buf, decoded, "length %d", n)

		unpadded := base32.EncodeNoPadding(buf)
		decoded, err = base32.Decode(unpadded)
		require.NoError(t, err, "length %d", n)
		assert.Equal(t, buf, decoded, "length %d", n)
	}
}

func TestDecode_MatchesStandardLibrary(t *testing.T) {
	t.Parallel()
	enc := stdbase32.StdEncoding.WithPadding(stdbase32.NoPadding)
	for n := 5; n <= 40; n += 5 {
		buf := make([]byte, n)
		_, err := rand.Read(buf)
		require.NoError(t, err)

		s := enc.EncodeToString(buf)
		got, err := base32.Decode(s)
		require.NoError(t, err)
		assert.Equal(t, buf, got)
	}
}

func BenchmarkDecode(b *testing.B) {
	const secret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
	for b.Loop() {
		_, _ = base32.Decode(secret)
	}
}
