package bencode_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	anacrolix "github.com/anacrolix/torrent/bencode"
	"github.com/stretchr/testify/require"

	"tget/internal/bencode"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input    string
		expected bencode.Value
	}{
		{"0:", bencode.String{}},
		{"4:spam", bencode.String("spam")},
		{"3:\x00\xff\x01", bencode.String{0, 0xff, 1}},
		{"i0e", bencode.Int(0)},
		{"i42e", bencode.Int(42)},
		{"i-42e", bencode.Int(-42)},
		{"i9223372036854775807e", bencode.Int(9223372036854775807)},
		{"i-9223372036854775808e", bencode.Int(-9223372036854775808)},
		{"le", bencode.List{}},
		{"de", bencode.Dict{}},
		{"l4:spami7ee", bencode.List{bencode.String("spam"), bencode.Int(7)}},
		{"d3:bar4:spam3:fooi42ee", bencode.Dict{"bar": bencode.String("spam"), "foo": bencode.Int(42)}},
		{"d1:ad1:bleee", bencode.Dict{"a": bencode.Dict{"b": bencode.List{}}}},
	}

	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			t.Parallel()

			v, err := bencode.DecodeBytes([]byte(c.input))
			require.NoError(t, err)
			require.True(t, bencode.Equal(c.expected, v), "got %#v", v)
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unsorted keys":          "d3:bbb3:bar3:aaa3:fooe",
		"duplicate key":          "d3:foo3:bar3:foo3:baze",
		"duplicate dangling key": "d3:foo3:bar3:fooe",
		"empty key":              "d0:i1ee",
		"missing value":          "d3:fooe",
		"integer key":            "di1ei2ee",
		"negative zero":          "i-0e",
		"leading zero":           "i00e",
		"leading zero negative":  "i-03e",
		"empty integer":          "ie",
		"only minus":             "i-e",
		"minus in the middle":    "i1-2e",
		"letter in integer":      "i1a2e",
		"integer overflow":       "i9223372036854775808e",
		"unknown prefix":         "x",
		"letter in length":       "1a:b",
		"negative length":        "-1:a",
		"length leading zero":    "01:a",
		"trailing data":          "i1ei2e",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := bencode.DecodeBytes([]byte(input))
			require.Error(t, err)
			require.ErrorIs(t, err, bencode.ErrFormat)

			var fe *bencode.FormatError
			require.True(t, errors.As(err, &fe))
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "5:abc", "i12", "l4:spam", "d3:foo", "d3:fooi1e", "10:"} {
		_, err := bencode.DecodeBytes([]byte(input))
		require.ErrorIs(t, err, io.ErrUnexpectedEOF, "input %q", input)
		require.ErrorIs(t, err, bencode.ErrFormat, "input %q", input)
	}
}

func TestDecodeHugeLengthDoesNotAllocate(t *testing.T) {
	t.Parallel()

	_, err := bencode.DecodeBytes([]byte("999999999999:abc"))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeDepthLimit(t *testing.T) {
	t.Parallel()

	input := strings.Repeat("l", bencode.MaxDepth+1) + strings.Repeat("e", bencode.MaxDepth+1)
	_, err := bencode.DecodeBytes([]byte(input))
	require.ErrorIs(t, err, bencode.ErrFormat)

	input = strings.Repeat("l", bencode.MaxDepth) + strings.Repeat("e", bencode.MaxDepth)
	_, err = bencode.DecodeBytes([]byte(input))
	require.NoError(t, err)
}

func TestDecoderStream(t *testing.T) {
	t.Parallel()

	d := bencode.NewDecoder(strings.NewReader("i1e4:spamle"))

	v, err := d.Decode()
	require.NoError(t, err)
	require.Equal(t, bencode.Int(1), v)

	v, err = d.Decode()
	require.NoError(t, err)
	require.Equal(t, bencode.String("spam"), v)

	v, err = d.Decode()
	require.NoError(t, err)
	require.Equal(t, bencode.List{}, v)
	require.EqualValues(t, 11, d.Offset())
}

func TestEncodeSortsKeys(t *testing.T) {
	t.Parallel()

	v := bencode.Dict{
		"zeta":  bencode.Int(1),
		"alpha": bencode.String("x"),
		"Beta":  bencode.List{bencode.Int(-3)},
		"a\xff": bencode.Dict{},
		"a":     bencode.Int(0),
	}

	require.Equal(t, "d4:Betali-3ee1:ai0e5:alpha1:x2:a\xffde4:zetai1ee", string(bencode.Encode(v)))
}

func TestEncodeMatchesReferenceEncoder(t *testing.T) {
	t.Parallel()

	v := bencode.Dict{
		"piece length": bencode.Int(262144),
		"name":         bencode.String("ubuntu.iso"),
		"length":       bencode.Int(1 << 33),
		"files": bencode.List{
			bencode.Dict{"path": bencode.List{bencode.String("a")}, "length": bencode.Int(1)},
		},
	}

	expected, err := anacrolix.Marshal(map[string]any{
		"piece length": 262144,
		"name":         "ubuntu.iso",
		"length":       int64(1 << 33),
		"files": []any{
			map[string]any{"path": []string{"a"}, "length": 1},
		},
	})
	require.NoError(t, err)
	require.Equal(t, string(expected), string(bencode.Encode(v)))
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	values := []bencode.Value{
		bencode.String{},
		bencode.String("\x00binary\xfe"),
		bencode.Int(-1),
		bencode.Int(1 << 40),
		bencode.List{},
		bencode.List{bencode.List{bencode.Dict{}}, bencode.Int(3)},
		bencode.Dict{
			"announce": bencode.String("http://tracker/announce"),
			"info": bencode.Dict{
				"pieces": bencode.String(bytes.Repeat([]byte{0xab}, 40)),
				"length": bencode.Int(1000),
			},
		},
	}

	for _, v := range values {
		encoded := bencode.Encode(v)

		decoded, err := bencode.DecodeBytes(encoded)
		require.NoError(t, err, "input %q", encoded)
		require.True(t, bencode.Equal(v, decoded), "input %q", encoded)

		require.Equal(t, encoded, bencode.Encode(decoded))
	}
}

func TestEncodeTo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, bencode.EncodeTo(&buf, bencode.List{bencode.Int(1), bencode.String("a")}))
	require.Equal(t, "li1e1:ae", buf.String())
}

func TestEncodeNilPanics(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		bencode.Encode(bencode.List{nil})
	})
}

func TestRequire(t *testing.T) {
	t.Parallel()

	d := bencode.Dict{"name": bencode.String("x"), "length": bencode.Int(3)}

	name, err := bencode.Require[bencode.String](d, "name")
	require.NoError(t, err)
	require.Equal(t, bencode.String("x"), name)

	_, err = bencode.Require[bencode.String](d, "length")
	require.ErrorIs(t, err, bencode.ErrFormat)
	require.ErrorContains(t, err, `key "length": expected string, got integer`)

	_, err = bencode.Require[bencode.Dict](d, "info")
	require.ErrorContains(t, err, `missing key "info"`)
}
