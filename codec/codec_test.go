package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	bencode "github.com/jackpal/bencode-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func genValue(depth int) *rapid.Generator[Value] {
	return rapid.Custom(func(t *rapid.T) Value {
		maxKind := 3
		if depth <= 0 {
			maxKind = 1
		}
		switch rapid.IntRange(0, maxKind).Draw(t, "kind") {
		case 0:
			return Int(rapid.Int64().Draw(t, "int"))
		case 1:
			return String(rapid.SliceOf(rapid.Byte()).Draw(t, "bytes"))
		case 2:
			n := rapid.IntRange(0, 4).Draw(t, "listLen")
			l := List{}
			for i := 0; i < n; i++ {
				l = append(l, genValue(depth-1).Draw(t, "item"))
			}
			return l
		default:
			n := rapid.IntRange(0, 4).Draw(t, "dictLen")
			d := Dict{}
			for i := 0; i < n; i++ {
				d[rapid.String().Draw(t, "key")] = genValue(depth-1).Draw(t, "value")
			}
			return d
		}
	})
}

func Test_encode(t *testing.T) {
	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"zero", Int(0), "i0e"},
		{"negative", Int(-42), "i-42e"},
		{"string", String("spam"), "4:spam"},
		{"empty string", String(nil), "0:"},
		{"list", List{String("a"), Int(1)}, "l1:ai1ee"},
		{"empty list", List{}, "le"},
		{"dict sorted", Dict{"piece length": Int(2), "length": Int(5), "name": String("x")}, "d6:lengthi5e4:name1:x12:piece lengthi2ee"},
		{"nested", Dict{"info": Dict{"a": List{}}}, "d4:infod1:aleee"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Encode(tt.in)))
		})
	}
}

func Test_encodeTo(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeTo(&buf, List{Int(7)}))
	assert.Equal(t, "li7ee", buf.String())
}

func Test_decodeRejectsNonCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty input", ""},
		{"keys out of order", "d4:name1:x6:lengthi5ee"},
		{"duplicate keys", "d1:ai1e1:ai2ee"},
		{"leading zero int", "i03e"},
		{"negative zero", "i-0e"},
		{"empty int", "ie"},
		{"bad digit", "i1x2e"},
		{"unterminated int", "i12"},
		{"leading zero length", "03:abc"},
		{"length overrun", "10:abc"},
		{"truncated list", "l1:a"},
		{"truncated dict", "d1:ai1e"},
		{"non string key", "di1ei2ee"},
		{"unknown type", "x"},
		{"trailing bytes", "i1ei2e"},
		{"int overflow", "i99999999999999999999e"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.in))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedEncoding), "got %v", err)
			var syn *SyntaxError
			assert.True(t, errors.As(err, &syn))
		})
	}
}

func Test_decodeMaxDepth(t *testing.T) {
	deep := strings.Repeat("l", MaxDepth+1) + strings.Repeat("e", MaxDepth+1)
	_, err := Decode([]byte(deep))
	assert.ErrorIs(t, err, ErrMalformedEncoding)

	ok := strings.Repeat("l", MaxDepth) + strings.Repeat("e", MaxDepth)
	_, err = Decode([]byte(ok))
	assert.NoError(t, err)
}

func Test_decodeCanonical(t *testing.T) {
	in := "d8:announce21:http://127.0.0.1:50014:infod6:lengthi5e4:name5:a.txt12:piece lengthi1048576e6:pieces0:ee"
	v, err := Decode([]byte(in))
	require.NoError(t, err)

	d, ok := v.(Dict)
	require.True(t, ok)
	announce, err := d.GetBytes("announce")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5001", string(announce))

	info, err := d.GetDict("info")
	require.NoError(t, err)
	length, err := info.GetInt("length")
	require.NoError(t, err)
	assert.EqualValues(t, 5, length)

	assert.Equal(t, in, string(Encode(v)))
}

func Test_dictAccessorErrors(t *testing.T) {
	d := Dict{"n": Int(1), "s": String("x")}

	_, err := d.GetInt("missing")
	assert.ErrorIs(t, err, ErrMalformedEncoding)
	_, err = d.GetInt("s")
	assert.ErrorIs(t, err, ErrMalformedEncoding)
	_, err = d.GetBytes("n")
	assert.ErrorIs(t, err, ErrMalformedEncoding)
	_, err = d.GetDict("n")
	assert.ErrorIs(t, err, ErrMalformedEncoding)
}

func Test_roundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := genValue(3).Draw(t, "value")
		encoded := Encode(v)
		decoded, err := Decode(encoded)
		if err != nil {
			t.Fatalf("decode of %q failed: %v", encoded, err)
		}
		if !Equal(v, decoded) {
			t.Fatalf("round trip mismatch for %q", encoded)
		}
		if !bytes.Equal(encoded, Encode(decoded)) {
			t.Fatalf("re-encoding is not stable for %q", encoded)
		}
	})
}

func Test_equal(t *testing.T) {
	assert.True(t, Equal(String(nil), String{}))
	assert.True(t, Equal(List(nil), List{}))
	assert.False(t, Equal(Int(1), String("1")))
	assert.False(t, Equal(Dict{"a": Int(1)}, Dict{"b": Int(1)}))
	assert.True(t, Equal(nil, nil))
}

func Test_interopWithBencodeGo(t *testing.T) {
	info := Dict{
		"name":         String("a.txt"),
		"length":       Int(5),
		"piece length": Int(2),
		"pieces":       String(strings.Repeat("x", 60)),
	}
	raw, err := bencode.Decode(bytes.NewReader(Encode(Dict{"info": info})))
	require.NoError(t, err)

	top, ok := raw.(map[string]interface{})
	require.True(t, ok)
	decoded, ok := top["info"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "a.txt", decoded["name"])
	assert.EqualValues(t, 5, decoded["length"])
	assert.EqualValues(t, 2, decoded["piece length"])
	assert.Len(t, decoded["pieces"], 60)
}
