package codec

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// Encode returns the canonical encoding of v. It panics if v, or any value
// nested in it, is nil.
func Encode(v Value) []byte {
	var buf bytes.Buffer
	writeValue(&buf, v)
	return buf.Bytes()
}

// EncodeTo writes the canonical encoding of v to w.
func EncodeTo(w io.Writer, v Value) error {
	_, err := w.Write(Encode(v))
	return err
}

func writeValue(buf *bytes.Buffer, v Value) {
	switch v := v.(type) {
	case Int:
		buf.WriteByte('i')
		buf.WriteString(strconv.FormatInt(int64(v), 10))
		buf.WriteByte('e')
	case String:
		writeString(buf, []byte(v))
	case List:
		buf.WriteByte('l')
		for _, item := range v {
			writeValue(buf, item)
		}
		buf.WriteByte('e')
	case Dict:
		buf.WriteByte('d')
		for _, k := range v.sortedKeys() {
			writeString(buf, []byte(k))
			writeValue(buf, v[k])
		}
		buf.WriteByte('e')
	default:
		panic(fmt.Sprintf("codec: cannot encode %T", v))
	}
}

func writeString(buf *bytes.Buffer, s []byte) {
	buf.WriteString(strconv.Itoa(len(s)))
	buf.WriteByte(':')
	buf.Write(s)
}
