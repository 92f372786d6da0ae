package codec

import (
	"fmt"
	"strconv"
)

// MaxDepth bounds list/dict nesting accepted by Decode.
const MaxDepth = 64

// SyntaxError describes where and why decoding failed.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", ErrMalformedEncoding, e.Offset, e.Msg)
}

// Unwrap lets errors.Is match ErrMalformedEncoding.
func (e *SyntaxError) Unwrap() error {
	return ErrMalformedEncoding
}

type decoder struct {
	data  []byte
	pos   int
	depth int
}

// Decode parses exactly one canonical value from data. Trailing bytes are an
// error.
func Decode(data []byte) (Value, error) {
	d := &decoder{data: data}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, d.fail("%d trailing bytes", len(d.data)-d.pos)
	}
	return v, nil
}

func (d *decoder) fail(format string, args ...interface{}) error {
	return &SyntaxError{Offset: d.pos, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) peek() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, d.fail("unexpected end of input")
	}
	return d.data[d.pos], nil
}

func (d *decoder) value() (Value, error) {
	c, err := d.peek()
	if err != nil {
		return nil, err
	}
	switch {
	case c == 'i':
		return d.integer()
	case c >= '0' && c <= '9':
		s, err := d.str()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case c == 'l':
		return d.list()
	case c == 'd':
		return d.dict()
	default:
		return nil, d.fail("unexpected byte %q", c)
	}
}

// digits consumes bytes up to (not including) end and validates them as a
// canonical decimal number.
func (d *decoder) digits(end byte, allowNegative bool) (string, error) {
	start := d.pos
	for d.pos < len(d.data) && d.data[d.pos] != end {
		d.pos++
	}
	if d.pos >= len(d.data) {
		d.pos = start
		return "", d.fail("unterminated number")
	}
	num := string(d.data[start:d.pos])
	body := num
	if allowNegative && len(body) > 0 && body[0] == '-' {
		body = body[1:]
		if body == "0" {
			d.pos = start
			return "", d.fail("negative zero")
		}
	}
	if body == "" {
		d.pos = start
		return "", d.fail("empty number")
	}
	for i := 0; i < len(body); i++ {
		if body[i] < '0' || body[i] > '9' {
			d.pos = start
			return "", d.fail("invalid digit %q", body[i])
		}
	}
	if len(body) > 1 && body[0] == '0' {
		d.pos = start
		return "", d.fail("leading zero in %q", num)
	}
	d.pos++ // end marker
	return num, nil
}

func (d *decoder) integer() (Value, error) {
	d.pos++ // 'i'
	start := d.pos
	num, err := d.digits('e', true)
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		d.pos = start
		return nil, d.fail("integer %q out of range", num)
	}
	return Int(n), nil
}

func (d *decoder) str() ([]byte, error) {
	start := d.pos
	num, err := d.digits(':', false)
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(num)
	if err != nil || n > len(d.data)-d.pos {
		d.pos = start
		return nil, d.fail("string length %s overruns input", num)
	}
	s := make([]byte, n)
	copy(s, d.data[d.pos:d.pos+n])
	d.pos += n
	return s, nil
}

func (d *decoder) enter() error {
	d.depth++
	if d.depth > MaxDepth {
		return d.fail("nesting deeper than %d", MaxDepth)
	}
	return nil
}

func (d *decoder) list() (Value, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	d.pos++ // 'l'
	l := List{}
	for {
		c, err := d.peek()
		if err != nil {
			return nil, err
		}
		if c == 'e' {
			d.pos++
			d.depth--
			return l, nil
		}
		item, err := d.value()
		if err != nil {
			return nil, err
		}
		l = append(l, item)
	}
}

func (d *decoder) dict() (Value, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	d.pos++ // 'd'
	m := Dict{}
	var prev string
	first := true
	for {
		c, err := d.peek()
		if err != nil {
			return nil, err
		}
		if c == 'e' {
			d.pos++
			d.depth--
			return m, nil
		}
		if c < '0' || c > '9' {
			return nil, d.fail("dictionary key must be a string")
		}
		keyPos := d.pos
		raw, err := d.str()
		if err != nil {
			return nil, err
		}
		key := string(raw)
		if !first && key <= prev {
			d.pos = keyPos
			if key == prev {
				return nil, d.fail("duplicate key %q", key)
			}
			return nil, d.fail("key %q not in ascending order after %q", key, prev)
		}
		first = false
		prev = key
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		m[key] = v
	}
}
