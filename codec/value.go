// Package codec implements the canonical bencode encoding used for torrent
// descriptors. Values are explicit tagged variants; the decoder accepts only
// canonical input, so re-encoding a decoded value reproduces the input bytes.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

// ErrMalformedEncoding is returned for any input that is not canonical bencode.
var ErrMalformedEncoding = errors.New("malformed encoding")

// Value is one of Int, String, List or Dict.
type Value interface {
	bencodeValue()
}

// Int is a bencoded integer.
type Int int64

// String is a bencoded byte string. It carries raw bytes, not text.
type String []byte

// List is an ordered bencoded list.
type List []Value

// Dict is a bencoded dictionary. Keys are encoded in ascending byte order.
type Dict map[string]Value

func (Int) bencodeValue()    {}
func (String) bencodeValue() {}
func (List) bencodeValue()   {}
func (Dict) bencodeValue()   {}

// sortedKeys returns the keys of d in canonical order.
func (d Dict) sortedKeys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d Dict) lookup(key string) (Value, error) {
	v, ok := d[key]
	if !ok {
		return nil, fmt.Errorf("%w: missing key %q", ErrMalformedEncoding, key)
	}
	return v, nil
}

// GetInt returns the integer stored under key.
func (d Dict) GetInt(key string) (int64, error) {
	v, err := d.lookup(key)
	if err != nil {
		return 0, err
	}
	i, ok := v.(Int)
	if !ok {
		return 0, fmt.Errorf("%w: key %q is %s, want integer", ErrMalformedEncoding, key, kind(v))
	}
	return int64(i), nil
}

// GetBytes returns the byte string stored under key.
func (d Dict) GetBytes(key string) ([]byte, error) {
	v, err := d.lookup(key)
	if err != nil {
		return nil, err
	}
	s, ok := v.(String)
	if !ok {
		return nil, fmt.Errorf("%w: key %q is %s, want string", ErrMalformedEncoding, key, kind(v))
	}
	return []byte(s), nil
}

// GetDict returns the dictionary stored under key.
func (d Dict) GetDict(key string) (Dict, error) {
	v, err := d.lookup(key)
	if err != nil {
		return nil, err
	}
	sub, ok := v.(Dict)
	if !ok {
		return nil, fmt.Errorf("%w: key %q is %s, want dictionary", ErrMalformedEncoding, key, kind(v))
	}
	return sub, nil
}

func kind(v Value) string {
	switch v.(type) {
	case Int:
		return "integer"
	case String:
		return "string"
	case List:
		return "list"
	case Dict:
		return "dictionary"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Equal reports whether a and b hold the same bencode value. Nil and empty
// strings, lists and dicts compare equal since they encode identically.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && bytes.Equal(av, bv)
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Dict:
		bv, ok := b.(Dict)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return a == nil && b == nil
	}
}
