package codec

import "fmt"

// Bytes is an identity codec for []byte values. Encode returns the input
// unchanged; Decode hands the stored bytes to a *[]byte destination. Useful
// when the caller already holds raw payloads and wants no re-encoding.
type Bytes struct{}

var _ Codec = Bytes{}

func (Bytes) Encode(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("codec: bytes encode: want []byte, got %T", v)
	}
	return b, nil
}

func (Bytes) Decode(data []byte, dest any) error {
	p, ok := dest.(*[]byte)
	if !ok {
		return fmt.Errorf("codec: bytes decode: want *[]byte, got %T", dest)
	}
	*p = data
	return nil
}

// String is a trivial codec for Go string values. By convention this
// assumes UTF-8 and performs no validation.
type String struct{}

var _ Codec = String{}

func (String) Encode(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("codec: string encode: want string, got %T", v)
	}
	return []byte(s), nil
}

func (String) Decode(data []byte, dest any) error {
	p, ok := dest.(*string)
	if !ok {
		return fmt.Errorf("codec: string decode: want *string, got %T", dest)
	}
	*p = string(data)
	return nil
}
