// Package codec converts values to and from the byte form the stores hold.
package codec

// Codec encodes arbitrary values to []byte for storage and decodes stored
// bytes into a caller-supplied destination pointer, mirroring the standard
// marshal/unmarshal pair. Implementations must be safe for concurrent use.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, dest any) error
}
