package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf serializes protobuf messages. Encode requires the value to
// implement proto.Message; Decode requires dest to be the concrete message
// pointer (e.g. &mypb.User{}). Anything else is rejected before touching
// the wire.
type Protobuf struct{}

var _ Codec = Protobuf{}

func (Protobuf) Encode(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("codec: protobuf encode: %T does not implement proto.Message", v)
	}
	return proto.Marshal(m)
}

func (Protobuf) Decode(data []byte, dest any) error {
	m, ok := dest.(proto.Message)
	if !ok {
		return fmt.Errorf("codec: protobuf decode: %T does not implement proto.Message", dest)
	}
	return proto.Unmarshal(data, m)
}
