package codec

import "encoding/json"

// JSON is the default codec. It round-trips every JSON-representable
// structure exactly (map key order is irrelevant on both sides) and keeps
// stored values readable by non-Go tooling sharing the same backend.
type JSON struct{}

var _ Codec = JSON{}

func (JSON) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Decode(data []byte, dest any) error { return json.Unmarshal(data, dest) }
