package inferencepb

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// wireMessage is implemented by every message in this package.
type wireMessage interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// Codec encodes the messages of this package. It reports the name "proto" so
// the content-type on the wire is application/grpc+proto and any protobuf
// server understands it. Install it per connection with grpc.ForceCodec, or
// on a server with grpc.ForceServerCodec; it is never registered globally.
type Codec struct{}

var _ encoding.Codec = Codec{}

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("inferencepb: cannot marshal %T", v)
	}
	return m.Marshal()
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("inferencepb: cannot unmarshal into %T", v)
	}
	return m.Unmarshal(data)
}

func (Codec) Name() string { return "proto" }
