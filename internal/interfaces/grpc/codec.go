package grpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
)

// hybridCodec lets a single grpc.Server serve both the real protobuf-wire
// services generated by upstream packages (health, reflection) and the
// hand-declared serving messages in internal/interfaces/grpc/pb, which are
// plain Go structs rather than protoc-gen-go output. proto.Message values
// take the standard wire path; everything else falls back to JSON, which
// keeps the serving messages human-inspectable on the wire without pulling
// in a protoc toolchain step this module never runs.
type hybridCodec struct{}

// Name reports "proto" so grpc-go selects this codec for the default
// application/grpc content type, i.e. every client that doesn't request a
// content-subtype.
func (hybridCodec) Name() string { return "proto" }

func (hybridCodec) Marshal(v interface{}) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	return json.Marshal(v)
}

func (hybridCodec) Unmarshal(data []byte, v interface{}) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(hybridCodec{})
}
