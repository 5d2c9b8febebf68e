package api

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is negotiated on the wire via the grpc content-subtype
// ("application/grpc+json"). The retrieval pack carries no protoc
// toolchain output for this service, so requests/responses are plain
// JSON-tagged Go structs marshaled through this codec rather than
// generated protobuf messages — still real gRPC framing, streams, and
// interceptors, just a different wire codec.
const jsonCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
