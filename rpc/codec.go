package rpc

import "encoding/json"

// jsonCodecName registers a JSON codec under the gRPC "content-subtype"
// mechanism so GrpcInvoker can ride google.golang.org/grpc's connection
// pooling, flow control and stream lifecycle without requiring protoc-
// generated message types for the wire structs in wire.go.
const jsonCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return jsonCodecName }
