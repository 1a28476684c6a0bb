package rpc

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"
)

// zstdCompressorName is registered with grpc's wire-level compressor
// registry (distinct from the jsonCodec content-subtype) so GrpcInvoker can
// opt every connection into zstd frame compression via grpc.UseCompressor,
// amortizing the cost of many small StreamWriter flushes.
const zstdCompressorName = "zstd"

func init() {
	encoding.RegisterCompressor(&zstdCompressor{})
}

type zstdCompressor struct{}

func (*zstdCompressor) Name() string { return zstdCompressorName }

func (*zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w)
}

func (*zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	return zstd.NewReader(r)
}
