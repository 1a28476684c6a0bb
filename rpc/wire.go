package rpc

import (
	"github.com/mrrtree/ceresdb-client-go/cerrors"
	"github.com/mrrtree/ceresdb-client-go/model"
)

// Header carries the server-reported status code and message that every
// wire response envelope includes. Code reuses cerrors.Code
// directly: the wire taxonomy and the client's internal taxonomy are the
// same set, so there is no separate translation table to keep
// in sync.
type Header struct {
	Code cerrors.Code `json:"code"`
	Msg  string       `json:"msg"`
}

// OK reports whether the header carries a successful (zero-value /
// unrecognized-as-error) status.
func (h Header) OK() bool {
	return h.Code == cerrors.CodeUnknown
}

// WireEndpoint is the (ip, port) pair as it appears on the wire inside a
// RouteResponse, separate from model.Endpoint so decode/encode stays
// explicit at the RPC boundary.
type WireEndpoint struct {
	IP   string `json:"ip"`
	Port uint16 `json:"port"`
}

// RouteRequest asks the cluster to resolve a set of tables to endpoints.
type RouteRequest struct {
	Database string   `json:"database"`
	Tables   []string `json:"tables"`
}

type RouteEntry struct {
	Table    string       `json:"table"`
	Endpoint WireEndpoint `json:"endpoint"`
}

type RouteResponse struct {
	Header Header       `json:"header"`
	Routes []RouteEntry `json:"routes"`
}

// WriteRequest carries a batch of points bound for one endpoint.
// Points are encoded with the wire-facing shape produced by
// EncodePoints.
type WriteRequest struct {
	Database string      `json:"database"`
	Points   []WirePoint `json:"points"`
}

type WirePoint struct {
	Table       string           `json:"table"`
	TimestampMs int64            `json:"timestamp_ms"`
	Tags        map[string]Value `json:"tags"`
	Fields      map[string]Value `json:"fields"`
}

// Value is the wire-facing encoding of model.Value: a discriminated union
// tagged by Kind, with exactly one payload field populated.
type Value struct {
	Kind  model.ValueKind `json:"kind"`
	Bool  bool            `json:"b,omitempty"`
	Int   int64           `json:"i,omitempty"`
	Uint  uint64          `json:"u,omitempty"`
	F32   float32         `json:"f32,omitempty"`
	F64   float64         `json:"f64,omitempty"`
	Str   string          `json:"s,omitempty"`
	Bytes []byte          `json:"buf,omitempty"`
}

type WriteResponse struct {
	Header  Header `json:"header"`
	Success uint64 `json:"success"`
	Failed  uint64 `json:"failed"`
}

// SqlQueryRequest carries a SQL statement plus the tables it references.
type SqlQueryRequest struct {
	Database string   `json:"database"`
	Tables   []string `json:"tables"`
	SQL      string   `json:"sql"`
}

type WireRow struct {
	Columns []WireColumn `json:"columns"`
}

type WireColumn struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

type SqlQueryResponse struct {
	Header Header    `json:"header"`
	Rows   []WireRow `json:"rows"`
}

// EncodeValue converts a model.Value to its wire shape.
func EncodeValue(v model.Value) Value {
	out := Value{Kind: v.Kind()}
	switch v.Kind() {
	case model.KindBool:
		out.Bool, _ = v.AsBool()
	case model.KindInt8, model.KindInt16, model.KindInt32, model.KindInt64:
		out.Int, _ = v.AsInt64()
	case model.KindUint8, model.KindUint16, model.KindUint32, model.KindUint64:
		out.Uint, _ = v.AsUint64()
	case model.KindFloat32:
		out.F32, _ = v.AsFloat32()
	case model.KindFloat64:
		out.F64, _ = v.AsFloat64()
	case model.KindString:
		out.Str, _ = v.AsString()
	case model.KindTimestamp:
		out.Int, _ = v.AsTimestamp()
	case model.KindVarbinary:
		out.Bytes, _ = v.AsVarbinary()
	}
	return out
}

// DecodeValue converts a wire Value back to a model.Value.
func DecodeValue(v Value) model.Value {
	switch v.Kind {
	case model.KindNull:
		return model.NullValue()
	case model.KindBool:
		return model.BoolValue(v.Bool)
	case model.KindInt8:
		return model.Int8Value(int8(v.Int))
	case model.KindInt16:
		return model.Int16Value(int16(v.Int))
	case model.KindInt32:
		return model.Int32Value(int32(v.Int))
	case model.KindInt64:
		return model.Int64Value(v.Int)
	case model.KindUint8:
		return model.Uint8Value(uint8(v.Uint))
	case model.KindUint16:
		return model.Uint16Value(uint16(v.Uint))
	case model.KindUint32:
		return model.Uint32Value(uint32(v.Uint))
	case model.KindUint64:
		return model.Uint64Value(v.Uint)
	case model.KindFloat32:
		return model.Float32Value(v.F32)
	case model.KindFloat64:
		return model.Float64Value(v.F64)
	case model.KindString:
		return model.StringValue(v.Str)
	case model.KindTimestamp:
		return model.TimestampValue(v.Int)
	case model.KindVarbinary:
		return model.VarbinaryValue(v.Bytes)
	default:
		return model.NullValue()
	}
}

// EncodePoints converts points to their wire shape.
func EncodePoints(points []model.Point) []WirePoint {
	out := make([]WirePoint, len(points))
	for i, p := range points {
		tags := make(map[string]Value, len(p.Tags))
		for k, v := range p.Tags {
			tags[k] = EncodeValue(v)
		}
		fields := make(map[string]Value, len(p.Fields))
		for k, v := range p.Fields {
			fields[k] = EncodeValue(v)
		}
		out[i] = WirePoint{
			Table:       p.Table,
			TimestampMs: p.TimestampMs,
			Tags:        tags,
			Fields:      fields,
		}
	}
	return out
}

// DecodeRow converts a wire row to a model.Row.
func DecodeRow(r WireRow) model.Row {
	cols := make([]model.Column, len(r.Columns))
	for i, c := range r.Columns {
		cols[i] = model.Column{Name: c.Name, Value: DecodeValue(c.Value)}
	}
	return model.NewRow(cols)
}
