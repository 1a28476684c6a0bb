package rpc

import (
	"testing"

	"github.com/mrrtree/ceresdb-client-go/model"
	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeValueRoundTrips(t *testing.T) {
	cases := []model.Value{
		model.NullValue(),
		model.BoolValue(true),
		model.Int64Value(-7),
		model.Uint64Value(7),
		model.Float64Value(3.14),
		model.StringValue("hello"),
		model.TimestampValue(1234),
		model.VarbinaryValue([]byte{1, 2, 3}),
	}
	for _, v := range cases {
		got := DecodeValue(EncodeValue(v))
		assert.Equal(t, v.Kind(), got.Kind())
		assert.Equal(t, v.String(), got.String())
	}
}

func TestEncodePointsPreservesTableAndTimestamp(t *testing.T) {
	points := []model.Point{
		{
			Table:       "machine_table",
			TimestampMs: 42,
			Tags:        map[string]model.Value{"host": model.StringValue("h1")},
			Fields:      map[string]model.Value{"cpu": model.Float64Value(0.5)},
		},
	}
	wire := EncodePoints(points)
	assert.Len(t, wire, 1)
	assert.Equal(t, "machine_table", wire[0].Table)
	assert.Equal(t, int64(42), wire[0].TimestampMs)
	assert.Equal(t, "h1", wire[0].Tags["host"].Str)
}

func TestHeaderOKReportsUnknownCodeAsSuccess(t *testing.T) {
	var h Header
	assert.True(t, h.OK())
	h.Code = 1
	assert.False(t, h.OK())
}
