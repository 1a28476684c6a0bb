package model

import "fmt"

// Point is a single row bound for one table: a timestamp, a set of tag
// values and a set of field values. The client never enforces that tag and
// field key sets stay disjoint across a table's lifetime; that is a
// server-side concern.
type Point struct {
	Table       string
	TimestampMs int64
	Tags        map[string]Value
	Fields      map[string]Value
}

// PointsBuilder accumulates points for a single WriteRequest: a small
// fluent surface over a validated slice.
type PointsBuilder struct {
	points []Point
	err    error
}

func NewPointsBuilder() *PointsBuilder {
	return &PointsBuilder{}
}

// AddPoint begins a new point for table, to be filled in with Tag/Field
// calls and closed with Add.
func (b *PointsBuilder) AddPoint(table string, timestampMs int64) *PointWriter {
	return &PointWriter{
		parent: b,
		point: Point{
			Table:       table,
			TimestampMs: timestampMs,
			Tags:        make(map[string]Value),
			Fields:      make(map[string]Value),
		},
	}
}

// Build validates and returns the accumulated points.
func (b *PointsBuilder) Build() ([]Point, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.points, nil
}

// PointWriter fills in one point's tags/fields before it is appended to the
// parent PointsBuilder via Add.
type PointWriter struct {
	parent *PointsBuilder
	point  Point
}

func (w *PointWriter) Tag(key string, v Value) *PointWriter {
	w.point.Tags[key] = v
	return w
}

func (w *PointWriter) Field(key string, v Value) *PointWriter {
	w.point.Fields[key] = v
	return w
}

// Add validates and appends the point being built, returning to the parent
// builder for chaining.
func (w *PointWriter) Add() *PointsBuilder {
	if w.parent.err != nil {
		return w.parent
	}
	if err := validatePoint(w.point); err != nil {
		w.parent.err = err
		return w.parent
	}
	w.parent.points = append(w.parent.points, w.point)
	return w.parent
}

func validatePoint(p Point) error {
	if p.Table == "" {
		return fmt.Errorf("model: point is missing a table name")
	}
	return nil
}
