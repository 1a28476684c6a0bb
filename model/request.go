package model

import "github.com/google/uuid"

// Tenant is the bearer tuple attached to every outgoing RPC's metadata,
// forwarded in each request header.
type Tenant struct {
	Tenant    string
	SubTenant string
	Token     string
}

// RequestContext is derived from client options and attached to every
// outgoing RPC as gRPC metadata.
type RequestContext struct {
	Database string
	Tenant   Tenant
	// RequestID correlates a retry chain across logs, generated once per
	// logical request rather than once per attempt.
	RequestID string
}

// NewRequestID generates a correlation id for a logical request, assigned
// once per call to RequestContext.RequestID and carried across every retry
// attempt of that call.
func NewRequestID() string {
	return uuid.NewString()
}

// WriteRequest is an ordered, non-empty-in-the-normal-path sequence of
// points bound for a single logical write call.
type WriteRequest struct {
	Points []Point
}

// Tables returns the distinct set of tables referenced by req, in first-seen
// order.
func (req WriteRequest) Tables() []string {
	seen := make(map[string]struct{}, len(req.Points))
	var tables []string
	for _, p := range req.Points {
		if _, ok := seen[p.Table]; ok {
			continue
		}
		seen[p.Table] = struct{}{}
		tables = append(tables, p.Table)
	}
	return tables
}

// WriteOk is the accumulated result of a (possibly fanned-out, possibly
// retried) write.
type WriteOk struct {
	Success uint64
	Failed  uint64
	// Tables is populated iff CollectWroteDetail is enabled.
	Tables map[string]struct{}
}

// Combine additively merges two WriteOk values: success/failed add, and
// Tables set-unions. Combine is associative and commutative.
func (w WriteOk) Combine(o WriteOk) WriteOk {
	out := WriteOk{
		Success: w.Success + o.Success,
		Failed:  w.Failed + o.Failed,
	}
	if w.Tables != nil || o.Tables != nil {
		out.Tables = make(map[string]struct{}, len(w.Tables)+len(o.Tables))
		for t := range w.Tables {
			out.Tables[t] = struct{}{}
		}
		for t := range o.Tables {
			out.Tables[t] = struct{}{}
		}
	}
	return out
}

// SqlQueryRequest is a SQL statement together with either an explicit table
// list (authoritative when present) or none, in which case the dispatcher
// extracts tables via an external scanner.
type SqlQueryRequest struct {
	SQL       string
	ForTables []string
}

// SqlQueryOk is the decoded result of a completed unary SQL query.
type SqlQueryOk struct {
	RowCount uint64
	Rows     []Row
}
