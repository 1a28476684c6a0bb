// Package cerrors implements the client's error taxonomy: the
// Err type, its retriable-code classification, and the Result sum type that
// carries terminal failures back to the caller without tunneling them
// through panics.
package cerrors

import (
	"fmt"

	"github.com/mrrtree/ceresdb-client-go/model"
)

// Code enumerates the error kinds the client surfaces. These are kinds,
// not Go types: a single Err struct carries a Code plus context.
type Code uint8

const (
	CodeUnknown Code = iota
	CodeInvalidRoute
	CodeFlowControl
	CodeUnavailable
	CodeInternal
	CodeServerError
	CodeBadRequest
	CodeStreamTooLarge
	CodeShouldRetry
	CodeClientState
	CodeRouteTableException
	CodeQueryException
)

func (c Code) String() string {
	switch c {
	case CodeInvalidRoute:
		return "INVALID_ROUTE"
	case CodeFlowControl:
		return "FLOW_CONTROL"
	case CodeUnavailable:
		return "UNAVAILABLE"
	case CodeInternal:
		return "INTERNAL"
	case CodeServerError:
		return "SERVER_ERROR"
	case CodeBadRequest:
		return "BAD_REQUEST"
	case CodeStreamTooLarge:
		return "STREAM_TOO_LARGE"
	case CodeShouldRetry:
		return "SHOULD_RETRY"
	case CodeClientState:
		return "CLIENT_STATE"
	case CodeRouteTableException:
		return "ROUTE_TABLE_EXCEPTION"
	case CodeQueryException:
		return "QUERY_EXCEPTION"
	default:
		return "UNKNOWN"
	}
}

// Retriable reports whether the dispatcher is allowed to automatically
// retry a failure of this code.
func (c Code) Retriable() bool {
	switch c {
	case CodeInvalidRoute, CodeFlowControl, CodeUnavailable, CodeShouldRetry:
		return true
	default:
		return false
	}
}

// Err is the terminal-failure variant returned to callers. It carries enough context for the dispatcher to retry just the failed
// subset and for the caller to understand what happened.
type Err struct {
	Code     Code
	Message  string
	Endpoint model.Endpoint
	// FailedPoints is the subset of the original write that did not
	// succeed. Nil for query errors.
	FailedPoints []model.Point
	Cause        error
}

func (e *Err) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (endpoint=%s): %v", e.Code, e.Message, e.Endpoint, e.Cause)
	}
	return fmt.Sprintf("%s: %s (endpoint=%s)", e.Code, e.Message, e.Endpoint)
}

func (e *Err) Unwrap() error { return e.Cause }

func New(code Code, message string, endpoint model.Endpoint) *Err {
	return &Err{Code: code, Message: message, Endpoint: endpoint}
}

func Wrap(code Code, message string, endpoint model.Endpoint, cause error) *Err {
	return &Err{Code: code, Message: message, Endpoint: endpoint, Cause: cause}
}

// RouteTableException reports that the resolver could not produce any route
// at all for the requested tables.
func RouteTableException(message string) *Err {
	return &Err{Code: CodeRouteTableException, Message: message}
}

// QueryException reports a pre-flight query violation, such as a SQL
// statement whose tables span more than one endpoint.
func QueryException(message string) *Err {
	return &Err{Code: CodeQueryException, Message: message}
}

// IllegalState is raised at the call site (not returned) for fatal
// programming errors: double-init, write-before-init, writing to a
// completed stream.
type IllegalState struct {
	Message string
}

func (e *IllegalState) Error() string { return "illegal state: " + e.Message }

// Panic raises an IllegalState at the call site, the library's analogue of
// a fatal-on-misuse log line but scoped to this call instead of terminating
// the process.
func Panic(format string, args ...any) {
	panic(&IllegalState{Message: fmt.Sprintf(format, args...)})
}
