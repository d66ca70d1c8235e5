package backends

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// FailureKind classifies a runtime call failure. The engine logs the kind
// and collapses every one of them to a raw-text fallback.
type FailureKind string

const (
	FailConnectivity FailureKind = "connectivity"
	FailTimeout      FailureKind = "timeout"
	FailProtocol     FailureKind = "protocol"
	FailModel        FailureKind = "model"
)

// Error is a classified backend failure.
type Error struct {
	Kind   FailureKind
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Status > 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RequestError classifies a transport-level failure: deadline overruns are
// timeouts, everything else is a connectivity problem.
func RequestError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: FailTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: FailTimeout, Err: err}
	}
	return &Error{Kind: FailConnectivity, Err: err}
}

// StatusError classifies a non-success HTTP response. Services report an
// unknown model with a 4xx whose body names the model; that becomes a
// model error, every other status a protocol error.
func StatusError(status int, body string) *Error {
	kind := FailProtocol
	if status >= 400 && status < 500 && strings.Contains(strings.ToLower(body), "model") {
		kind = FailModel
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return &Error{Kind: kind, Status: status, Msg: strings.TrimSpace(body)}
}

// ProtocolError marks an undecodable or semantically empty response body.
func ProtocolError(msg string, err error) *Error {
	return &Error{Kind: FailProtocol, Msg: msg, Err: err}
}

// KindOf extracts the failure kind from any error returned by a Backend.
// Unclassified errors count as connectivity failures.
func KindOf(err error) FailureKind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailTimeout
	}
	return FailConnectivity
}
