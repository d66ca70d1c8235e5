package backends

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRequestErrorClassifiesTimeout(t *testing.T) {
	err := RequestError(fmt.Errorf("do request: %w", context.DeadlineExceeded))
	if err.Kind != FailTimeout {
		t.Fatalf("expected timeout, got %s", err.Kind)
	}

	err = RequestError(errors.New("connection refused"))
	if err.Kind != FailConnectivity {
		t.Fatalf("expected connectivity, got %s", err.Kind)
	}
}

func TestStatusErrorClassifiesUnknownModel(t *testing.T) {
	err := StatusError(404, `{"error":"model 'nope' not found"}`)
	if err.Kind != FailModel {
		t.Fatalf("expected model error, got %s", err.Kind)
	}

	err = StatusError(500, "internal server error")
	if err.Kind != FailProtocol {
		t.Fatalf("expected protocol error, got %s", err.Kind)
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("call: %w", &Error{Kind: FailModel})
	if got := KindOf(wrapped); got != FailModel {
		t.Fatalf("expected model kind through wrapping, got %s", got)
	}
	if got := KindOf(errors.New("plain")); got != FailConnectivity {
		t.Fatalf("unclassified errors must count as connectivity, got %s", got)
	}
	if got := KindOf(context.DeadlineExceeded); got != FailTimeout {
		t.Fatalf("expected timeout, got %s", got)
	}
}
