// Package backends defines the contract shared by the protocol-specific
// model service clients. Both variants expose a single Call entry point;
// the wire-format differences stay inside the client packages.
package backends

import "context"

// Request is a logical rewrite request, independent of wire protocol.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	TopP         float64
	MaxTokens    int

	// Stream requests fragment-wise delivery. OnFragment, when set, is
	// invoked for each fragment in arrival order before it is folded into
	// the returned text. It must not block.
	Stream     bool
	OnFragment func(fragment string)
}

// Backend is implemented by each protocol variant.
type Backend interface {
	Call(ctx context.Context, req Request) (string, error)
}
