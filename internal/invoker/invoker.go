// Package invoker is the boundary between the engine and the external
// executors that perform the actual job work (documentation build, publish).
// The engine hands over resolved inputs and receives a terminal status plus
// an output mapping; it never interprets what the external process did.
package invoker

import "context"

// Status is the terminal status reported by an external invocation.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// SecretHandle is an opaque reference to a named secret. The engine only
// forwards handles; resolving and redacting the value is the invoker's
// responsibility.
type SecretHandle struct {
	name string
}

// NewSecretHandle creates a handle for the named secret.
func NewSecretHandle(name string) SecretHandle { return SecretHandle{name: name} }

// Name returns the secret's name. Never the value.
func (h SecretHandle) Name() string { return h.name }

// String redacts; handles may end up in logs via %v.
func (h SecretHandle) String() string { return "secret:" + h.name + ":<redacted>" }

// Request is a fully resolved job handed to an external invoker.
type Request struct {
	RunID       string            `json:"run_id"`
	Job         string            `json:"job"`
	Target      string            `json:"target"`
	Inputs      map[string]string `json:"inputs,omitempty"`
	Params      []string          `json:"params,omitempty"`
	Permissions map[string]string `json:"permissions,omitempty"`
	Secrets     []SecretHandle    `json:"-"`
}

// SecretNames returns the names of all forwarded secret handles, for
// serialization across process boundaries.
func (r Request) SecretNames() []string {
	names := make([]string, 0, len(r.Secrets))
	for _, h := range r.Secrets {
		names = append(names, h.Name())
	}
	return names
}

// Result is the terminal outcome of an invocation.
type Result struct {
	Status  Status            `json:"status"`
	Outputs map[string]string `json:"outputs,omitempty"`
	Message string            `json:"message,omitempty"`
}

// Invoker hands a resolved job to an out-of-process executor and awaits its
// result. A returned Result with StatusFailed means the external process ran
// and reported failure; a returned error means the invocation itself could
// not complete (transport failure, context cancellation, deadline).
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Result, error)
}
