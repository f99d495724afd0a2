package invoker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	derrors "git.home.luguber.info/inful/docsflow/internal/errors"
)

// wireRequest is the JSON payload published to workers. Secrets cross the
// wire as names only; the worker resolves values on its side.
type wireRequest struct {
	RunID       string            `json:"run_id"`
	Job         string            `json:"job"`
	Target      string            `json:"target"`
	Inputs      map[string]string `json:"inputs,omitempty"`
	Params      []string          `json:"params,omitempty"`
	Permissions map[string]string `json:"permissions,omitempty"`
	Secrets     []string          `json:"secrets,omitempty"`
}

// NATS dispatches jobs over NATS request/reply. One request per invocation;
// the reply carries the terminal Result. The per-invocation deadline on the
// context is the timeout ceiling.
type NATS struct {
	conn    *nats.Conn
	subject string
}

// NewNATS connects to the NATS server and returns an invoker publishing on
// the given subject.
func NewNATS(url, subject string) (*NATS, error) {
	conn, err := nats.Connect(url, nats.Name("docsflow"))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", url, err)
	}
	slog.Info("NATS invoker connected", "url", url, "subject", subject)
	return &NATS{conn: conn, subject: subject}, nil
}

// Invoke publishes the request and awaits the worker's reply.
func (n *NATS) Invoke(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(wireRequest{
		RunID:       req.RunID,
		Job:         req.Job,
		Target:      req.Target,
		Inputs:      req.Inputs,
		Params:      req.Params,
		Permissions: req.Permissions,
		Secrets:     req.SecretNames(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal invocation request: %w", err)
	}

	msg, err := n.conn.RequestWithContext(ctx, n.subject, payload)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			// No worker listening is transient from the engine's point of view.
			return Result{}, derrors.InvocationRetryable(req.Job, err)
		}
		return Result{}, err
	}

	var result Result
	if err := json.Unmarshal(msg.Data, &result); err != nil {
		return Result{}, fmt.Errorf("decode invocation reply: %w", err)
	}
	switch result.Status {
	case StatusSucceeded, StatusFailed, StatusCancelled:
	default:
		return Result{}, fmt.Errorf("invocation reply carries unknown status %q", result.Status)
	}
	return result, nil
}

// Close drains and closes the underlying connection.
func (n *NATS) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}
