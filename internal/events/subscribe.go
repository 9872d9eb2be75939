package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
)

// subscriptionBuffer is the number of undelivered messages held per
// subscription.
const subscriptionBuffer = 64

// Received is an event read back from NATS.
type Received struct {
	Subject string
	Message Message
}

// Terminal reports whether the event ends its run.
func (r Received) Terminal() bool {
	return r.Message.Type == orchestrator.EventAnswer || r.Message.Type == orchestrator.EventError
}

// Subscribe streams the events of runID until ctx is done or the run
// ends. An empty runID follows every run under prefix and only stops with
// ctx. Messages that fail to decode are skipped.
func Subscribe(ctx context.Context, nc *nats.Conn, prefix, runID string) (<-chan Received, error) {
	if nc == nil {
		return nil, ErrNoConnection
	}
	if err := validatePrefix(prefix); err != nil {
		return nil, err
	}

	subject := AllSubject(prefix)
	if runID != "" {
		subject = RunSubject(prefix, runID)
	}

	msgs := make(chan *nats.Msg, subscriptionBuffer)
	sub, err := nc.ChanSubscribe(subject, msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	// The subscription must be live on the server before callers start a run.
	if err := nc.FlushTimeout(flushTimeout); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription: %w", err)
	}

	out := make(chan Received)
	go func() {
		defer close(out)
		defer func() {
			_ = sub.Unsubscribe()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				var m Message
				if err := json.Unmarshal(msg.Data, &m); err != nil {
					continue
				}
				r := Received{Subject: msg.Subject, Message: m}
				select {
				case out <- r:
				case <-ctx.Done():
					return
				}
				if runID != "" && r.Terminal() {
					return
				}
			}
		}
	}()
	return out, nil
}
