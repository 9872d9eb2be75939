package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
)

// Message is the wire form of an event. The error of an error event is
// carried as text.
type Message struct {
	orchestrator.Event
	Error string `json:"error,omitempty"`
}

// NATSSink publishes orchestrator events to NATS.
type NATSSink struct {
	nc     *nats.Conn
	prefix string
	flush  bool
	logger *zap.Logger
}

// SinkOption configures a NATSSink.
type SinkOption func(*NATSSink)

// WithPrefix sets the subject prefix. Defaults to DefaultPrefix.
func WithPrefix(prefix string) SinkOption {
	return func(s *NATSSink) {
		s.prefix = prefix
	}
}

// WithFlushOnTerminal flushes the connection after answer and error
// events so the end of a run is on the wire before Publish returns.
func WithFlushOnTerminal() SinkOption {
	return func(s *NATSSink) {
		s.flush = true
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) SinkOption {
	return func(s *NATSSink) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewNATSSink creates a sink publishing on nc.
func NewNATSSink(nc *nats.Conn, opts ...SinkOption) (*NATSSink, error) {
	if nc == nil {
		return nil, ErrNoConnection
	}
	s := &NATSSink{nc: nc, prefix: DefaultPrefix, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := validatePrefix(s.prefix); err != nil {
		return nil, err
	}
	s.logger = s.logger.Named("events")
	return s, nil
}

// Prefix returns the subject prefix.
func (s *NATSSink) Prefix() string {
	return s.prefix
}

// flushTimeout bounds the round trip of a flush.
const flushTimeout = 2 * time.Second

// Publish sends ev on its subject. ctx is unused; NATS publishes are
// buffered and do not block.
func (s *NATSSink) Publish(_ context.Context, ev orchestrator.Event) error {
	msg := Message{Event: ev}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := Subject(s.prefix, ev.RunID, ev.Type)
	if err := s.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	s.logger.Debug("published event", zap.String("subject", subject), zap.Int("seq", ev.Seq))

	if s.flush && (ev.Type == orchestrator.EventAnswer || ev.Type == orchestrator.EventError) {
		if err := s.nc.FlushTimeout(flushTimeout); err != nil {
			return fmt.Errorf("flush: %w", err)
		}
	}
	return nil
}

var _ orchestrator.EventSink = (*NATSSink)(nil)
