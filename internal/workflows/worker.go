package workflows

import (
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
)

// ClientConfig locates the Temporal frontend.
type ClientConfig struct {
	HostPort  string
	Namespace string
}

// Dial connects to Temporal, logging through logger.
func Dial(cfg ClientConfig, logger *zap.Logger) (client.Client, error) {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		Logger:    NewZapAdapter(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("dial temporal at %s: %w", cfg.HostPort, err)
	}
	return c, nil
}

// NewWorker creates a worker on taskQueue with the sub-agent workflow and
// acts registered. The caller starts and stops it.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(SubAgentWorkflow)
	w.RegisterActivity(acts)
	return w
}

// ZapAdapter routes Temporal SDK logs to zap.
type ZapAdapter struct {
	sugar *zap.SugaredLogger
}

// NewZapAdapter wraps logger. A nil logger discards everything.
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapAdapter{sugar: logger.Named("temporal").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (z *ZapAdapter) Debug(msg string, keyvals ...interface{}) { z.sugar.Debugw(msg, keyvals...) }
func (z *ZapAdapter) Info(msg string, keyvals ...interface{})  { z.sugar.Infow(msg, keyvals...) }
func (z *ZapAdapter) Warn(msg string, keyvals ...interface{})  { z.sugar.Warnw(msg, keyvals...) }
func (z *ZapAdapter) Error(msg string, keyvals ...interface{}) { z.sugar.Errorw(msg, keyvals...) }

// With returns an adapter that adds keyvals to every entry.
func (z *ZapAdapter) With(keyvals ...interface{}) log.Logger {
	return &ZapAdapter{sugar: z.sugar.With(keyvals...)}
}

var (
	_ log.Logger     = (*ZapAdapter)(nil)
	_ log.WithLogger = (*ZapAdapter)(nil)
)
