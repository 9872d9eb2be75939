// Package logging builds the process logger for deepagent.
//
// It wraps Zap with a Trace level below Debug, optional export through the
// OpenTelemetry log bridge, encoder-level secret redaction and sampling that
// never drops errors.
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
// Correlation identifiers travel on the context and are attached to every
// entry written through the context-aware methods:
//
//	ctx = logging.WithRunID(ctx, runID)
//	logger.Info(ctx, "delegated task", zap.String("agent", name))
//
// Packages that accept a *zap.Logger receive Underlying().
//
// In tests, NewTestLogger records entries in memory and offers assertions
// such as AssertLogged and AssertNoSecrets.
package logging
