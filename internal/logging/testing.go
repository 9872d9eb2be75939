package logging

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry, Trace included, for assertions.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewTestLogger returns a TestLogger with no sampling or redaction.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core), level: TraceLevel}, logs: logs}
}

// All returns the recorded entries.
func (t *TestLogger) All() []observer.LoggedEntry { return t.logs.All() }

// FilterMessage returns entries whose message equals msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.logs.FilterMessage(msg)
}

// Reset drops the recorded entries.
func (t *TestLogger) Reset() { t.logs.TakeAll() }

// AssertLogged fails tb unless an entry at level contains substr.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if t.find(level, substr) == nil {
		tb.Errorf("no %s entry containing %q; got %s", LevelName(level), substr, t.dump())
	}
}

// AssertNotLogged fails tb if an entry at level contains substr.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if e := t.find(level, substr); e != nil {
		tb.Errorf("unexpected %s entry %q", LevelName(level), e.Message)
	}
}

// AssertField fails tb unless an entry with message msg has key set to want.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, e := range t.logs.FilterMessage(msg).All() {
		if got, ok := e.ContextMap()[key]; ok && fmt.Sprint(got) == fmt.Sprint(want) {
			return
		}
	}
	tb.Errorf("no entry %q with %s=%v; got %s", msg, key, want, t.dump())
}

// AssertNoSecrets fails tb if a sensitive key carries a clear value or a
// credential pattern appears in a message or string field.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	patterns := make([]*regexp.Regexp, 0, len(DefaultRedactedPatterns))
	for _, p := range DefaultRedactedPatterns {
		patterns = append(patterns, regexp.MustCompile(p))
	}
	leaks := func(s string) bool {
		for _, re := range patterns {
			if re.MatchString(s) {
				return true
			}
		}
		return false
	}

	for _, e := range t.logs.All() {
		if leaks(e.Message) {
			tb.Errorf("credential in message %q", e.Message)
		}
		for _, f := range e.Context {
			if f.Type != zapcore.StringType {
				continue
			}
			if leaks(f.String) {
				tb.Errorf("credential in field %s of %q", f.Key, e.Message)
			}
			if isSensitiveKey(f.Key) && f.String != "" && !strings.HasPrefix(f.String, "[REDACTED") {
				tb.Errorf("field %s of %q is not redacted", f.Key, e.Message)
			}
		}
	}
}

// AssertTraceCorrelation fails tb unless an entry with message msg carries
// a trace id.
func (t *TestLogger) AssertTraceCorrelation(tb testing.TB, msg string) {
	tb.Helper()
	for _, e := range t.logs.FilterMessage(msg).All() {
		if _, ok := e.ContextMap()[FieldTraceID]; ok {
			return
		}
	}
	tb.Errorf("entry %q has no %s", msg, FieldTraceID)
}

func (t *TestLogger) find(level zapcore.Level, substr string) *observer.LoggedEntry {
	for _, e := range t.logs.All() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return &e
		}
	}
	return nil
}

func (t *TestLogger) dump() string {
	var b strings.Builder
	for _, e := range t.logs.All() {
		fmt.Fprintf(&b, "\n  %s %s %v", LevelName(e.Level), e.Message, e.ContextMap())
	}
	return b.String()
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range DefaultRedactedFields {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
