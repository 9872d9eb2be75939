package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/deepagent/internal/config"
	"github.com/fyrsmithlabs/deepagent/internal/events"
	"github.com/fyrsmithlabs/deepagent/internal/llm"
	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
)

const plan = "- Summarize the auth module\n- Write the findings up\n"

// syncBuffer is a bytes.Buffer safe for the logger and the command to
// share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	return path
}

func withGenerator(t *testing.T, gen llm.Generator) {
	t.Helper()
	prev := newGenerator
	newGenerator = func(llm.Config) (llm.Generator, error) { return gen, nil }
	t.Cleanup(func() { newGenerator = prev })
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	configPath = ""
	var stdout, stderr syncBuffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

const baseConfig = `
llm:
  provider: echo
logging:
  level: warn
`

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    dev")
	assert.Contains(t, out, "deepagent by Fyrsmith Labs")
}

func TestRun_PrintsAnswer(t *testing.T) {
	withGenerator(t, llm.NewScripted(plan, "The auth module is fine."))
	path := writeConfig(t, baseConfig)

	out, stderr, err := execute(t, "run", "--config", path, "review", "auth")
	require.NoError(t, err)
	assert.Equal(t, "The auth module is fine.\n", out)
	assert.Contains(t, stderr, "plan     2 tasks")
	assert.Contains(t, stderr, "answer")
}

func TestRun_JSON(t *testing.T) {
	withGenerator(t, llm.NewScripted(plan, "The auth module is fine."))
	path := writeConfig(t, baseConfig)

	out, stderr, err := execute(t, "run", "--config", path, "--json", "--quiet", "-c", "repo=svc-auth", "review auth")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "plan     2 tasks")

	var res runResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "The auth module is fine.", res.Answer)
	require.NotNil(t, res.Metadata)
	assert.Equal(t, 2, res.Metadata.TasksCompleted)
	assert.Empty(t, res.Error)
}

func TestRun_Failure(t *testing.T) {
	withGenerator(t, llm.NewScripted().FailWith(assert.AnError))
	path := writeConfig(t, baseConfig)

	out, _, err := execute(t, "run", "--config", path, "--json", "--quiet", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), assert.AnError.Error())

	var res runResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Contains(t, res.Error, assert.AnError.Error())
	assert.Empty(t, res.Answer)
}

func TestRun_InvalidInput(t *testing.T) {
	withGenerator(t, llm.Echo{})
	path := writeConfig(t, baseConfig)

	_, _, err := execute(t, "run", "--config", path, "-c", "novalue", "q")
	assert.ErrorContains(t, err, "want key=value")

	_, _, err = execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "q")
	assert.ErrorContains(t, err, "load config")

	_, _, err = execute(t, "run", "--config", path)
	assert.Error(t, err, "a query is required")
}

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	server, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func TestRun_PublishesEvents(t *testing.T) {
	withGenerator(t, llm.NewScripted(plan, "The auth module is fine."))
	server := startTestNATSServer(t)
	path := writeConfig(t, baseConfig+`
nats:
  enabled: true
  url: `+server.ClientURL()+`
  subject_prefix: test.events
`)

	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ch, err := events.Subscribe(ctx, nc, "test.events", "")
	require.NoError(t, err)

	out, _, err := execute(t, "run", "--config", path, "--json", "--quiet", "review auth")
	require.NoError(t, err)
	var res runResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))

	var types []orchestrator.EventType
	for r := range ch {
		assert.Equal(t, res.RunID, r.Message.RunID)
		types = append(types, r.Message.Type)
		if r.Terminal() {
			break
		}
	}
	require.NotEmpty(t, types)
	assert.Equal(t, orchestrator.EventAnswer, types[len(types)-1])
	assert.Contains(t, types, orchestrator.EventPlan)
}

func TestParseContext(t *testing.T) {
	got, err := parseContext(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseContext([]string{"repo=svc", "query=a=b", " k =v"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"repo": "svc", "query": "a=b", "k": "v"}, got)

	for _, bad := range []string{"novalue", "=v", " =v"} {
		_, err := parseContext([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestRunResult_Add(t *testing.T) {
	var r runResult
	md := &orchestrator.AnswerMetadata{Iterations: 2, TasksCompleted: 2}
	r.add(orchestrator.Event{Type: orchestrator.EventStatus, RunID: "run-1"})
	r.add(orchestrator.Event{Type: orchestrator.EventAnswer, RunID: "run-1", Content: "done", Metadata: md})
	assert.Equal(t, runResult{RunID: "run-1", Answer: "done", Metadata: md}, r)

	r.add(orchestrator.Event{Type: orchestrator.EventError, RunID: "run-1", Message: "boom"})
	assert.Equal(t, "boom", r.Error)
}

func TestWatchablePath(t *testing.T) {
	path := writeConfig(t, baseConfig)
	got, ok := watchablePath(path)
	assert.True(t, ok)
	assert.Equal(t, path, got)

	_, ok = watchablePath(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.False(t, ok)

	t.Setenv("HOME", t.TempDir())
	_, ok = watchablePath("")
	assert.False(t, ok)
}

func TestApplyConfig(t *testing.T) {
	o, err := orchestrator.New(llm.Echo{})
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Agent.MaxSubAgents = 2
	cfg.Agent.EnableMemory = false
	applyConfig(context.Background(), o, cfg, zaptest.NewLogger(t))

	assert.Equal(t, 2, o.Config().MaxSubAgents)
	assert.False(t, o.Config().EnableMemory)
}
