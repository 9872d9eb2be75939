package http

import (
	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
	"github.com/fyrsmithlabs/deepagent/internal/telemetry"
)

// RunRequest is the body of POST /api/v1/runs.
type RunRequest struct {
	Query   string         `json:"query"`
	Context map[string]any `json:"context,omitempty"`
}

// RunResponse is returned by POST /api/v1/runs once the run finishes.
type RunResponse struct {
	RunID    string                       `json:"run_id"`
	Answer   string                       `json:"answer,omitempty"`
	Metadata *orchestrator.AnswerMetadata `json:"metadata,omitempty"`
	Error    string                       `json:"error,omitempty"`
	Events   []orchestrator.Event         `json:"events"`
}

func (r *RunResponse) add(ev orchestrator.Event) {
	if r.RunID == "" {
		r.RunID = ev.RunID
	}
	switch ev.Type {
	case orchestrator.EventAnswer:
		r.Answer = ev.Content
		r.Metadata = ev.Metadata
	case orchestrator.EventError:
		r.Error = ev.Message
	}
	r.Events = append(r.Events, ev)
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string             `json:"status"`
	Version   string             `json:"version,omitempty"`
	Phase     orchestrator.Phase `json:"phase"`
	Running   bool               `json:"running"`
	Telemetry *telemetry.Health  `json:"telemetry,omitempty"`
}
