package monitor

import (
	"time"

	"github.com/fyrsmithlabs/deepagent/internal/orchestrator"
	"github.com/fyrsmithlabs/deepagent/internal/planning"
)

const (
	historySize  = 30
	recentEvents = 8
)

// RunState is what the monitor knows about a run, folded from its events
// or from polled state summaries.
type RunState struct {
	RunID     string
	Query     string
	Phase     orchestrator.Phase
	Total     int
	Completed int
	Failed    int

	// TaskSeconds holds seconds spent per finished task, oldest first.
	TaskSeconds []float64
	Recent      []string
	Answer      string
	Err         string
	Started     time.Time
	Finished    time.Time

	// ExecutionTime is the server-reported run time in seconds when polling.
	ExecutionTime float64

	lastTask time.Time
	lastExec float64
}

// Progress returns the fraction of planned tasks that have finished.
func (s *RunState) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	p := float64(s.Completed+s.Failed) / float64(s.Total)
	if p > 1 {
		p = 1
	}
	return p
}

// Apply folds one event into the state.
func (s *RunState) Apply(ev orchestrator.Event) {
	if s.RunID == "" {
		s.RunID = ev.RunID
	}
	if s.Started.IsZero() {
		s.Started = ev.Time
		s.lastTask = ev.Time
		s.Phase = orchestrator.PhasePlanning
	}

	switch ev.Type {
	case orchestrator.EventPlan:
		s.Total = len(ev.Tasks)
		s.Phase = orchestrator.PhaseExecuting
		s.lastTask = ev.Time
	case orchestrator.EventTaskComplete:
		if ev.Succeeded() {
			s.Completed++
		} else {
			s.Failed++
		}
		s.TaskSeconds = appendToHistory(s.TaskSeconds, ev.Time.Sub(s.lastTask).Seconds())
		s.lastTask = ev.Time
		if s.Total > 0 && s.Completed+s.Failed >= s.Total {
			s.Phase = orchestrator.PhaseSynthesizing
		}
	case orchestrator.EventAnswer:
		s.Answer = ev.Content
		s.Phase = orchestrator.PhaseDone
		s.Finished = ev.Time
		if md := ev.Metadata; md != nil {
			s.Completed = md.TasksCompleted
		}
	case orchestrator.EventError:
		s.Err = ev.Message
		s.Phase = orchestrator.PhaseError
		s.Finished = ev.Time
	}

	s.Recent = append(s.Recent, FormatEvent(ev))
	if len(s.Recent) > recentEvents {
		s.Recent = s.Recent[len(s.Recent)-recentEvents:]
	}
}

// ApplySummary replaces the counters with a polled state summary.
func (s *RunState) ApplySummary(sum orchestrator.StateSummary) {
	if sum.RunID != s.RunID {
		*s = RunState{}
	}
	s.RunID = sum.RunID
	s.Query = sum.Query
	s.Phase = sum.Phase
	s.ExecutionTime = sum.ExecutionTime
	tasks := sum.Tasks()
	if tasks == nil {
		return
	}
	finished := s.Completed + s.Failed
	s.Total = tasks.TotalTasks
	s.Completed = tasks.StatusBreakdown[planning.StatusCompleted]
	s.Failed = tasks.StatusBreakdown[planning.StatusBlocked]
	if delta := s.Completed + s.Failed - finished; delta > 0 {
		s.TaskSeconds = appendToHistory(s.TaskSeconds, (sum.ExecutionTime-s.lastExec)/float64(delta))
		s.lastExec = sum.ExecutionTime
	}
}

// Terminal reports whether the run has finished.
func (s *RunState) Terminal() bool {
	return s.Phase.IsTerminal()
}

func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}
