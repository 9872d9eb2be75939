// Package orchestrator drives a deep research run through its phases.
//
// # Overview
//
// An Orchestrator owns a task graph, a hierarchical store and a sub-agent
// manager. Process runs one query through the phase state machine:
//
//	Idle → Planning → Executing → Synthesizing → Done
//
// Any phase may fall into Error. Cleanup runs after every run, successful
// or not: terminal sub-agents are retired and completed tasks are purged.
//
// # Phases
//
// Planning asks the generator for a plan and registers one task per bullet
// or numbered line. Executing pulls the highest-priority ready task once per
// iteration and either delegates it to a research sub-agent or completes it
// inline. Synthesizing builds a digest of the run and asks the generator for
// the final answer.
//
// # Events
//
// Progress is observed only through the Event channel returned by Process.
// Events are ordered by Seq and the channel is closed after cleanup. Every
// event is also handed to the configured EventSinks.
//
// # Store layout
//
//	/context/initial_context.json          caller supplied context
//	/research/initial_plan.md              rendered task list
//	/research/progress_iteration_N.json    per-iteration snapshot
//	/research/findings_<task>.md           delegated results
//	/subagents/<id>/final_result.json      delegated execution record
//	/results/final_answer.md               scrubbed answer
//	/results/memory_export.json            full store export
package orchestrator
