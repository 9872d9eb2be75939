// Package subagent runs delegated work in isolated sub-agents.
//
// A Manager creates agents, each bound to its own workspace directory
// (/subagents/<id>) in a shared store.Store, and drives them through
//
//	idle -> running -> completed | failed | cancelled
//
// The work itself is done by a Strategy. DefaultStrategy is a bookkeeping
// placeholder; GeneratorStrategy prompts an llm.Generator; callers can plug in
// their own (see internal/workflows for a durable one).
//
// The number of live (idle or running) agents is capped. Create returns
// ErrMaxSubAgents once the cap is reached and ExecuteParallel never runs more
// than the cap at once. Cancellation is cooperative: Cancel marks the agent
// and cancels the context passed to its strategy.
package subagent
