// Package llm defines the text-generation collaborator used by the
// orchestrator and sub-agents, plus adapters around it.
//
// A Generator turns one prompt into one response. LangChain adapts any
// langchaingo llms.Model (OpenAI-compatible endpoints via NewOpenAI).
// RateLimited and Retrying wrap a Generator; New assembles the stack from a
// Config.
package llm
