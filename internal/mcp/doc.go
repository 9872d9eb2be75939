// Package mcp exposes the deep agent as an MCP tool server.
//
// Tools are registered with the go-sdk typed handlers (mcp.AddTool), so input
// and output schemas are inferred from the Go structs in tools.go. Answers are
// scrubbed for secrets before they leave the process.
package mcp
