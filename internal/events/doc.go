// Package events publishes orchestrator events to NATS.
//
// Each event is JSON-encoded and published on the subject
//
//	<prefix>.<run_id>.<type>
//
// so consumers can follow one run with "<prefix>.<run_id>.*" or every run
// with "<prefix>.>". Subscribe decodes such a stream back into events.
package events
