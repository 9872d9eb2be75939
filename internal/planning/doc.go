// Package planning holds the task graph that drives an agent run.
//
// Tasks are added in plan order, carry a priority and an ordered list of
// dependency ids, and move through a small state machine:
//
//	pending -> in_progress -> completed
//	    |           |
//	    +-> blocked <-+ (blocked -> pending to retry)
//
// Ready returns pending tasks whose dependencies are satisfied, highest
// priority first. What "satisfied" means for a dependency id that is no longer
// in the graph is governed by the graph's DependencyPolicy.
package planning
