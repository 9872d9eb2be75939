// Package findings keeps a semantic index of delegated results.
//
// Results are embedded and stored in an in-process chromem collection so
// synthesis can pull the findings closest to the original query, not only
// the ones whose file name says "findings".
package findings
