// Package app defines the runtime contract shared by the cmd/* entrypoints
// (rollup server, migration runner).
package app

// Runner represents a runnable application component.
type Runner interface {
	Run() error
}
