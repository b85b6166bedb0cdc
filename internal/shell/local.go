package shell

import (
	"context"
	"fmt"
	"log"
)

// Runner executes a script to completion. Local and grid-engine execution
// both satisfy it.
type Runner interface {
	Run(ctx context.Context, script string) error
}

// Local runs scripts through /bin/bash on the local machine.
type Local struct {
	// Procs, when set, tracks the spawned subprocess for shutdown cleanup.
	Procs *ProcessManager
}

// Run executes the script and blocks until it exits. Script output is
// captured; stderr is folded into the returned error on failure.
func (l Local) Run(ctx context.Context, script string) error {
	cmd := newCommand(ctx, "/bin/bash", script)
	stdout, _, err := runCommand(ctx, cmd, l.Procs)
	if err != nil {
		return fmt.Errorf("bash %s: %w", script, err)
	}
	if len(stdout) > 0 {
		log.Printf("script %s: %s", script, stdout)
	}
	return nil
}
