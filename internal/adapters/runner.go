// Package adapters implements the narrow capability contracts the engine
// consumes: webserver, certificate authority, service supervisor, source
// fetcher, and health prober. Nothing in here orchestrates; each adapter
// wraps exactly one external system.
package adapters

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// CommandRunner executes a host command and returns its combined output. The
// engine and the adapters treat these as opaque capability calls; the
// concrete binaries (nginx, systemctl, npm, ...) are details of the host.
type CommandRunner interface {
	Run(ctx context.Context, dir string, env []string, name string, args ...string) (string, error)
}

// ExecRunner runs commands via os/exec with a hard timeout. Adapter
// diagnostics keep the command's raw output verbatim so operators see what
// the tool saw.
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner returns a runner whose calls are bounded by timeout.
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout}
}

func (r *ExecRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(env) > 0 {
		cmd.Env = env
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return out.String(), fmt.Errorf("%s timed out after %s: %s", name, r.Timeout, out.String())
	}
	if err != nil {
		return out.String(), fmt.Errorf("%s failed: %w: %s", name, err, out.String())
	}
	return out.String(), nil
}

// RunShell executes a user-supplied command line through the shell, for
// build/install/start commands that legitimately contain pipes and
// expansions.
func RunShell(ctx context.Context, r CommandRunner, dir string, env []string, command string) (string, error) {
	return r.Run(ctx, dir, env, "/bin/sh", "-c", command)
}
