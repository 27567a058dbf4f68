// SPDX-License-Identifier: MPL-2.0

// Package script runs module handler scripts in the embedded mvdan/sh
// interpreter. Scripts see the triggering event through MODHOST_*
// environment variables and answer through stdout.
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// exitCommandNotFound is the conventional shell status for a command that
// could not be executed.
const exitCommandNotFound = 127

// ErrExecDisabled is reported on stderr when a script tries to run an
// external program and the runner does not allow it.
var ErrExecDisabled = errors.New("external commands are disabled")

type (
	// Runner executes scripts. The zero value only allows shell builtins and
	// imposes no timeout.
	Runner struct {
		// AllowExec lets scripts start external programs found on PATH.
		AllowExec bool
		// Timeout bounds a single run. Zero means no limit beyond ctx.
		Timeout time.Duration
	}

	// Request describes one script run.
	Request struct {
		// Name labels the script in parse errors.
		Name   string
		Script string
		// Dir is the working directory; empty means the process directory.
		Dir string
		// Env is added on top of a minimal PATH/HOME environment.
		Env  map[string]string
		Args []string
	}

	// Result captures the outcome of a run. A non-zero ExitCode is not an
	// error; Run only fails when the script cannot be parsed or started.
	Result struct {
		Stdout   string
		Stderr   string
		ExitCode int
	}
)

// Check parses script without running it.
func Check(name, script string) error {
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), name); err != nil {
		return fmt.Errorf("failed to parse script: %w", err)
	}
	return nil
}

// Run executes req and returns its captured output.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	name := req.Name
	if name == "" {
		name = "script"
	}
	prog, err := syntax.NewParser().Parse(strings.NewReader(req.Script), name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}

	var stdout, stderr bytes.Buffer
	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(environ(req.Env)...)),
		interp.StdIO(nil, &stdout, &stderr),
	}
	if req.Dir != "" {
		opts = append(opts, interp.Dir(req.Dir))
	}
	if !r.AllowExec {
		opts = append(opts, interp.ExecHandlers(denyExec))
	}
	// "--" keeps arguments such as "-v" from being read as shell options.
	if len(req.Args) > 0 {
		opts = append(opts, interp.Params(append([]string{"--"}, req.Args...)...))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter: %w", err)
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	result := &Result{}
	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("script %s: %w", name, ctx.Err())
		case errors.As(err, &exitStatus):
			result.ExitCode = int(exitStatus)
		default:
			return nil, fmt.Errorf("script %s: %w", name, err)
		}
	}
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	return result, nil
}

// Failure summarises a non-zero run for user-facing messages: the last line
// of stderr when there is one, the exit status otherwise.
func (res *Result) Failure() string {
	lines := strings.Split(strings.TrimSpace(res.Stderr), "\n")
	if last := strings.TrimSpace(lines[len(lines)-1]); last != "" {
		return last
	}
	return fmt.Sprintf("script exited with status %d", res.ExitCode)
}

func environ(extra map[string]string) []string {
	env := []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
	}
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

func denyExec(_ interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		hc := interp.HandlerCtx(ctx)
		fmt.Fprintf(hc.Stderr, "%s: %v\n", args[0], ErrExecDisabled)
		return interp.NewExitStatus(exitCommandNotFound)
	}
}
