package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Output is the captured result of one command.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes external commands. Run returns an error only when the
// command could not be started; a non-zero exit is reported in Output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Output, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (*Output, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("command_start", "command", name, "args", strings.Join(args, " "))
	err := cmd.Run()
	out := &Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		slog.Debug("command_exit", "command", name, "exit_code", out.ExitCode)
		return out, nil
	}
	slog.Error("command_start_failed", "command", name, "error", err)
	return nil, fmt.Errorf("failed to execute %s: %w", name, err)
}

// toResult maps command output onto a Result. Stderr is preferred as the
// diagnostic; stdout is used when a tool reports failures there.
func toResult(out *Output) *Result {
	if out.ExitCode == 0 {
		return &Result{Success: true, Diagnostic: trimNewlines(out.Stdout)}
	}
	diag := trimNewlines(out.Stderr)
	if diag == "" {
		diag = trimNewlines(out.Stdout)
	}
	if diag == "" {
		diag = fmt.Sprintf("exit status %d", out.ExitCode)
	}
	return &Result{Success: false, Diagnostic: diag}
}

func trimNewlines(b []byte) string {
	return strings.TrimRight(string(b), "\r\n")
}

// privileged prefixes a command with sudo when requested.
func privileged(sudo bool, name string, args ...string) (string, []string) {
	if !sudo {
		return name, args
	}
	return "sudo", append([]string{name}, args...)
}
