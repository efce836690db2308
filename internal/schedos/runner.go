package schedos

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
)

// Runner executes a management CLI command. Tests swap it for a fake.
type Runner interface {
	// Run executes name with args, feeding stdin when non-empty. It returns
	// the captured output and the process exit code; err is non-nil only
	// when the command could not be started at all.
	Run(ctx context.Context, stdin, name string, args ...string) (stdout, stderr string, exitCode int, err error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, stdin, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out.String(), errb.String(), exitErr.ExitCode(), nil
		}
		return out.String(), errb.String(), -1, err
	}
	return out.String(), errb.String(), 0, nil
}
