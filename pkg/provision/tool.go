package provision

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// ToolResult captures one tool invocation.
type ToolResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ToolRunner invokes the underlying infrastructure tool in a working
// directory. Invocations block until the process exits; there is no
// timeout at this layer.
type ToolRunner interface {
	Run(ctx context.Context, workdir string, args []string, env map[string]string) (*ToolResult, error)
}

// TerraformRunner executes the terraform binary.
type TerraformRunner struct {
	Binary string
}

// NewTerraformRunner creates a runner for the terraform binary on PATH.
func NewTerraformRunner() *TerraformRunner {
	return &TerraformRunner{Binary: "terraform"}
}

// Run executes terraform with the given arguments, capturing stdout and
// stderr. A non-zero exit status is not an error here; callers branch on
// ExitCode.
func (r *TerraformRunner) Run(ctx context.Context, workdir string, args []string, env map[string]string) (*ToolResult, error) {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Dir = workdir
	cmd.Env = os.Environ()
	for key, value := range env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("run %s %v: %w", r.Binary, args, err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &ToolResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: duration,
	}, nil
}
