package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"reidpipe/internal/pipeline"
	"reidpipe/internal/services"
)

// CommandRunner executes the extractor binary. Tests substitute it to avoid
// spawning real processes.
type CommandRunner func(ctx context.Context, binary string, args []string, env []string) error

// Option configures the client.
type Option func(*Client)

// WithCommandRunner sets a custom command runner (primarily for tests).
func WithCommandRunner(runner CommandRunner) Option {
	return func(c *Client) {
		if runner != nil {
			c.runner = runner
		}
	}
}

// Client wraps feature-extraction collaborator invocations.
type Client struct {
	binary  string
	timeout time.Duration
	runner  CommandRunner
}

// New constructs an extractor client.
func New(binary string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("extractor binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		runner:  runCommand,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Extract executes the feature-extraction collaborator described by the
// invocation. Extracted features are persisted by the collaborator itself, so
// success is simply a clean exit.
func (c *Client) Extract(ctx context.Context, inv pipeline.Invocation) error {
	if strings.TrimSpace(inv.Checkpoint) == "" {
		return services.Wrap(services.ErrValidation, inv.Stage, "extract", "checkpoint path required", nil)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	return c.runner(runCtx, c.binary, inv.Args, inv.Env)
}

func runCommand(ctx context.Context, binary string, args []string, env []string) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	// Extractors fork data-loader workers; cancellation must signal the whole
	// process group or the workers outlive the run.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", binary, err, tail(string(output), 20))
	}
	return nil
}

// tail keeps the last n lines of combined output so failures stay readable
// without replaying an entire extraction log.
func tail(output string, n int) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "(no output)"
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) <= n {
		return trimmed
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
