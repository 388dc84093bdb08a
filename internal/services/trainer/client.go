package trainer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"reidpipe/internal/experiment"
	"reidpipe/internal/pipeline"
	"reidpipe/internal/services"
)

// ProgressUpdate captures trainer progress output.
type ProgressUpdate struct {
	Epoch   int
	Batch   int
	Batches int
	Message string
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, env []string, onLine func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithProgress forwards parsed epoch progress to the given callback.
func WithProgress(progress func(ProgressUpdate)) Option {
	return func(c *Client) {
		c.progress = progress
	}
}

// Client wraps training collaborator invocations.
type Client struct {
	binary   string
	timeout  time.Duration
	exec     Executor
	progress func(ProgressUpdate)
}

// New constructs a trainer client.
func New(binary string, timeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("trainer binary required")
	}
	client := &Client{
		binary:  binary,
		timeout: time.Duration(timeoutSeconds) * time.Second,
		exec:    commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Train executes the training collaborator and returns the path of the
// checkpoint it produced. The checkpoint directory is created up front so the
// collaborator can write into it immediately; the checkpoint itself is located
// only after the process exits cleanly.
func (c *Client) Train(ctx context.Context, inv pipeline.Invocation) (string, error) {
	if strings.TrimSpace(inv.CheckpointDir) == "" {
		return "", services.Wrap(services.ErrValidation, inv.Stage, "train", "checkpoint directory required", nil)
	}
	if err := os.MkdirAll(inv.CheckpointDir, 0o755); err != nil {
		return "", fmt.Errorf("create checkpoint directory: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.exec.Run(runCtx, c.binary, inv.Args, inv.Env, func(line string) {
		if c.progress == nil {
			return
		}
		if update, ok := parseProgress(line); ok {
			c.progress(update)
		}
	}); err != nil {
		return "", fmt.Errorf("trainer: %w", err)
	}

	path, err := experiment.LocateCheckpoint(inv.CheckpointDir)
	if err != nil {
		return "", services.Wrap(services.ErrNotFound, inv.Stage, "train",
			fmt.Sprintf("trainer exited cleanly but left no checkpoint under %s", inv.CheckpointDir), err)
	}
	return path, nil
}

// parseProgress recognizes the two epoch line shapes the trainer prints:
//
//	Epoch: [3][100/232]	Time 0.123 (0.120) ...
//	Epoch [3], 12.34s, prec 95.00% ...
func parseProgress(line string) (ProgressUpdate, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "Epoch") {
		return ProgressUpdate{}, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(trimmed, "Epoch"), ":"))

	epochStr, rest, ok := cutBracket(rest)
	if !ok {
		return ProgressUpdate{}, false
	}
	epoch, err := strconv.Atoi(strings.TrimSpace(epochStr))
	if err != nil {
		return ProgressUpdate{}, false
	}

	update := ProgressUpdate{Epoch: epoch}
	if batchStr, remainder, ok := cutBracket(rest); ok {
		if batch, total, ok := splitFraction(batchStr); ok {
			update.Batch = batch
			update.Batches = total
			rest = remainder
		}
	}
	update.Message = strings.TrimSpace(strings.TrimLeft(rest, ",\t "))
	return update, true
}

func cutBracket(s string) (string, string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") {
		return "", s, false
	}
	end := strings.Index(s, "]")
	if end < 0 {
		return "", s, false
	}
	return s[1:end], s[end+1:], true
}

func splitFraction(s string) (int, int, bool) {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return 0, 0, false
	}
	a, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.Atoi(strings.TrimSpace(den))
	if err != nil {
		return 0, 0, false
	}
	return a, b, true
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, env []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	// Trainers fork data-loader workers; cancellation must signal the whole
	// process group or the workers outlive the run.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGTERM)
	}
	cmd.WaitDelay = 10 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	forward := func(line string) {
		if onLine != nil {
			onLine(line)
			return
		}
		fmt.Fprintln(os.Stderr, line)
	}

	wg.Add(2)
	go scan(stdout, forward)
	go scan(stderr, forward)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
