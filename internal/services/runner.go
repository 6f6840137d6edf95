package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

const (
	maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics
	maxLogStderr   = 512
)

// Runner executes an external tool and returns its stdout. A non-zero exit,
// a timeout or a failure to start is returned as *ExecError.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecError describes a failed external process.
type ExecError struct {
	Tool     string
	ExitCode int // -1 when the process never exited normally (timeout, not found)
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s exited %d: %v", e.Tool, e.ExitCode, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// StderrOf returns the captured stderr of a failed process, or the error text.
func StderrOf(err error) string {
	var execErr *ExecError
	if errors.As(err, &execErr) && execErr.Stderr != "" {
		return execErr.Stderr
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// ExecRunner runs tools with os/exec.
type ExecRunner struct {
	logger *zap.Logger
}

func NewExecRunner(logger *zap.Logger) *ExecRunner {
	return &ExecRunner{logger: logger.Named("exec")}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderrBuf bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	r.logger.Debug("executing command", zap.String("tool", name), zap.Strings("args", args))

	err := cmd.Run()
	elapsed := time.Since(start)
	if err == nil {
		r.logger.Debug("command succeeded",
			zap.String("tool", name),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
		)
		return stdout.Bytes(), nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = fmt.Errorf("%w (%v)", ctxErr, err)
	}

	stderrTail := stderrBuf.String()
	r.logger.Warn("command failed",
		zap.String("tool", name),
		zap.Int("exit_code", exitCode),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
		zap.String("stderr_tail", truncate(stderrTail, maxLogStderr)),
	)

	return stdout.Bytes(), &ExecError{Tool: name, ExitCode: exitCode, Stderr: stderrTail, Err: err}
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := make([]byte, lw.limit)
		copy(tail, b[len(b)-lw.limit:])
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}
