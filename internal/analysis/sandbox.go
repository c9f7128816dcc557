package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"time"
)

// ErrTimeout is returned when a snippet exceeds the sandbox wall-clock
// limit. The process is killed; it never outlives the call.
var ErrTimeout = errors.New("analysis timed out")

// ExitError is returned when the snippet exits non-zero. Stderr is capped.
type ExitError struct {
	Code   int
	Stderr string
}

func (e ExitError) Error() string {
	return fmt.Sprintf("process exited with code %d", e.Code)
}

// SpawnError is returned when the interpreter could not be started at all,
// e.g. it is not installed. Distinct from ExitError so callers can tell
// "try a shorter analysis" from "environment is broken".
type SpawnError struct {
	Interpreter string
	Err         error
}

func (e SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn %s: %v", e.Interpreter, e.Err)
}

func (e SpawnError) Unwrap() error { return e.Err }

// Result holds the capped output of a sandboxed snippet.
type Result struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
}

// Sandbox executes analysis snippets in a freshly spawned interpreter
// subprocess. The snippet sees the session and master table paths as
// read-only context; anything it should contribute must flow back through
// stdout, never through side-effecting writes.
type Sandbox struct {
	Interpreter string        // e.g. "python3"
	Timeout     time.Duration // hard wall-clock kill
	OutputLimit int           // stdout/stderr cap in bytes
	Logger      *log.Logger
}

func NewSandbox(interpreter string, timeout time.Duration, outputLimit int, logger *log.Logger) *Sandbox {
	if logger == nil {
		logger = log.New(log.Writer(), "[SANDBOX] ", log.LstdFlags)
	}
	return &Sandbox{Interpreter: interpreter, Timeout: timeout, OutputLimit: outputLimit, Logger: logger}
}

// harness exposes the dataset paths to the snippet without granting it any
// handle that persists past the call.
const harness = `import csv, json, os, sys

SESSION_PATH = os.environ.get("REELAGENT_SESSION_PATH", "")
MASTER_PATH = os.environ.get("REELAGENT_MASTER_PATH", "")

def load_rows(path):
    if not path or not os.path.exists(path):
        return []
    with open(path, newline="", encoding="utf-8") as f:
        return list(csv.DictReader(f))

`

// Run executes the snippet. Stdout and stderr are captured separately and
// capped; errors follow the taxonomy ErrTimeout / ExitError / SpawnError.
func (s *Sandbox) Run(ctx context.Context, code, sessionPath, masterPath string) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.Interpreter, "-c", harness+code)
	cmd.Env = append(cmd.Environ(),
		"REELAGENT_SESSION_PATH="+sessionPath,
		"REELAGENT_MASTER_PATH="+masterPath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, SpawnError{Interpreter: s.Interpreter, Err: err}
	}
	err := cmd.Wait()
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		s.Logger.Printf("killed runaway analysis after %v", elapsed)
		return Result{Stderr: s.cap(stderr.String())}, ErrTimeout
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{Stdout: s.cap(stdout.String()), Stderr: s.cap(stderr.String())},
				ExitError{Code: exitErr.ExitCode(), Stderr: s.cap(stderr.String())}
		}
		return Result{}, fmt.Errorf("waiting for analysis process: %w", err)
	}

	out := stdout.String()
	res := Result{Stdout: s.cap(out), Stderr: s.cap(stderr.String())}
	res.Truncated = len(out) > s.OutputLimit
	return res, nil
}

func (s *Sandbox) cap(out string) string {
	if s.OutputLimit > 0 && len(out) > s.OutputLimit {
		return out[:s.OutputLimit]
	}
	return out
}
