// Package ticket runs the external ticket-creation command.
//
// The command is a black box: it receives the expanded argument list, and on
// success prints the new ticket identifier on stdout and exits 0. Anything
// else (spawn failure, non-zero exit, output without a digit) is a
// *TicketError.
package ticket

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/solatis/ticketkeeper/internal/types"
)

var ticketIDPattern = regexp.MustCompile(`[0-9]`)

// pipeWaitDelay bounds how long a killed command's leftover children may hold
// stdout/stderr open.
const pipeWaitDelay = 2 * time.Second

// Runner creates a ticket from an expanded argument list and returns its id.
type Runner interface {
	CreateTicket(ctx context.Context, args []string) (string, error)
}

// TicketError describes a failed ticket-creation attempt.
type TicketError struct {
	Args     []string
	ExitCode int // -1 when the process did not run to completion
	Stdout   string
	Stderr   string
	Err      error
}

func (e *TicketError) Error() string {
	prog := ""
	if len(e.Args) > 0 {
		prog = e.Args[0]
	}
	return fmt.Sprintf("ticket command %s failed (exit %d): %v", prog, e.ExitCode, e.Err)
}

func (e *TicketError) Unwrap() error {
	return e.Err
}

// ExecRunner runs the ticket command as a child process.
type ExecRunner struct {
	// Timeout bounds each invocation. Zero waits indefinitely.
	Timeout time.Duration

	log logrus.FieldLogger
}

// NewExecRunner creates an ExecRunner logging command output at debug level.
func NewExecRunner(timeout time.Duration, log logrus.FieldLogger) *ExecRunner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ExecRunner{Timeout: timeout, log: log}
}

// CreateTicket runs args[0] with args[1:] and parses the ticket id from stdout.
func (r *ExecRunner) CreateTicket(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 || args[0] == "" {
		return "", &TicketError{Args: args, ExitCode: -1, Err: types.ErrEmptyCommand}
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = pipeWaitDelay

	r.log.WithField("args", args).Debug("running ticket command")
	err := cmd.Run()

	out := stdout.String()
	errOut := stderr.String()
	r.log.WithFields(logrus.Fields{
		"stdout": out,
		"stderr": errOut,
	}).Debug("ticket command finished")

	if err != nil {
		code := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		return "", &TicketError{Args: args, ExitCode: code, Stdout: out, Stderr: errOut, Err: err}
	}

	id, err := ParseTicketID(out)
	if err != nil {
		return "", &TicketError{Args: args, ExitCode: 0, Stdout: out, Stderr: errOut, Err: err}
	}
	return id, nil
}

// ParseTicketID extracts the ticket id from command output.
// The output is trimmed and must contain at least one digit.
func ParseTicketID(output string) (string, error) {
	id := strings.TrimSpace(output)
	if !ticketIDPattern.MatchString(id) {
		return "", types.ErrNoTicketID
	}
	return id, nil
}
