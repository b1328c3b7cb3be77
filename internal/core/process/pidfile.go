// Package process implements PID-file based process control for the daemon:
// single-instance locking, liveness checks, signalling and detaching a
// background child.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/solatis/ticketkeeper/internal/types"
	"golang.org/x/sys/unix"
)

// PIDFile is a locked PID file owned by the running daemon.
type PIDFile struct {
	path string
	file *os.File
}

// Acquire creates path, takes an exclusive lock and writes the current PID.
// Returns types.ErrAlreadyRunning when another process holds the lock.
func Acquire(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create pid directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open pid file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			pid, _ := ReadPID(path)
			return nil, fmt.Errorf("%w: pid=%d", types.ErrAlreadyRunning, pid)
		}
		return nil, fmt.Errorf("failed to lock pid file: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to truncate pid file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write pid file: %w", err)
	}

	return &PIDFile{path: path, file: f}, nil
}

// Release removes the PID file and drops the lock.
func (p *PIDFile) Release() error {
	removeErr := os.Remove(p.path)
	unix.Flock(int(p.file.Fd()), unix.LOCK_UN)
	closeErr := p.file.Close()
	if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		return removeErr
	}
	return closeErr
}

// ReadPID returns the PID recorded in path.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %s: %q", path, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// Alive reports whether a process with pid exists.
// EPERM means it exists but belongs to another user.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Running returns the daemon PID from path when that process is alive.
// Returns types.ErrNotRunning when the file is missing, stale or unreadable.
func Running(path string) (int, error) {
	pid, err := ReadPID(path)
	if err != nil {
		return 0, types.ErrNotRunning
	}
	if !Alive(pid) {
		return 0, types.ErrNotRunning
	}
	return pid, nil
}

// Terminate sends SIGTERM to pid and waits until it exits or ctx ends.
func Terminate(ctx context.Context, pid int) error {
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}
	return WaitExit(ctx, pid, 100*time.Millisecond)
}

// WaitExit polls until pid no longer exists.
func WaitExit(ctx context.Context, pid int, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for Alive(pid) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("pid %d still running: %w", pid, ctx.Err())
		case <-ticker.C:
		}
	}
	return nil
}

// Detach starts argv as a session leader with stdio on /dev/null and returns
// its PID without waiting for it.
func Detach(argv []string, env []string) (int, error) {
	if len(argv) == 0 {
		return 0, fmt.Errorf("no command to detach")
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("failed to release child: %w", err)
	}
	return pid, nil
}
