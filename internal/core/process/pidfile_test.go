package process

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/solatis/ticketkeeper/internal/types"
)

func TestAcquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "var", "ticketkeeper.pid")

	pf, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v, want nil", err)
	}

	pid, err := ReadPID(path)
	if err != nil {
		t.Fatalf("ReadPID() error = %v, want nil", err)
	}
	if pid != os.Getpid() {
		t.Errorf("ReadPID() = %d, want %d", pid, os.Getpid())
	}

	if got, err := Running(path); err != nil || got != os.Getpid() {
		t.Errorf("Running() = (%d, %v), want (%d, nil)", got, err, os.Getpid())
	}

	if _, err := Acquire(path); !errors.Is(err, types.ErrAlreadyRunning) {
		t.Errorf("second Acquire() error = %v, want ErrAlreadyRunning", err)
	}

	if err := pf.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("pid file still present after Release: %v", err)
	}
	if _, err := Running(path); !errors.Is(err, types.ErrNotRunning) {
		t.Errorf("Running() after Release error = %v, want ErrNotRunning", err)
	}
}

func TestReadPID_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPID(path); err == nil {
		t.Error("ReadPID() error = nil, want error")
	}
	if _, err := Running(path); !errors.Is(err, types.ErrNotRunning) {
		t.Errorf("Running() error = %v, want ErrNotRunning", err)
	}
}

func TestTerminate(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep not available: %v", err)
	}
	pid := cmd.Process.Pid
	go cmd.Wait()

	if !Alive(pid) {
		t.Fatalf("Alive(%d) = false for running child", pid)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Terminate(ctx, pid); err != nil {
		t.Fatalf("Terminate() error = %v, want nil", err)
	}
	if Alive(pid) {
		t.Errorf("Alive(%d) = true after Terminate", pid)
	}
}
