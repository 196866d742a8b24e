package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
)

func TestWriteReadRemovePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loomgate.pid")

	if err := WritePIDFile(path); err != nil {
		t.Fatalf("WritePIDFile() error = %v", err)
	}

	pid, err := ReadPIDFile(path)
	if err != nil {
		t.Fatalf("ReadPIDFile() error = %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("ReadPIDFile() = %d, want %d", pid, os.Getpid())
	}

	if err := RemovePIDFile(path); err != nil {
		t.Fatalf("RemovePIDFile() error = %v", err)
	}
	if err := RemovePIDFile(path); err != nil {
		t.Fatalf("RemovePIDFile() on already-absent file should not error, got %v", err)
	}
}

func TestReadPIDFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loomgate.pid")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPIDFile(path); err == nil {
		t.Fatal("ReadPIDFile() should error on malformed content")
	}
}

func TestIsRunning(t *testing.T) {
	if !IsRunning(os.Getpid()) {
		t.Fatal("IsRunning(self) should be true")
	}
	// Pid 999999 is well past any realistic process table entry on a typical
	// system; treated as a (flaky-but-practical) stand-in for "not running".
	if IsRunning(999999) {
		t.Skip("pid 999999 unexpectedly running on this system")
	}
}

func TestReadRunningPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loomgate.pid")

	if _, running := ReadRunningPID(path); running {
		t.Fatal("ReadRunningPID() on missing file should report not running")
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}
	pid, running := ReadRunningPID(path)
	if !running || pid != os.Getpid() {
		t.Fatalf("ReadRunningPID() = (%d, %v), want (%d, true)", pid, running, os.Getpid())
	}
}

func TestSignalMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.pid")
	if err := Signal(path, syscall.Signal(0)); err == nil {
		t.Fatal("Signal() on missing pid file should error")
	}
}
