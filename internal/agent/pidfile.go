package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDFile records the detached server's process ID with flock-based locking
// so that concurrent runs in the same directory cannot both manage a server.
// The controlling process acquires the lock for the whole run and records the
// child PID after launch.
type PIDFile struct {
	path string
	file *os.File
}

// NewPIDFile creates a PIDFile instance for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// Acquire creates the file and takes an exclusive non-blocking lock.
// Returns an error if another process holds the lock.
func (p *PIDFile) Acquire() error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create pid directory: %w", err)
	}

	file, err := os.OpenFile(p.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("open pid file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = file.Close()
		if err == syscall.EWOULDBLOCK {
			return fmt.Errorf("pid file locked by another run")
		}
		return fmt.Errorf("lock pid file: %w", err)
	}

	p.file = file
	return nil
}

// Record writes the given PID to the acquired file.
func (p *PIDFile) Record(pid int) error {
	if p.file == nil {
		return fmt.Errorf("pid file not acquired")
	}

	if err := p.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate pid file: %w", err)
	}
	if _, err := p.file.Seek(0, 0); err != nil {
		return fmt.Errorf("seek pid file: %w", err)
	}
	if _, err := fmt.Fprintf(p.file, "%d\n", pid); err != nil {
		return fmt.Errorf("write pid: %w", err)
	}
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("sync pid file: %w", err)
	}

	return nil
}

// Read returns the PID from the file, or 0 if the file doesn't exist or is
// invalid.
func (p *PIDFile) Read() int {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// Remove releases the lock and removes the PID file.
func (p *PIDFile) Remove() error {
	if p.file != nil {
		_ = syscall.Flock(int(p.file.Fd()), syscall.LOCK_UN)
		_ = p.file.Close()
		p.file = nil
	}
	// Ignore error if already gone.
	_ = os.Remove(p.path)
	return nil
}

// IsProcessRunning checks if the given PID represents a running process.
// On Unix, this sends signal 0 to check process existence.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds - send signal 0 to check existence
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
