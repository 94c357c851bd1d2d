package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	osexec "os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/dmelton/crank/internal/config"
)

// stopPollInterval is how often server termination checks for exit.
const stopPollInterval = 100 * time.Millisecond

// Server manages the detached agent server process shared by every iteration
// of a run. Start soft-fails: any problem leaves the endpoint empty and later
// invocations fall back to cold calls.
type Server struct {
	cfg     *config.Config
	pidfile *PIDFile
	logger  *slog.Logger

	mu       sync.Mutex
	cmd      *osexec.Cmd
	endpoint string
	stopped  bool
}

// NewServer creates a Server for the run described by cfg.
func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		pidfile: NewPIDFile(cfg.Paths.ServerPID),
		logger:  logger,
	}
}

// Start launches the agent server detached, waits the warm-up, probes
// liveness, and returns the attach endpoint. It returns an empty string when
// the server is not used (commits disabled, dry-run) or could not be brought
// up; the run then proceeds with cold invocations.
func (s *Server) Start(ctx context.Context) string {
	if s.cfg.NoCommit || s.cfg.DryRun {
		s.logger.Debug("agent server not started",
			"no_commit", s.cfg.NoCommit, "dry_run", s.cfg.DryRun)
		return ""
	}

	s.killStale()

	if err := s.pidfile.Acquire(); err != nil {
		s.logger.Warn("agent server unavailable, using cold invocations", "error", err)
		return ""
	}

	cmd, err := s.launch()
	if err != nil {
		s.logger.Warn("agent server launch failed, using cold invocations", "error", err)
		_ = s.pidfile.Remove()
		return ""
	}

	s.mu.Lock()
	s.cmd = cmd
	s.mu.Unlock()

	if err := s.pidfile.Record(cmd.Process.Pid); err != nil {
		s.logger.Warn("record server pid", "error", err)
	}

	// Give the server its warm-up before probing.
	select {
	case <-ctx.Done():
		return ""
	case <-time.After(s.cfg.Agent.Warmup):
	}

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(s.cfg.Agent.Port))
	if err := probe(addr, s.cfg.Agent.ProbeTimeout); err != nil {
		// Soft failure: forget the process so Stop has nothing to signal and
		// the run continues cold.
		s.logger.Warn("agent server not reachable, using cold invocations",
			"addr", addr, "error", err)
		s.mu.Lock()
		s.cmd = nil
		s.mu.Unlock()
		_ = s.pidfile.Remove()
		return ""
	}

	endpoint := "http://" + addr
	s.mu.Lock()
	s.endpoint = endpoint
	s.mu.Unlock()

	s.logger.Info("agent server ready", "endpoint", endpoint, "pid", cmd.Process.Pid)
	return endpoint
}

// Endpoint returns the attach endpoint, or empty when invocations run cold.
func (s *Server) Endpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

// Stop terminates the recorded server process, escalating to SIGKILL when it
// ignores SIGTERM past the grace period. Safe to call more than once; only
// the first call acts.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	cmd := s.cmd
	s.cmd = nil
	s.endpoint = ""
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		_ = s.pidfile.Remove()
		return
	}

	pid := cmd.Process.Pid
	s.logger.Debug("stopping agent server", "pid", pid)
	terminate(pid, s.cfg.Agent.StopGrace)
	_ = s.pidfile.Remove()
}

// killStale terminates a server left behind by a crashed run.
func (s *Server) killStale() {
	pid := s.pidfile.Read()
	if pid <= 0 || !IsProcessRunning(pid) {
		return
	}
	s.logger.Warn("terminating stale agent server", "pid", pid)
	terminate(pid, s.cfg.Agent.StopGrace)
}

// launch starts the server in a new session with stdio sent to the server
// log, so it survives terminal signals aimed at the run.
func (s *Server) launch() (*osexec.Cmd, error) {
	if err := os.MkdirAll(filepath.Dir(s.cfg.Paths.ServerLog), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(s.cfg.Paths.ServerLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open server log: %w", err)
	}
	defer logFile.Close()

	cmd := osexec.Command(s.cfg.Agent.Command, "serve", "--port", strconv.Itoa(s.cfg.Agent.Port))
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s serve: %w", s.cfg.Agent.Command, err)
	}

	// Reap the child when it exits so liveness polling sees real death.
	go func() { _ = cmd.Wait() }()

	return cmd, nil
}

// probe checks server liveness with a plain TCP dial.
func probe(addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// terminate sends SIGTERM to pid, waits up to grace for it to exit, then
// sends SIGKILL.
func terminate(pid int, grace time.Duration) {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// Already gone.
		return
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !IsProcessRunning(pid) {
			return
		}
		time.Sleep(stopPollInterval)
	}

	_ = proc.Signal(syscall.SIGKILL)
}
