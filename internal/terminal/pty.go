package terminal

import (
	"os"
	"os/exec"
	"regexp"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
)

// ptyRingSize is the PTY output ring buffer capacity (spec.md §4.7).
const ptyRingSize = 128 * 1024

// ansiEscape strips ANSI escape sequences from PTY output destined for
// AI consumption (spec.md §4.7).
var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// PTYSession is a live pseudo-terminal-backed shell.
type PTYSession struct {
	ID string

	cmd *exec.Cmd
	f   *os.File

	mu      sync.Mutex
	ring    []byte
	offset  int64 // total bytes ever written, for since-last-offset reads
	alive   bool
	stripAI bool
}

// NewPTYSession spawns shell in a PTY of the given size. When stripANSI
// is set, escape sequences are removed from buffered output before reads
// (used when the reader is an AI tool caller rather than a terminal UI).
func NewPTYSession(shell string, cols, rows int, stripANSI bool) (*PTYSession, error) {
	if shell == "" {
		shell = "/bin/sh"
	}
	cmd := exec.Command(shell)
	f, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, err
	}

	s := &PTYSession{ID: uuid.NewString(), cmd: cmd, f: f, alive: true, stripAI: stripANSI}
	go s.readLoop()
	return s, nil
}

func (s *PTYSession) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.f.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.ring = append(s.ring, buf[:n]...)
			if len(s.ring) > ptyRingSize {
				s.ring = s.ring[len(s.ring)-ptyRingSize:]
			}
			s.offset += int64(n)
			s.mu.Unlock()
		}
		if err != nil {
			s.mu.Lock()
			s.alive = false
			s.mu.Unlock()
			return
		}
	}
}

// Write enqueues input to the PTY.
func (s *PTYSession) Write(input string) error {
	_, err := s.f.Write([]byte(input))
	return err
}

// Read returns the buffered output produced since the last read call and
// whether the session is still alive.
func (s *PTYSession) Read() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := string(s.ring)
	s.ring = nil
	if s.stripAI {
		out = ansiEscape.ReplaceAllString(out, "")
	}
	return out, s.alive
}

// Kill sends SIGTERM, then SIGKILL after a grace period if the process
// has not exited.
func (s *PTYSession) Kill(grace time.Duration) {
	if s.cmd.Process == nil {
		return
	}
	_ = s.cmd.Process.Signal(syscall.SIGTERM)
	go func() {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		done := make(chan struct{})
		go func() { _, _ = s.cmd.Process.Wait(); close(done) }()
		select {
		case <-done:
		case <-timer.C:
			_ = s.cmd.Process.Kill()
		}
		s.mu.Lock()
		s.alive = false
		s.mu.Unlock()
		_ = s.f.Close()
	}()
}

// PTYManager tracks live PTY sessions by id (spec.md §4.7 "terminal.*"
// method family), independent of the process-wide singleton `bash`
// session the AI tool loop uses (see internal/tools bash tool).
type PTYManager struct {
	mu       sync.RWMutex
	sessions map[string]*PTYSession
}

func NewPTYManager() *PTYManager {
	return &PTYManager{sessions: make(map[string]*PTYSession)}
}

func (m *PTYManager) Create(shell string, cols, rows int) (*PTYSession, error) {
	s, err := NewPTYSession(shell, cols, rows, true)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

func (m *PTYManager) Get(id string) (*PTYSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *PTYManager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (m *PTYManager) Kill(id string, grace time.Duration) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Kill(grace)
	}
}
