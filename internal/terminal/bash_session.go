package terminal

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BashTimeout bounds a single bash tool call (spec.md §4.4).
const BashTimeout = 60 * time.Second

// SharedBash is the process-wide persistent PTY-backed shell the `bash`
// tool sends lines to. Only one call runs at a time; concurrent callers
// serialize on Send's mutex (spec.md §5 "AI bash session handle").
type SharedBash struct {
	mu      sync.Mutex
	session *PTYSession
}

// NewSharedBash lazily starts the singleton PTY on first use.
func NewSharedBash() *SharedBash {
	return &SharedBash{}
}

func (b *SharedBash) ensureStarted() error {
	if b.session != nil {
		if _, alive := b.session.Read(); alive {
			return nil
		}
	}
	s, err := NewPTYSession("/bin/sh", 200, 50, true)
	if err != nil {
		return fmt.Errorf("terminal: start shared bash: %w", err)
	}
	b.session = s
	return nil
}

// Send writes line to the shared shell, then polls output until a unique
// sentinel echoes back (marking command completion) or BashTimeout
// elapses.
func (b *SharedBash) Send(line string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.ensureStarted(); err != nil {
		return "", err
	}

	sentinel := "__hattiebot_bash_done_" + uuid.NewString() + "__"
	if err := b.session.Write(line + "\necho " + sentinel + "\n"); err != nil {
		return "", err
	}

	deadline := time.Now().Add(BashTimeout)
	var collected string
	for time.Now().Before(deadline) {
		chunk, alive := b.session.Read()
		collected += chunk
		if idx := indexOf(collected, sentinel); idx >= 0 {
			return collected[:idx], nil
		}
		if !alive {
			return collected, fmt.Errorf("terminal: shared bash session exited")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return collected, fmt.Errorf("terminal: bash command timed out after %s", BashTimeout)
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
