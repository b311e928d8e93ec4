package wiring

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hattiebot/hattiebot/internal/terminal"
)

// TerminalSource wires internal/terminal's one-shot exec, PTY session, and
// background job managers to the wsgateway.TerminalSource contract, so a
// WebSocket client gets the same safety-checked terminal subsystem the
// bash tool uses internally.
type TerminalSource struct {
	Jobs *terminal.JobManager
	PTYs *terminal.PTYManager
}

// NewTerminalSource builds a TerminalSource with fresh job/PTY managers.
func NewTerminalSource() *TerminalSource {
	return &TerminalSource{Jobs: terminal.NewJobManager(), PTYs: terminal.NewPTYManager()}
}

func (t *TerminalSource) Exec(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		WorkDir string `json:"work_dir"`
		Command string `json:"command"`
		Timeout int    `json:"timeout_seconds"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	timeout := terminal.DefaultTimeout
	if p.Timeout > 0 {
		timeout = time.Duration(p.Timeout) * time.Second
		if timeout > terminal.MaxTimeout {
			timeout = terminal.MaxTimeout
		}
	}
	return terminal.Exec(ctx, p.WorkDir, p.Command, timeout)
}

func (t *TerminalSource) Create(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Shell string `json:"shell"`
		Cols  int    `json:"cols"`
		Rows  int    `json:"rows"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	if p.Cols <= 0 {
		p.Cols = 120
	}
	if p.Rows <= 0 {
		p.Rows = 32
	}
	s, err := t.PTYs.Create(p.Shell, p.Cols, p.Rows)
	if err != nil {
		return nil, err
	}
	return map[string]string{"session_id": s.ID}, nil
}

func (t *TerminalSource) Write(ctx context.Context, params json.RawMessage) error {
	var p struct {
		SessionID string `json:"session_id"`
		Input     string `json:"input"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return err
	}
	s, ok := t.PTYs.Get(p.SessionID)
	if !ok {
		return fmt.Errorf("terminal: unknown session %q", p.SessionID)
	}
	return s.Write(p.Input)
}

func (t *TerminalSource) Read(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	s, ok := t.PTYs.Get(p.SessionID)
	if !ok {
		return nil, fmt.Errorf("terminal: unknown session %q", p.SessionID)
	}
	chunk, alive := s.Read()
	return map[string]interface{}{"output": chunk, "alive": alive}, nil
}

func (t *TerminalSource) Kill(ctx context.Context, params json.RawMessage) error {
	var p struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return err
	}
	t.PTYs.Kill(p.SessionID, 3*time.Second)
	return nil
}

func (t *TerminalSource) List(ctx context.Context) (interface{}, error) {
	return t.PTYs.List(), nil
}

func (t *TerminalSource) ExecBackground(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		WorkDir string `json:"work_dir"`
		Command string `json:"command"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	id, err := t.Jobs.Start(p.WorkDir, p.Command)
	if err != nil {
		return nil, err
	}
	return map[string]string{"job_id": id}, nil
}

func (t *TerminalSource) JobStatus(ctx context.Context, jobID string) (interface{}, error) {
	job, ok := t.Jobs.Get(jobID)
	if !ok {
		return nil, fmt.Errorf("terminal: unknown job %q", jobID)
	}
	status, output, exitCode := job.Snapshot()
	return map[string]interface{}{
		"status":      status,
		"output":      output,
		"output_size": humanize.Bytes(uint64(len(output))),
		"exit_code":   exitCode,
	}, nil
}

func (t *TerminalSource) JobList(ctx context.Context) (interface{}, error) {
	return t.Jobs.List(), nil
}

func (t *TerminalSource) JobKill(ctx context.Context, jobID string) error {
	return t.Jobs.Kill(jobID)
}
