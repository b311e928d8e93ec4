package tools

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/hattiebot/hattiebot/internal/terminal"
)

// RunTerminalTool is the tool entrypoint for execute_command: args is
// JSON {"work_dir": "...", "command": "..."}. Every command passes
// through the safety checker before it reaches the shell.
func RunTerminalTool(ctx context.Context, workDirDefault string, argsJSON string) (string, error) {
	var args struct {
		WorkDir string `json:"work_dir"`
		Command string `json:"command"`
	}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", err
		}
	}
	if args.WorkDir == "" {
		args.WorkDir = workDirDefault
	}
	args.WorkDir = filepath.Clean(args.WorkDir)
	if args.Command == "" {
		out, _ := json.Marshal(map[string]interface{}{"error": "command is required", "stdout": "", "stderr": "", "exit_code": -1})
		return string(out), nil
	}

	if d := terminal.Check(args.Command); !d.Allowed {
		out, _ := json.Marshal(map[string]interface{}{
			"error":     map[string]string{"code": "SAFETY_BLOCKED", "message": d.Reason},
			"stdout":    "",
			"stderr":    "",
			"exit_code": -1,
		})
		return string(out), nil
	}

	res, err := terminal.Exec(ctx, args.WorkDir, args.Command, terminal.DefaultTimeout)
	if err != nil {
		out, _ := json.Marshal(map[string]interface{}{"error": err.Error(), "stdout": "", "stderr": "", "exit_code": -1})
		return string(out), nil
	}
	raw, _ := json.Marshal(res)
	return string(raw), nil
}
