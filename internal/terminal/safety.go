// Package terminal implements the one-shot exec, PTY session, and
// background job subsystem fronted by the pattern-based safety checker
// (spec.md §4.4, §4.7).
package terminal

import (
	"regexp"
	"strings"
)

// shellMetachars are the characters whose presence disqualifies a command
// from the allowlist fast path (spec.md §4.4 step 1).
const shellMetachars = "|>;&$`"

// allowlistPrefixes are argv[0] (or argv[0..1] for git/cargo subcommands)
// tokens that are permitted outright when the command has no shell
// metacharacter.
var allowlistPrefixes = []string{
	"ls", "pwd", "echo", "cat", "grep", "rg", "find", "fd",
	"git log", "git status", "git diff",
	"cargo check", "cargo test", "cargo build",
	"go build", "go test", "go vet",
}

// denylistPatterns are case-insensitive regexes matched against the full
// command string (spec.md §4.4 step 2).
var denylistPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rm\s+-rf\s+/(\s|$)`),
	regexp.MustCompile(`(?i):\(\)\s*\{\s*:\|:&\s*\};\s*:`),
	regexp.MustCompile(`(?i)\|\s*(ba)?sh\b`),
	regexp.MustCompile(`(?i)\bdd\s+if=`),
	regexp.MustCompile(`(?i)\bmkfs\b`),
	regexp.MustCompile(`(?i)>\s*/dev/sd[a-z]`),
	regexp.MustCompile(`(?i)chmod\s+777\s+/(\s|$)`),
	regexp.MustCompile(`(?i)\bshutdown\b`),
	regexp.MustCompile(`(?i)\breboot\b`),
	regexp.MustCompile(`(?i)\bkill\s+-9\s+1\b`),
	regexp.MustCompile(`(?i)>\s*/etc/`),
	regexp.MustCompile(`(?i)\bsudo\b`),
	regexp.MustCompile(`(?i)\beval\s*\(`),
	regexp.MustCompile(`(?i)\bexec\s*\(\s*['"]?(base64|atob)`),
}

// Decision is the result of a safety check.
type Decision struct {
	Allowed bool
	Reason  string
}

// SafetyError reports a blocked command; wsgateway's terminalCall helper
// recognizes it via the SafetyBlocked marker method.
type SafetyError struct {
	Reason string
}

func (e *SafetyError) Error() string    { return "safety check blocked command: " + e.Reason }
func (e *SafetyError) SafetyBlocked() bool { return true }

// Check applies the three-step decision order from spec.md §4.4.
func Check(command string) Decision {
	trimmed := strings.TrimSpace(command)

	if !strings.ContainsAny(trimmed, shellMetachars) && hasAllowlistPrefix(trimmed) {
		return Decision{Allowed: true}
	}

	for _, pat := range denylistPatterns {
		if pat.MatchString(trimmed) {
			return Decision{Allowed: false, Reason: "matched " + describePattern(pat) + " pattern"}
		}
	}

	return Decision{Allowed: true}
}

func hasAllowlistPrefix(cmd string) bool {
	for _, prefix := range allowlistPrefixes {
		if cmd == prefix || strings.HasPrefix(cmd, prefix+" ") {
			return true
		}
	}
	return false
}

// describePattern renders a short human name for a denylist match; used
// only in the blocked-command reason string.
func describePattern(pat *regexp.Regexp) string {
	names := map[string]string{
		`(?i)rm\s+-rf\s+/(\s|$)`:                 "rm -rf /",
		`(?i):\(\)\s*\{\s*:\|:&\s*\};\s*:`:       "fork bomb",
		`(?i)\|\s*(ba)?sh\b`:                     "pipe-to-shell",
		`(?i)\bdd\s+if=`:                         "dd if=",
		`(?i)\bmkfs\b`:                           "mkfs",
		`(?i)>\s*/dev/sd[a-z]`:                   "> /dev/sda",
		`(?i)chmod\s+777\s+/(\s|$)`:              "chmod 777 /",
		`(?i)\bshutdown\b`:                       "shutdown",
		`(?i)\breboot\b`:                         "reboot",
		`(?i)\bkill\s+-9\s+1\b`:                  "kill -9 1",
		`(?i)>\s*/etc/`:                          "> /etc/",
		`(?i)\bsudo\b`:                           "sudo",
		`(?i)\beval\s*\(`:                        "eval(",
		`(?i)\bexec\s*\(\s*['"]?(base64|atob)`:   "exec(base64/atob",
	}
	if n, ok := names[pat.String()]; ok {
		return n
	}
	return pat.String()
}
