package buildenv

import (
	"fmt"
	"strings"

	"github.com/oneconcern/envmon/pkg/errors"
)

var (
	// ErrLock indicates that the backend failed to resolve a manifest
	ErrLock = errors.New("failed to lock environment")

	// ErrBuild indicates that the backend failed to build a lockfile
	ErrBuild = errors.New("failed to build environment")

	// ErrBadOutput indicates that the backend produced output that could not be understood
	ErrBadOutput = errors.New("unexpected output from build backend")
)

// CommandError reports a failed backend invocation, with the backend's own message
type CommandError struct {
	Binary   string
	Args     []string
	ExitCode int
	Stderr   string

	// Message is the human readable error reported by the backend, when it reports one
	Message string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s: exit status %d", e.Binary, strings.Join(e.Args, " "), e.ExitCode)
	switch {
	case e.Message != "":
		msg += ": " + e.Message
	case strings.TrimSpace(e.Stderr) != "":
		msg += ": " + strings.TrimSpace(e.Stderr)
	}
	return msg
}

// backendMessage is the structured error the backend prints on its last stderr line
type backendMessage struct {
	ExitCode        int    `json:"exit_code"`
	CategoryMessage string `json:"category_message"`
	ContextMessage  string `json:"context_message,omitempty"`
	CaughtMessage   string `json:"caught_message,omitempty"`
}

func parseBackendMessage(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if !strings.HasPrefix(last, "{") {
		return ""
	}
	var m backendMessage
	if err := json.Unmarshal([]byte(last), &m); err != nil || m.CategoryMessage == "" {
		return ""
	}
	parts := []string{m.CategoryMessage}
	for _, extra := range []string{m.ContextMessage, m.CaughtMessage} {
		if extra != "" {
			parts = append(parts, extra)
		}
	}
	return strings.Join(parts, ": ")
}
