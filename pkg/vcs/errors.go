package vcs

import (
	"fmt"
	"strings"

	"github.com/oneconcern/envmon/pkg/errors"
)

var (
	// ErrBranchNotFound indicates that a branch does not exist, locally or on a remote
	ErrBranchNotFound = errors.New("branch does not exist")

	// ErrObjectNotFound indicates that a ref:path object does not exist
	ErrObjectNotFound = errors.New("object does not exist")

	// ErrPushRejected indicates that a remote refused a push, because it would not fast-forward
	ErrPushRejected = errors.New("push rejected")

	// ErrNotARepository indicates that some directory is not a git repository
	ErrNotARepository = errors.New("not a git repository")

	// ErrUnsupportedVersion indicates that the git binary is too old
	ErrUnsupportedVersion = errors.New("unsupported git version")
)

// CommandError reports a failed git invocation
type CommandError struct {
	Args     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git %s: exit status %d", strings.Join(e.Args, " "), e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// exited with some status?
func exited(err error, code int) bool {
	var cmdErr *CommandError
	return errors.As(err, &cmdErr) && cmdErr.ExitCode == code
}

func stderrContains(err error, fragments ...string) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	for _, fragment := range fragments {
		if strings.Contains(cmdErr.Stderr, fragment) {
			return true
		}
	}
	return false
}
