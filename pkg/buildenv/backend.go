// Package buildenv drives the external backend which resolves manifests into
// lockfiles and builds lockfiles into immutable environment outputs.
package buildenv

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Backend resolves and builds environments.
//
// Calls block until the backend completes: no timeout is imposed.
type Backend interface {
	// Lock resolves a manifest into a lockfile.
	//
	// When existingLockfile is not empty, resolution is seeded by this lockfile.
	// Otherwise it is seeded by the global manifest, if any.
	Lock(ctx context.Context, manifestPath, existingLockfile, globalManifest string) ([]byte, error)

	// Build a lockfile and yield the output path. When outLink is not empty,
	// a symlink to the output is created at this location.
	Build(ctx context.Context, lockfilePath, outLink string) (string, error)
}

var _ Backend = &Subprocess{}

// Subprocess runs the backend as a subprocess
type Subprocess struct {
	binary string
	system string
	l      *zap.Logger
}

// Option for the subprocess backend
type Option func(*Subprocess)

// WithLogger logs backend invocations at debug level
func WithLogger(l *zap.Logger) Option {
	return func(s *Subprocess) {
		if l != nil {
			s.l = l
		}
	}
}

// WithSystem sets the system to build for
func WithSystem(system string) Option {
	return func(s *Subprocess) {
		s.system = system
	}
}

// New subprocess backend
func New(binary string, opts ...Option) *Subprocess {
	s := &Subprocess{
		binary: binary,
		l:      zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// Lock runs "<backend> manifest lock"
func (s *Subprocess) Lock(ctx context.Context, manifestPath, existingLockfile, globalManifest string) ([]byte, error) {
	args := []string{"manifest", "lock"}
	if globalManifest != "" {
		if _, err := os.Stat(globalManifest); err == nil {
			args = append(args, "--global-manifest", globalManifest)
		}
	}
	if existingLockfile != "" {
		args = append(args, "--lockfile", existingLockfile)
	}
	args = append(args, manifestPath)

	out, err := s.run(ctx, args...)
	if err != nil {
		return nil, ErrLock.Wrap(err)
	}
	return out, nil
}

type buildOutput struct {
	StorePath string `json:"store_path"`
}

// Build runs "<backend> buildenv"
func (s *Subprocess) Build(ctx context.Context, lockfilePath, outLink string) (string, error) {
	args := []string{"buildenv"}
	if s.system != "" {
		args = append(args, "--system", s.system)
	}
	if outLink != "" {
		args = append(args, "--out-link", outLink)
	}
	args = append(args, lockfilePath)

	out, err := s.run(ctx, args...)
	if err != nil {
		return "", ErrBuild.Wrap(err)
	}
	var res buildOutput
	if err := json.Unmarshal(out, &res); err != nil {
		return "", ErrBadOutput.WrapMessage("%s", strings.TrimSpace(string(out))).Wrap(err)
	}
	if res.StorePath == "" {
		return "", ErrBadOutput.WrapMessage("no store path")
	}
	return res.StorePath, nil
}

func (s *Subprocess) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	s.l.Debug("build backend", zap.String("binary", s.binary), zap.Strings("args", args), zap.Error(err))
	if err != nil {
		cmdErr := &CommandError{
			Binary:   s.binary,
			Args:     args,
			ExitCode: -1,
			Stderr:   stderr.String(),
			Message:  parseBackendMessage(stderr.String()),
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			cmdErr.ExitCode = exitErr.ExitCode()
		} else {
			cmdErr.Stderr += err.Error()
		}
		return nil, cmdErr
	}
	return stdout.Bytes(), nil
}
