package vcs

import (
	"go.uber.org/zap"
)

type gitSettings struct {
	binary        string
	userName      string
	userEmail     string
	defaultBranch string
	l             *zap.Logger
}

// Option for git repositories
type Option func(*gitSettings)

// WithBinary sets the git executable
func WithBinary(binary string) Option {
	return func(s *gitSettings) {
		if binary != "" {
			s.binary = binary
		}
	}
}

// WithLogger sets a logger for git invocations, logged at debug level
func WithLogger(l *zap.Logger) Option {
	return func(s *gitSettings) {
		if l != nil {
			s.l = l
		}
	}
}

// WithAuthor sets the identity recorded on commits
func WithAuthor(name, email string) Option {
	return func(s *gitSettings) {
		s.userName = name
		s.userEmail = email
	}
}

// WithDefaultBranch sets the branch checked out by repositories created with Init
func WithDefaultBranch(branch string) Option {
	return func(s *gitSettings) {
		if branch != "" {
			s.defaultBranch = branch
		}
	}
}

func defaultSettings(opts []Option) gitSettings {
	s := gitSettings{
		binary:        "git",
		userName:      "envmon",
		userEmail:     "envmon@localhost.invalid",
		defaultBranch: "main",
		l:             zap.NewNop(),
	}
	for _, apply := range opts {
		apply(&s)
	}
	return s
}
