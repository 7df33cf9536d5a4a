// Package executor wraps system command execution behind an interface so
// the reload signal can be faked in tests.
package executor

import (
	"context"
	"os/exec"
)

// CommandExecutor is an interface for executing system commands.
type CommandExecutor interface {
	// Execute runs a command and returns its combined output. The command
	// is killed when the context is cancelled.
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)

	// LookPath searches for an executable in the directories named by PATH.
	LookPath(file string) (string, error)
}

// SystemExecutor implements CommandExecutor using os/exec.
type SystemExecutor struct{}

// NewSystemExecutor creates a new SystemExecutor.
func NewSystemExecutor() *SystemExecutor {
	return &SystemExecutor{}
}

// Execute runs a command and returns combined output.
func (e *SystemExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

// LookPath searches for an executable.
func (e *SystemExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// MockExecutor is a mock implementation for testing.
type MockExecutor struct {
	ExecuteFunc  func(ctx context.Context, name string, args ...string) ([]byte, error)
	LookPathFunc func(file string) (string, error)
	Calls        []CommandCall
}

// CommandCall records a command execution for verification.
type CommandCall struct {
	Name string
	Args []string
}

// Execute records the call and delegates to ExecuteFunc when set.
func (m *MockExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.Calls = append(m.Calls, CommandCall{Name: name, Args: args})
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, name, args...)
	}
	return []byte(""), nil
}

// LookPath delegates to LookPathFunc when set.
func (m *MockExecutor) LookPath(file string) (string, error) {
	if m.LookPathFunc != nil {
		return m.LookPathFunc(file)
	}
	return "/usr/bin/" + file, nil
}
