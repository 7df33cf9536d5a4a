package install

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ksyq12/certd/internal/errors"
	"github.com/ksyq12/certd/internal/executor"
	"github.com/ksyq12/certd/internal/logger"
)

const defaultReloadTimeout = 30 * time.Second

// Reloader signals the web server to pick up renewed certificates. The
// primary command is tried first (typically systemctl reload), then the
// fallback (typically the server binary's own reload signal).
type Reloader struct {
	exec     executor.CommandExecutor
	command  []string
	fallback []string
	timeout  time.Duration
}

// NewReloader creates a Reloader. The fallback may be empty.
func NewReloader(exec executor.CommandExecutor, command, fallback []string) *Reloader {
	return &Reloader{
		exec:     exec,
		command:  command,
		fallback: fallback,
		timeout:  defaultReloadTimeout,
	}
}

// Verify checks that the reload command, or its fallback, resolves to an
// executable. Meant as a startup pre-flight: a missing binary surfaces
// before the first renewal instead of after a certificate swap.
func (r *Reloader) Verify() error {
	if len(r.command) == 0 {
		return errors.Wrap(errors.CodeReload, "empty reload command", nil)
	}
	_, err := r.exec.LookPath(r.command[0])
	if err == nil {
		return nil
	}
	if len(r.fallback) > 0 {
		if _, fbErr := r.exec.LookPath(r.fallback[0]); fbErr == nil {
			return nil
		}
	}
	return errors.Wrap(errors.CodeReload,
		fmt.Sprintf("reload command %q not found in PATH", r.command[0]), err)
}

// Reload runs the reload command, falling back when the primary fails.
// The returned error carries CodeReload: callers report it but never undo
// the installation because of it.
func (r *Reloader) Reload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.run(ctx, r.command)
	if err == nil {
		logger.Debug("web server reloaded via %s", strings.Join(r.command, " "))
		return nil
	}

	if len(r.fallback) > 0 {
		logger.Warn("reload command failed (%s), trying fallback", firstLine(out))
		fbOut, fbErr := r.run(ctx, r.fallback)
		if fbErr == nil {
			logger.Debug("web server reloaded via %s", strings.Join(r.fallback, " "))
			return nil
		}
		return errors.Wrap(errors.CodeReload,
			"reload failed: "+firstLine(out)+"; fallback: "+firstLine(fbOut), fbErr)
	}

	return errors.Wrap(errors.CodeReload, "reload failed: "+firstLine(out), err)
}

func (r *Reloader) run(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, errors.Wrap(errors.CodeReload, "empty reload command", nil)
	}
	return r.exec.Execute(ctx, argv[0], argv[1:]...)
}

func firstLine(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "no output"
	}
	return s
}
