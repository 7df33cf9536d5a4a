package cli

import (
	"fmt"
	"time"

	"github.com/ksyq12/certd/internal/config"
	"github.com/ksyq12/certd/internal/install"
	"github.com/ksyq12/certd/internal/logger"
	"github.com/ksyq12/certd/internal/output"
	"github.com/ksyq12/certd/internal/scheduler"
	"github.com/ksyq12/certd/internal/store"
)

// loadConfigAndStore loads the configuration and opens the state store,
// reconciling it with the configured sites and the certificates on disk.
func loadConfigAndStore() (*config.Config, *store.Store, error) {
	cfg, err := deps.ConfigLoader.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := deps.StoreOpener.Open(cfg.StateFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state: %w", err)
	}

	st.SyncSites(cfg.Sites, cfg.CertDir)
	st.RefreshFromDisk()
	return cfg, st, nil
}

// buildScheduler assembles the renewal scheduler from the configuration.
func buildScheduler(cfg *config.Config, st *store.Store) (*scheduler.Scheduler, error) {
	client, err := deps.ClientFactory.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ACME client: %w", err)
	}

	recorder, err := deps.RecorderOpen.Open(cfg.AttemptLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open attempt log: %w", err)
	}

	reloader := install.NewReloader(deps.Executor, cfg.Reload.Command, cfg.Reload.Fallback)
	if err := reloader.Verify(); err != nil {
		logger.Warn("reload pre-flight: %v", err)
	}
	return scheduler.New(st, client, install.NewInstaller(), reloader, recorder, scheduler.OptionsFromConfig(cfg)), nil
}

// saveConfig saves the config and returns error instead of just warning
func saveConfig(cfg *config.Config) error {
	if err := deps.ConfigLoader.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// outputResult handles JSON or human-readable output
func outputResult(data interface{}, successMsg string, args ...interface{}) error {
	if jsonOutput {
		return output.JSON(data)
	}
	output.Success(successMsg, args...)
	return nil
}

// certStatus summarizes one managed certificate for human output.
func certStatus(rec store.ManagedCertificate, now time.Time, window time.Duration) string {
	switch {
	case rec.Degraded:
		return "degraded"
	case rec.Attempts > 0:
		return "failing"
	case !rec.Installed():
		return "pending"
	case rec.Due(now, window):
		return "due"
	default:
		return "ok"
	}
}

// daysLeft renders the time until expiry for table output.
func daysLeft(rec store.ManagedCertificate, now time.Time) string {
	if !rec.Installed() {
		return "-"
	}
	d := rec.ExpiresAt.Sub(now)
	if d < 0 {
		return "expired"
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

// CommandResult represents a common result structure for CLI commands
type CommandResult struct {
	Success bool     `json:"success"`
	Domains []string `json:"domains,omitempty"`
	Action  string   `json:"action,omitempty"`
	Message string   `json:"message,omitempty"`
}

// newSuccessResult creates a success result
func newSuccessResult(domains []string, action string) CommandResult {
	return CommandResult{
		Success: true,
		Domains: domains,
		Action:  action,
	}
}
