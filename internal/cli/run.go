package cli

import (
	"os/signal"
	"syscall"

	"github.com/ksyq12/certd/internal/logger"
	"github.com/ksyq12/certd/internal/output"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the renewal daemon",
	Long: `Run certd as a long-lived daemon: load the configuration, reconcile
the state store with the configured sites and the certificates on disk,
then check for due renewals on the configured interval.

SIGINT and SIGTERM stop the daemon; in-flight renewal attempts are
allowed to finish so a certificate swap is never interrupted.

Examples:
  certd run
  certd run --config /etc/certd/config.yaml`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, st, err := loadConfigAndStore()
	if err != nil {
		return err
	}

	// Persist the reconciled view before the first tick so a crash during
	// the initial pass does not lose onboarded sets.
	if err := st.Save(); err != nil {
		return err
	}

	sched, err := buildScheduler(cfg, st)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	output.Info("certd %s managing %d domain set(s)", version, st.Len())
	sched.Run(ctx)

	if err := st.Save(); err != nil {
		logger.LogError(err, "persist state on shutdown")
	}
	logger.Info("daemon stopped")
	return nil
}
