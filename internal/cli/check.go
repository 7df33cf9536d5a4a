package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/ksyq12/certd/internal/output"
	"github.com/ksyq12/certd/internal/scheduler"
	"github.com/spf13/cobra"
)

var dryRun bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single renewal pass and exit",
	Long: `Run one renewal pass: every domain set inside its renewal window is
renewed, then the command waits for the attempts to finish.

With --dry-run nothing is renewed; the command only reports which sets
are due.

Examples:
  certd check
  certd check --dry-run`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only report which sets are due, renew nothing")

	rootCmd.AddCommand(checkCmd)
}

type checkResult struct {
	Domains []string `json:"domains"`
	Due     bool     `json:"due"`
	Status  string   `json:"status"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, st, err := loadConfigAndStore()
	if err != nil {
		return err
	}

	opts := scheduler.OptionsFromConfig(cfg)
	now := time.Now()

	if dryRun {
		results := make([]checkResult, 0, st.Len())
		dueCount := 0
		for _, rec := range st.Snapshot() {
			due := rec.Due(now, opts.RenewalWindow)
			if due {
				dueCount++
			}
			results = append(results, checkResult{
				Domains: rec.Domains,
				Due:     due,
				Status:  certStatus(rec, now, opts.RenewalWindow),
			})
		}

		if jsonOutput {
			return output.JSON(results)
		}
		for _, r := range results {
			if r.Due {
				output.Warn("%s is due for renewal", strings.Join(r.Domains, " "))
			} else {
				output.Print("%s is current", strings.Join(r.Domains, " "))
			}
		}
		output.Info("%d of %d domain set(s) due", dueCount, len(results))
		return nil
	}

	sched, err := buildScheduler(cfg, st)
	if err != nil {
		return err
	}

	output.Info("Running renewal pass for %d domain set(s)...", st.Len())
	sched.RunOnce()

	if err := st.Save(); err != nil {
		output.Warn("State save failed: %v", err)
	}

	failing := 0
	for _, rec := range st.Snapshot() {
		if rec.Attempts > 0 || !rec.Installed() {
			failing++
		}
	}

	if failing > 0 {
		output.Warn("Renewal pass finished, %d domain set(s) still need renewal", failing)
		return fmt.Errorf("%d domain set(s) unhealthy", failing)
	}
	output.Success("Renewal pass finished, all certificates current")
	return nil
}
