package cli

import (
	"fmt"
	"strings"

	"github.com/ksyq12/certd/internal/config"
	"github.com/ksyq12/certd/internal/output"
	"github.com/ksyq12/certd/internal/report"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [domain]",
	Short: "Show recent renewal attempts",
	Long: `Show the most recent renewal attempts from the attempt log, newest
last. With a domain argument only attempts for that set are shown.

Examples:
  certd history
  certd history example.com
  certd history --limit 50 --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of attempts to show")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := deps.ConfigLoader.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	attempts, err := report.ReadRecent(cfg.AttemptLog, 0)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		idx := cfg.FindSite(args[0])
		key := config.SetKey([]string{args[0]})
		if idx >= 0 {
			key = cfg.Sites[idx].Key()
		}
		filtered := attempts[:0]
		for _, a := range attempts {
			if a.Key() == key {
				filtered = append(filtered, a)
			}
		}
		attempts = filtered
	}

	if historyLimit > 0 && len(attempts) > historyLimit {
		attempts = attempts[len(attempts)-historyLimit:]
	}

	if jsonOutput {
		if attempts == nil {
			attempts = []report.Attempt{}
		}
		return output.JSON(attempts)
	}

	if len(attempts) == 0 {
		output.Info("No renewal attempts recorded")
		return nil
	}

	headers := []string{"FINISHED", "DOMAINS", "OUTCOME", "CODE", "ERROR"}
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		rows = append(rows, []string{
			a.FinishedAt.Format("2006-01-02 15:04:05"),
			strings.Join(a.Domains, " "),
			a.Outcome,
			a.ErrorCode,
			a.Error,
		})
	}
	output.Table(headers, rows)
	return nil
}
