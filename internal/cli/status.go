package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/ksyq12/certd/internal/output"
	"github.com/ksyq12/certd/internal/scheduler"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of every managed certificate",
	Long: `Show each managed domain set with its expiry, failure count, and
whether it needs manual attention.

Examples:
  certd status
  certd status --json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type certStatusItem struct {
	Domains       []string  `json:"domains"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	Status        string    `json:"status"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorCode string    `json:"last_error_code,omitempty"`
	NextAttemptAt time.Time `json:"next_attempt_at,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, st, err := loadConfigAndStore()
	if err != nil {
		return err
	}

	now := time.Now()
	window := scheduler.OptionsFromConfig(cfg).RenewalWindow
	snapshot := st.Snapshot()

	items := make([]certStatusItem, 0, len(snapshot))
	rows := make([][]string, 0, len(snapshot))
	degraded := st.DegradedCount()
	for _, rec := range snapshot {
		status := certStatus(rec, now, window)
		items = append(items, certStatusItem{
			Domains:       rec.Domains,
			ExpiresAt:     rec.ExpiresAt,
			Status:        status,
			Attempts:      rec.Attempts,
			LastError:     rec.LastError,
			LastErrorCode: rec.LastErrorCode,
			NextAttemptAt: rec.NextAttemptAt,
		})

		expires := "-"
		if rec.Installed() {
			expires = rec.ExpiresAt.Format("2006-01-02")
		}
		rows = append(rows, []string{
			strings.Join(rec.Domains, " "),
			expires,
			daysLeft(rec, now),
			status,
			strconv.Itoa(rec.Attempts),
			rec.LastErrorCode,
		})
	}

	if jsonOutput {
		return output.JSON(items)
	}

	if len(items) == 0 {
		output.Info("No managed domain sets; add one with 'certd add'")
		return nil
	}

	output.Table([]string{"DOMAINS", "EXPIRES", "LEFT", "STATUS", "ATTEMPTS", "LAST ERROR"}, rows)

	if degraded > 0 {
		output.Degraded("%d domain set(s) need manual intervention", degraded)
	}
	return nil
}
