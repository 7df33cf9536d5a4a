package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ksyq12/certd/internal/input"
	"github.com/ksyq12/certd/internal/output"
	"github.com/spf13/cobra"
)

var (
	purgeFiles    bool
	removeConfirm bool
)

var removeCmd = &cobra.Command{
	Use:     "remove <domain>",
	Aliases: []string{"rm"},
	Short:   "Stop managing a domain set's certificate",
	Long: `Remove a domain set from the managed sites.

The set is matched by its primary domain or full set key. Installed
certificate files are left in place unless --purge is given, so a
running web server keeps serving the last certificate.

Examples:
  certd remove example.com
  certd remove example.com --purge --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().BoolVar(&purgeFiles, "purge", false, "Also delete the installed certificate files")
	removeCmd.Flags().BoolVarP(&removeConfirm, "yes", "y", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := deps.ConfigLoader.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	idx := cfg.FindSite(name)
	if idx < 0 {
		return fmt.Errorf("domain set %s is not managed", name)
	}
	site := cfg.Sites[idx]

	if !removeConfirm {
		output.Print("Stop managing %s? [y/N]: ", site.Key())
		if !input.Confirm(deps.Stdin) {
			output.Info("Aborted")
			return nil
		}
	}

	cfg.Sites = append(cfg.Sites[:idx], cfg.Sites[idx+1:]...)
	if err := saveConfig(cfg); err != nil {
		return err
	}

	// Decommission the state record right away rather than waiting for
	// the daemon's next sync.
	st, err := deps.StoreOpener.Open(cfg.StateFile)
	if err != nil {
		output.Warn("Config updated but state could not be opened: %v", err)
	} else if st.Remove(site.Key()) {
		if err := st.Save(); err != nil {
			output.Warn("Config updated but state save failed: %v", err)
		}
	}

	if purgeFiles {
		dir := filepath.Join(cfg.CertDir, site.Primary())
		if err := os.RemoveAll(dir); err != nil {
			output.Warn("Could not delete certificate files in %s: %v", dir, err)
		}
	}

	return outputResult(
		newSuccessResult(site.Domains, "remove"),
		"No longer managing %s", site.Key(),
	)
}
