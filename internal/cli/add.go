package cli

import (
	"fmt"

	"github.com/ksyq12/certd/internal/config"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <domain> [domain...]",
	Short: "Start managing a certificate for a domain set",
	Long: `Add a domain set to the managed sites.

All listed domains end up on a single certificate; the first domain is
the primary name and names the certificate directory. The daemon picks
up the new set on its next restart, or renew immediately with
'certd check'.

Examples:
  certd add example.com
  certd add example.com www.example.com`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	for _, d := range args {
		if err := config.ValidateDomain(d); err != nil {
			return err
		}
	}

	cfg, err := deps.ConfigLoader.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	site := config.Site{Domains: args}
	for _, existing := range cfg.Sites {
		if existing.Key() == site.Key() {
			return fmt.Errorf("domain set %s is already managed", site.Key())
		}
	}

	cfg.Sites = append(cfg.Sites, site)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := saveConfig(cfg); err != nil {
		return err
	}

	return outputResult(
		newSuccessResult(site.Domains, "add"),
		"Now managing %s; certificate will be requested on the next pass", site.Key(),
	)
}
