package cli

import (
	"os"

	"github.com/ksyq12/certd/internal/config"
	"github.com/ksyq12/certd/internal/errors"
	"github.com/ksyq12/certd/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonOutput bool
	verbose    bool
	version    = "dev"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "certd",
	Short: "TLS certificate renewal daemon",
	Long: `certd keeps TLS certificates for a set of domains renewed against an
ACME certificate authority.

Run it as a daemon with 'certd run', or drive a single renewal pass with
'certd check'. Managed domain sets are edited with 'certd add' and
'certd remove'; 'certd status' and 'certd history' answer what state
everything is in.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	cobra.OnInitialize(func() {
		logger.Init(verbose)
	})

	if err := rootCmd.Execute(); err != nil {
		// Configuration problems get their own exit code so init systems
		// and scripts can tell them apart from renewal failures.
		if errors.CodeOf(err) == errors.CodeConfig {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// SetVersion sets the version string for the CLI
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging for debugging")
}
