// Command mmctl queries the money moved datasets from the command line,
// seals and unseals the data directory, and validates a running server.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"moneymoved/internal/logging"
	"moneymoved/internal/version"
)

var (
	// Global flags
	verbose     bool
	dataDir     string
	catalogFile string
	timeout     time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mmctl",
	Short: "Money moved analytics from the command line",
	Long: `mmctl runs the dashboard aggregations against the configured datasets
and prints the results as JSON.

Configuration is read from MM_* environment variables and an optional .env
file; --data-dir and --catalog override them.`,
	Version:       version.Get().String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: MM_DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "", "Dataset catalog file (default: MM_CATALOG_FILE)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	addQueryCommands(rootCmd)
	rootCmd.AddCommand(sealCmd)
	rootCmd.AddCommand(unsealCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
