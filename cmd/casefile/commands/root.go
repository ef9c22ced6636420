package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	logLevelFlag string
	configPath   string
)

var rootCmd = &cobra.Command{
	Use:   "casefile",
	Short: "Casefile - OSINT investigation graph backend",
	Long: `Casefile is an OSINT investigation backend: it ingests documents and
structured FollowTheMoney records, extracts entities and relationships,
and maintains one property graph per investigation.`,
	Version: Version,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the casefile version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("casefile v%s\n", Version)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level (debug, info, warn, error). Overrides config and LOG_LEVEL.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML configuration file. Environment variables override file values.")

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(versionCmd)
}

// HandleError prints error and exits
func HandleError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}
