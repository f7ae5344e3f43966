package cmd

import (
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/clustertune/clustertune/remote"
	"github.com/clustertune/clustertune/tune"
)

var (
	// Connection flags shared by every subcommand
	endpoint       string  // base URL of the modeling API
	apiKey         string  // API key; falls back to CLUSTERTUNE_API_KEY
	logLevel       string  // log verbosity level
	requestsPerSec float64 // outgoing request rate cap
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "clustertune",
	Short: "Pick k for k-means and find anomalous rows via a hosted modeling service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newService builds the remote ModelingService from the connection flags.
func newService() tune.ModelingService {
	if endpoint == "" {
		logrus.Fatalf("No modeling API endpoint provided (--endpoint)")
	}
	key := apiKey
	if key == "" {
		key = os.Getenv("CLUSTERTUNE_API_KEY")
	}
	svc, err := remote.New(endpoint, key, remote.WithRequestsPerSecond(requestsPerSec))
	if err != nil {
		logrus.Fatalf("Bad endpoint: %v", err)
	}
	return svc
}

// writeResult prints v as indented JSON to stdout, or to path if given.
func writeResult(v any, path string) {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logrus.Fatalf("Failed to encode result: %v", err)
	}
	buf = append(buf, '\n')
	if path == "" {
		if _, err := os.Stdout.Write(buf); err != nil {
			logrus.Fatalf("Failed to write result: %v", err)
		}
		return
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		logrus.Fatalf("Failed to write %s: %v", path, err)
	}
}

// init sets up shared CLI flags
func init() {
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "Base URL of the modeling API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key (defaults to CLUSTERTUNE_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().Float64Var(&requestsPerSec, "rps", 10, "Maximum API requests per second")
}
