package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	jsonOut    bool
)

var rootCmd = &cobra.Command{
	Use:   "motionbridge",
	Short: "Tool bridge between chat models and motion-control hardware",
	Long: `motionbridge connects LLM chat sessions to a motion-control REST API.

It runs as two cooperating services:
  - bridge: session-scoped tool endpoint (initialize, tools/list, tools/call)
    backed by the motion controller
  - serve:  chat gateway that discovers the bridge's tools and orchestrates
    completion calls against them

Supporting commands inspect the tool catalog, the invocation audit log, and
live gateway status.`,
	Version: "0.3.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ~/.motionbridge/motionbridge.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "JSON output")
}

// GetConfigPath returns the config file path
func GetConfigPath() string {
	if configPath != "" {
		return configPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "motionbridge.yaml"
	}
	return filepath.Join(home, ".motionbridge", "motionbridge.yaml")
}

// IsVerbose returns verbose flag
func IsVerbose() bool {
	return verbose
}

// IsJSON returns json output flag
func IsJSON() bool {
	return jsonOut
}
