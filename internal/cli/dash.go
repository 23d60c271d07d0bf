package cli

import (
	"github.com/spf13/cobra"

	"github.com/mkessler-io/motionbridge/internal/config"
	"github.com/mkessler-io/motionbridge/internal/tui"
)

var dashGateway string

var dashCmd = &cobra.Command{
	Use:   "dash",
	Short: "Run the terminal dashboard",
	Long:  `Terminal dashboard showing gateway status, the tool inventory, and recent invocations.`,
	RunE:  runDash,
}

func init() {
	rootCmd.AddCommand(dashCmd)
	dashCmd.Flags().StringVar(&dashGateway, "gateway", "", "gateway base URL (overrides config)")
}

func runDash(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return err
	}

	gatewayURL := dashGateway
	if gatewayURL == "" {
		gatewayURL = "http://127.0.0.1" + cfg.Gateway.Addr
		if cfg.Gateway.Addr != "" && cfg.Gateway.Addr[0] != ':' {
			gatewayURL = "http://" + cfg.Gateway.Addr
		}
	}

	return tui.Run(gatewayURL, cfg.Bridge.DBPath)
}
