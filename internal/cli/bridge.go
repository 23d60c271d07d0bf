package cli

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkessler-io/motionbridge/internal/backend"
	"github.com/mkessler-io/motionbridge/internal/config"
	"github.com/mkessler-io/motionbridge/internal/db"
	"github.com/mkessler-io/motionbridge/internal/history"
	"github.com/mkessler-io/motionbridge/internal/mcp"
	"github.com/mkessler-io/motionbridge/internal/tools"
)

var (
	bridgeAddr    string
	bridgeBackend string
)

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Run the tool bridge endpoint",
	Long: `Runs the session-scoped tool endpoint in front of the motion
controller. Chat gateways open sessions here, list the tool catalog, and
dispatch tool calls.`,
	RunE: runBridge,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().StringVarP(&bridgeAddr, "addr", "a", "", "listen address (overrides config)")
	bridgeCmd.Flags().StringVar(&bridgeBackend, "backend", "", "motion controller URL (overrides config)")
}

func runBridge(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return err
	}
	if bridgeAddr != "" {
		cfg.Bridge.Addr = bridgeAddr
	}
	if bridgeBackend != "" {
		cfg.Bridge.BackendURL = bridgeBackend
	}

	client, err := backend.New(cfg.Bridge.BackendURL, cfg.Bridge.BackendTimeout)
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.Bridge.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()
	audit := history.NewService(database)

	registry := tools.NewRegistry(nil)
	registry.Populate(cmd.Context())

	dispatcher := tools.NewDispatcher(registry, client, audit)
	dispatcher.SetPollBounds(cfg.Bridge.PollTimeout, cfg.Bridge.PollInterval)

	sessions := mcp.NewSessionRegistry()
	defer sessions.Close()

	handler := mcp.NewHandler(sessions, registry, dispatcher, "motionbridge", rootCmd.Version)

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)

	srv := &http.Server{
		Addr:        cfg.Bridge.Addr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: the endpoint carries long-lived SSE streams
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		fmt.Println("\nShutting down...")
		os.Exit(0)
	}()

	log.Printf("bridge listening on %s (backend: %s, tools: %d)",
		cfg.Bridge.Addr, client.BaseURL(), registry.Len())
	return srv.ListenAndServe()
}
