package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkessler-io/motionbridge/internal/chat"
	"github.com/mkessler-io/motionbridge/internal/config"
	"github.com/mkessler-io/motionbridge/internal/mcpclient"
	"github.com/mkessler-io/motionbridge/internal/tools"
)

var (
	serveAddr   string
	serveBridge string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat gateway",
	Long: `Runs the chat gateway. On startup it opens a session against the
bridge and discovers its tool catalog; if the bridge is unreachable the
built-in catalog is used instead. Prompts arrive on POST /api/chat.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveBridge, "bridge", "", "bridge endpoint URL (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Gateway.Addr = serveAddr
	}
	if serveBridge != "" {
		cfg.Gateway.BridgeURL = serveBridge
	}

	bridge, err := mcpclient.New(cfg.Gateway.BridgeURL, cfg.Gateway.BridgeTimeout)
	if err != nil {
		return err
	}

	registry := tools.NewRegistry(func(ctx context.Context) ([]tools.Descriptor, error) {
		if err := bridge.Initialize(ctx); err != nil {
			return nil, err
		}
		return bridge.ListTools(ctx)
	})
	{
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		registry.Populate(ctx)
		cancel()
	}

	llm, err := chat.NewLLMClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)
	if err != nil {
		return err
	}

	orch := chat.NewOrchestrator(llm, &chat.BridgeInvoker{Client: bridge})
	srv := chat.NewServer(cfg.Gateway.Addr, registry, orch, bridge, cfg.LLM.Model)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := bridge.Terminate(ctx); err != nil {
			log.Printf("gateway: terminate session: %v", err)
		}
		cancel()
		os.Exit(0)
	}()

	return srv.Start()
}
