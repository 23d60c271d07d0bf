package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkessler-io/motionbridge/internal/mcpclient"
	"github.com/mkessler-io/motionbridge/internal/tools"
)

var toolsBridge string

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tool catalog",
	Long: `Lists the tool catalog. With --bridge the inventory is discovered
from a running bridge; otherwise the built-in catalog is shown.`,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().StringVar(&toolsBridge, "bridge", "", "discover from this bridge endpoint instead of the built-in catalog")
}

func runTools(cmd *cobra.Command, args []string) error {
	var descs []tools.Descriptor
	source := "builtin"

	if toolsBridge != "" {
		client, err := mcpclient.New(toolsBridge, 15*time.Second)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()
		if err := client.Initialize(ctx); err != nil {
			return fmt.Errorf("bridge unreachable: %w", err)
		}
		defer client.Terminate(ctx)
		descs, err = client.ListTools(ctx)
		if err != nil {
			return err
		}
		source = "discovered"
	} else {
		descs = tools.Catalog()
	}

	if IsJSON() {
		type wire struct {
			Name        string          `json:"name"`
			Description string          `json:"description"`
			InputSchema json.RawMessage `json:"inputSchema"`
		}
		out := make([]wire, 0, len(descs))
		for _, d := range descs {
			out = append(out, wire{d.Name, d.Description, d.InputSchema()})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"source": source, "tools": out})
	}

	fmt.Printf("Tools (%s): %d\n\n", source, len(descs))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARAMS\tDESCRIPTION")
	for _, d := range descs {
		params := ""
		for i, p := range d.Params {
			if i > 0 {
				params += ","
			}
			params += p.Name
			if p.Required {
				params += "*"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, params, d.Description)
	}
	return w.Flush()
}
