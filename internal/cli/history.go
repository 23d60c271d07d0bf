package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mkessler-io/motionbridge/internal/config"
	"github.com/mkessler-io/motionbridge/internal/db"
	"github.com/mkessler-io/motionbridge/internal/history"
)

var (
	historyTool  string
	historyFails bool
	historyLimit int
	historyStats bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the tool invocation audit log",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyTool, "tool", "", "filter by tool name")
	historyCmd.Flags().BoolVar(&historyFails, "fails", false, "only failed invocations")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "max rows")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "per-tool aggregates instead of rows")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.Bridge.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()
	svc := history.NewService(database)

	if historyStats {
		return printStats(svc)
	}

	rows, total, err := svc.List(history.Filter{
		Tool:      historyTool,
		OnlyFails: historyFails,
		Limit:     historyLimit,
	})
	if err != nil {
		return err
	}

	if IsJSON() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"total": total, "invocations": rows})
	}

	fmt.Printf("Invocations: %d of %d\n\n", len(rows), total)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTOOL\tOK\tMS\tERROR")
	for _, inv := range rows {
		status := "ok"
		if !inv.OK {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			inv.CreatedAt.Format("01-02 15:04:05"), inv.Tool, status, inv.ElapsedMS, inv.Error)
	}
	return w.Flush()
}

func printStats(svc *history.Service) error {
	stats, err := svc.Stats()
	if err != nil {
		return err
	}

	if IsJSON() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tCALLS\tFAILURES\tAVG MS")
	for _, st := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", st.Tool, st.Calls, st.Failures, st.AvgMillis)
	}
	return w.Flush()
}
