package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"nodewarden/internal/control"
)

var checkNode string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a single health check for one node and print the result",
	Run:   runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkNode, "node", "", "node name to check")
	_ = checkCmd.MarkFlagRequired("node")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	app, err := control.New(cfg)
	if err != nil {
		slog.Error("Failed to initialize monitor", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	result, err := app.CheckNode(ctx, checkNode)
	if err != nil {
		slog.Error("Check failed", "node", checkNode, "error", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = app.Stop(shutdownCtx)
}
