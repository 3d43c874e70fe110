package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/history"
	"github.com/mmdatafocus/stock_backend/workflow"
)

// Regenerates reporte_historico_general_VES.xlsx from the stored daily
// snapshots without running the pipeline.
func main() {
	backend := flag.String("snapshot-backend", "", "Optional: override SNAPSHOT_BACKEND (file/mysql)")
	output := flag.String("out", "", "Optional: output path (default SALIDA_DIR/reporte_historico_general_VES.xlsx)")
	flag.Parse()

	settings := config.LoadSettings()
	if v := strings.TrimSpace(*backend); v != "" {
		settings.SnapshotStore = strings.ToLower(v)
	}
	if v := strings.TrimSpace(*output); v != "" {
		settings.OutputHistoricalFile = v
	}
	if err := settings.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "create directories: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := history.Open(ctx, settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open snapshot store: %v\n", err)
		os.Exit(1)
	}
	if err := workflow.BuildHistoricalReport(ctx, settings, store); err != nil {
		fmt.Fprintf(os.Stderr, "historical report failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("historical report written to", settings.OutputHistoricalFile)
}
