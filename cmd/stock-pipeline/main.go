package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/history"
	"github.com/mmdatafocus/stock_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	noUpload := flag.Bool("no-upload", false, "Skip the GCS upload even when STORAGE_BUCKET_NAME is set")
	backend := flag.String("snapshot-backend", "", "Optional: override SNAPSHOT_BACKEND (file/mysql)")
	stockURL := flag.String("stock-url", "", "Optional: override STOCK_API_URL")
	flag.Parse()

	settings := config.LoadSettings()
	if *noUpload {
		settings.UploadReports = false
	}
	if v := strings.TrimSpace(*backend); v != "" {
		settings.SnapshotStore = strings.ToLower(v)
	}
	if v := strings.TrimSpace(*stockURL); v != "" {
		settings.StockAPIURL = v
	}

	if err := settings.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "create directories: %v\n", err)
		os.Exit(1)
	}
	logger := config.GetLogger()
	logFile, err := config.AttachDailyLogFile(logger, settings.LogsDir, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is optional for the batch run: without it there is no run lock
	// and no cached status.
	if settings.RedisAddress != "" {
		if err := config.ConnectRedis(ctx, settings.RedisAddress, 3); err != nil {
			logger.WithFields(logrus.Fields{"field": "redis"}).Warn("running without redis: " + err.Error())
		}
		defer config.CloseRedis()
	}
	defer config.ClosePubSub()

	store, err := history.Open(ctx, settings)
	if err != nil {
		config.LogError(logger, "stock-pipeline", "main", "open snapshot store", settings.SnapshotStore, err)
		os.Exit(1)
	}

	summary, err := workflow.NewPipeline(settings, store).Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pipeline failed: %v\n", err)
		logFile.Close()
		os.Exit(1)
	}
	fmt.Printf("run %s finished: %d products, %d outputs, %d warnings\n",
		summary.RunId, summary.Products, len(summary.Outputs), len(summary.Warnings))
}
