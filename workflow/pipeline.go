package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/consolidation"
	"github.com/mmdatafocus/stock_backend/history"
	"github.com/mmdatafocus/stock_backend/loader"
	"github.com/mmdatafocus/stock_backend/models"
	"github.com/mmdatafocus/stock_backend/reports"
	"github.com/mmdatafocus/stock_backend/trend"
	"github.com/mmdatafocus/stock_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	RunLockType = "stock-pipeline"
	RunLockKey  = "run"
	runLockTTL  = 30 * time.Minute

	// StatusCacheKey holds the summary of the last finished run in Redis.
	StatusCacheKey = "StockPipeline:LastRun"
	statusCacheTTL = 7 * 24 * time.Hour

	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

type RunSummary struct {
	RunId         string    `json:"run_id"`
	Status        string    `json:"status"`
	SnapshotDate  string    `json:"snapshot_date"`
	Products      int       `json:"products"`
	Generales     int       `json:"generales"`
	Especiales    int       `json:"especiales"`
	Warehouses    []string  `json:"warehouses"`
	Reference     string    `json:"reference"`
	SnapshotSaved bool      `json:"snapshot_saved"`
	Outputs       []string  `json:"outputs"`
	Uploaded      []string  `json:"uploaded"`
	Warnings      []string  `json:"warnings"`
	Error         string    `json:"error,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

func (s *RunSummary) warn(logger *logrus.Entry, msg string) {
	s.Warnings = append(s.Warnings, msg)
	logger.Warn(msg)
}

// Pipeline runs the daily consolidation from download to published reports.
// Stages run strictly in order. Outputs are staged and replace the published
// ones only after the last fatal check, so a failed run leaves them untouched.
type Pipeline struct {
	Settings *config.Settings
	Store    history.Store
	Previous *history.PreviousStore
	Tracer   trace.Tracer
	Now      func() time.Time
}

func NewPipeline(settings *config.Settings, store history.Store) *Pipeline {
	return &Pipeline{
		Settings: settings,
		Store:    store,
		Previous: history.NewPreviousStore(settings.PreviousStockFile),
		Tracer:   otel.Tracer("stock-pipeline"),
		Now:      time.Now,
	}
}

// runState carries what earlier stages produced to later ones.
type runState struct {
	today     time.Time
	pivot     *models.StockPivot
	sources   *loader.Sources
	base      []models.Product
	catalog   []models.CatalogEntry
	previous  map[string]int
	yesterday map[string]int
	weekAgo   map[string]int
	snapshot  *models.ConsolidatedSnapshot
	general   []models.ConsolidatedRow
	special   []models.ConsolidatedRow
	feed      []models.ProductoStock
	outputs   *outputBatch
}

func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	ctx, runId := utils.EnsureRunId(ctx)
	logger := config.GetLogger().WithField("run_id", runId)
	st := &runState{today: models.TruncateDay(p.Now()), outputs: newOutputBatch(runId)}
	summary := &RunSummary{
		RunId:        runId,
		SnapshotDate: st.today.Format(models.SnapshotDateLayout),
		StartedAt:    p.Now(),
		Outputs:      []string{},
		Uploaded:     []string{},
		Warnings:     []string{},
	}

	ctx, span := p.Tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(attribute.String("run_id", runId)))
	defer span.End()
	logger.Info("=== stock pipeline started ===")

	err := p.run(ctx, logger, st, summary)
	summary.FinishedAt = p.Now()
	if err != nil {
		summary.Status = StatusFailed
		summary.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		config.LogError(config.GetLogger(), "workflow", "Pipeline.Run", "pipeline aborted", runId, err)
	} else {
		summary.Status = StatusSucceeded
		span.SetStatus(codes.Ok, "")
		logger.WithFields(logrus.Fields{
			"products": summary.Products,
			"outputs":  len(summary.Outputs),
			"warnings": len(summary.Warnings),
		}).Info("=== stock pipeline finished ===")
	}
	p.cacheSummary(ctx, logger, summary)
	return summary, err
}

func (p *Pipeline) run(ctx context.Context, logger *logrus.Entry, st *runState, summary *RunSummary) error {
	s := p.Settings

	if err := p.stage(ctx, logger, "cleanup", func(ctx context.Context) error {
		CleanTempFiles(s)
		return nil
	}); err != nil {
		return err
	}

	release, err := utils.ObtainRunLock(ctx, RunLockType, RunLockKey, runLockTTL, "workflow", "Pipeline.Run")
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	defer release()
	defer st.outputs.discard()

	stages := []struct {
		name string
		fn   func(ctx context.Context) error
	}{
		{"download", func(ctx context.Context) error {
			data, err := loader.DownloadStockExport(ctx, s.StockAPIURL, s.StockAPITimeout)
			if err != nil {
				return err
			}
			st.pivot, err = loader.ParseStockExport(data, loader.StockExportOptions{
				SkipRows:       s.StockExportSkipRows,
				ReferenceToken: s.ReferenceWarehouse,
			})
			if err != nil {
				return err
			}
			if !st.pivot.Schema.HasReference() {
				summary.warn(logger, "reference warehouse "+s.ReferenceWarehouse+" not found, stock_referencial is 0")
			}
			return nil
		}},
		{"load-sources", func(ctx context.Context) error {
			st.sources, err = loader.LoadManualSources(s.InputLinesToProcessFile, s.InputGeneralesFile, s.InputEspecialesFile)
			return err
		}},
		{"load-base", func(ctx context.Context) error {
			st.base, err = loader.LoadBaseExport(s.InputBaseTotalFile)
			return err
		}},
		{"merge-catalogs", func(ctx context.Context) error {
			st.catalog = consolidation.MergeCatalogs(st.sources.General, st.sources.Especial)
			return nil
		}},
		{"load-history", func(ctx context.Context) error {
			st.previous, err = p.Previous.Load(ctx)
			if err != nil {
				return err
			}
			st.yesterday, st.weekAgo = history.Lookback(ctx, p.Store, st.today)
			return nil
		}},
		{"consolidate", func(ctx context.Context) error {
			st.snapshot, err = consolidation.Consolidate(consolidation.Inputs{
				Base:      st.base,
				Catalog:   st.catalog,
				Pivot:     st.pivot,
				Previous:  st.previous,
				Yesterday: st.yesterday,
				WeekAgo:   st.weekAgo,
			})
			if err != nil {
				return err
			}
			summary.Products = st.snapshot.Len()
			summary.Warehouses = st.snapshot.Schema.Warehouses
			summary.Reference = st.snapshot.Schema.Reference
			return nil
		}},
		{"validate-feed", func(ctx context.Context) error {
			st.general, st.special = consolidation.Partition(st.snapshot, models.CodeSet(st.sources.General), models.CodeSet(st.sources.Especial))
			summary.Generales = len(st.general)
			summary.Especiales = len(st.special)
			st.feed = reports.BuildStockGenerales(st.general, st.special, st.sources.Lines, st.snapshot.Schema)
			if len(st.feed) == 0 {
				return nil
			}
			logger.WithField("records", len(st.feed)).Info("validating stock feed schema")
			return reports.ValidateStockGenerales(st.feed)
		}},
		{"reports", func(ctx context.Context) error {
			return p.emitReports(logger, st, summary)
		}},
		{"save-snapshot", func(ctx context.Context) error {
			current := st.snapshot.ReferentialMap()
			saved, err := p.Store.SaveDailySnapshot(ctx, st.today, current)
			if err != nil {
				return err
			}
			summary.SnapshotSaved = saved
			return p.Previous.Save(ctx, current)
		}},
		{"historical-report", func(ctx context.Context) error {
			series, err := p.Store.LoadAll(ctx)
			if err != nil {
				return err
			}
			table := trend.BuildHistoricalTable(series, models.CodeSet(st.sources.General), productNames(st.snapshot))
			staged := st.outputs.path(s.OutputHistoricalFile)
			wrote, err := p.emit(logger, summary, s.OutputHistoricalFile, func() error {
				return reports.WriteHistoricalReport(staged, table)
			})
			if wrote {
				st.outputs.add(s.OutputHistoricalFile, true)
			}
			return err
		}},
		{"commit-outputs", func(ctx context.Context) error {
			committed, err := st.outputs.commit()
			summary.Outputs = append(summary.Outputs, committed...)
			return err
		}},
		{"upload", func(ctx context.Context) error {
			p.uploadReports(ctx, logger, summary)
			return nil
		}},
		{"publish", func(ctx context.Context) error {
			p.publish(ctx, logger, summary)
			return nil
		}},
	}
	for _, stg := range stages {
		if err := p.stage(ctx, logger, stg.name, stg.fn); err != nil {
			return err
		}
	}
	return nil
}

// stage wraps one step in a span and logs its outcome.
func (p *Pipeline) stage(ctx context.Context, logger *logrus.Entry, name string, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := p.Tracer.Start(ctx, "pipeline."+name)
	defer span.End()

	started := time.Now()
	entry := logger.WithField("stage", name)
	entry.Info("stage started")
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}
	span.SetStatus(codes.Ok, "")
	entry.WithField("elapsed", time.Since(started).String()).Info("stage finished")
	return nil
}

// emitReports writes the daily outputs to their staging paths. Nothing is
// published here; commit-outputs renames them into place.
func (p *Pipeline) emitReports(logger *logrus.Entry, st *runState, summary *RunSummary) error {
	s := p.Settings
	lines := st.sources.Lines

	consolidated := st.outputs.path(s.ConsolidatedFile)
	if err := reports.WriteConsolidatedWorkbook(consolidated, st.snapshot); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(s.ConsolidatedFile), err)
	}
	st.outputs.add(s.ConsolidatedFile, false)

	emitters := []struct {
		path string
		fn   func(path string) error
	}{
		{s.OutputStockReportFile, func(path string) error { return reports.WriteStockReport(path, st.general, lines) }},
		{s.OutputEspecialesFile, func(path string) error {
			return reports.WriteEspecialesReport(path, st.sources.Especial, st.snapshot)
		}},
		{s.OutputProductosLocalFile, func(path string) error { return reports.WriteProductosLocal(path, st.snapshot, lines) }},
		{s.OutputStockGeneralesFile, func(path string) error { return reports.WriteStockFeed(path, st.feed) }},
	}
	for _, e := range emitters {
		staged := st.outputs.path(e.path)
		wrote, err := p.emit(logger, summary, e.path, func() error { return e.fn(staged) })
		if err != nil {
			return err
		}
		if wrote {
			st.outputs.add(e.path, true)
		}
	}
	return nil
}

// emit runs one writer for the output at path; an empty report is a warning,
// anything else is fatal.
func (p *Pipeline) emit(logger *logrus.Entry, summary *RunSummary, path string, fn func() error) (bool, error) {
	err := fn()
	if errors.Is(err, reports.ErrNothingToWrite) {
		summary.warn(logger.WithField("output", path), filepath.Base(path)+" not written: no rows")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// uploadReports copies the written reports to the bucket. Upload failures
// leave the local files in place and are reported as warnings.
func (p *Pipeline) uploadReports(ctx context.Context, logger *logrus.Entry, summary *RunSummary) {
	bucket := p.Settings.StorageBucketName
	if bucket == "" || !p.Settings.UploadReports {
		logger.Debug("report upload disabled")
		return
	}
	for _, path := range summary.Outputs {
		object := filepath.Base(path)
		if err := utils.UploadFileToGCS(ctx, bucket, object, path); err != nil {
			config.LogError(config.GetLogger(), "workflow", "uploadReports", "upload report", object, err)
			summary.warn(logger, "upload of "+object+" failed")
			continue
		}
		logger.WithField("object", utils.BuildObjectURI(bucket, object)).Info("report uploaded")
		summary.Uploaded = append(summary.Uploaded, utils.BuildObjectAccessURL(bucket, object))
	}
}

func (p *Pipeline) publish(ctx context.Context, logger *logrus.Entry, summary *RunSummary) {
	topic := p.Settings.PubSubTopic
	if topic == "" {
		return
	}
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	outputs := make([]string, 0, len(summary.Outputs))
	for _, o := range summary.Outputs {
		outputs = append(outputs, filepath.Base(o))
	}
	id, err := config.PublishPipelineEvent(ctx, topic, config.PipelineEvent{
		RunId:         summary.RunId,
		Event:         config.EventPipelineCompleted,
		SnapshotDate:  summary.SnapshotDate,
		Products:      summary.Products,
		Warehouses:    summary.Warehouses,
		Outputs:       outputs,
		FinishedAt:    p.Now(),
		CorrelationId: cid,
	})
	if err != nil {
		config.LogError(config.GetLogger(), "workflow", "publish", "publish pipeline event", topic, err)
		summary.warn(logger, "pipeline event not published")
		return
	}
	logger.WithField("message_id", id).Info("pipeline event published")
}

func (p *Pipeline) cacheSummary(ctx context.Context, logger *logrus.Entry, summary *RunSummary) {
	if err := config.SetRedisObject(context.WithoutCancel(ctx), StatusCacheKey, summary, statusCacheTTL); err != nil {
		logger.WithField("error", err.Error()).Warn("run summary not cached")
	}
}

// LastRunSummary reads the cached summary; ok is false when none is cached.
func LastRunSummary(ctx context.Context) (*RunSummary, bool, error) {
	var summary RunSummary
	ok, err := config.GetRedisObject(ctx, StatusCacheKey, &summary)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &summary, true, nil
}

func productNames(snapshot *models.ConsolidatedSnapshot) map[string]string {
	names := make(map[string]string, snapshot.Len())
	if snapshot == nil {
		return names
	}
	for _, r := range snapshot.Rows {
		names[r.Codigo] = r.Nombre
	}
	return names
}

// BuildHistoricalReport regenerates the historical workbook from the stored
// snapshots alone.
func BuildHistoricalReport(ctx context.Context, settings *config.Settings, store history.Store) error {
	general, err := loader.LoadCatalog(settings.InputGeneralesFile, models.CatalogSourceGeneral)
	if err != nil {
		return err
	}
	names := map[string]string{}
	if base, err := loader.LoadBaseExport(settings.InputBaseTotalFile); err == nil {
		for _, p := range base {
			if _, ok := names[p.Codigo]; !ok {
				names[p.Codigo] = p.Nombre
			}
		}
	} else {
		config.GetLogger().WithField("error", err.Error()).Warn("base export unavailable, historical report without names")
	}
	series, err := store.LoadAll(ctx)
	if err != nil {
		return err
	}
	table := trend.BuildHistoricalTable(series, models.CodeSet(general), names)
	return reports.WriteHistoricalReport(settings.OutputHistoricalFile, table)
}
