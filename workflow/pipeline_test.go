package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/history"
	"github.com/mmdatafocus/stock_backend/models"
	"github.com/xuri/excelize/v2"
)

func workbookBytes(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		r := row
		axis, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, axis, &r); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write buffer: %v", err)
	}
	return buf.Bytes()
}

func writeWorkbook(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()
	if err := os.WriteFile(path, workbookBytes(t, rows), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// stockExport builds a 10-row banner, a header and one row per
// (code, name, warehouse, total, predespacho, disponible).
func stockExport(t *testing.T, data ...[]interface{}) []byte {
	t.Helper()
	var rows [][]interface{}
	for i := 0; i < 10; i++ {
		rows = append(rows, []interface{}{"REPT_STOCK"})
	}
	rows = append(rows, []interface{}{"HEADER"})
	for _, d := range data {
		row := make([]interface{}, 19)
		for i := range row {
			row[i] = ""
		}
		row[1], row[2], row[9], row[13], row[16], row[18] = d[0], d[1], d[2], d[3], d[4], d[5]
		rows = append(rows, row)
	}
	return workbookBytes(t, rows)
}

type fixture struct {
	settings *config.Settings
	server   *httptest.Server
	export   []byte
	status   int
}

func newFixture(t *testing.T, especialNombre string) *fixture {
	t.Helper()
	dir := t.TempDir()
	fx := &fixture{status: http.StatusOK}
	fx.export = stockExport(t,
		[]interface{}{"001", "Ball", "VES", "60", "10", "50"},
		[]interface{}{"001", "Ball", "LIMA", "3", "0", "3"},
		[]interface{}{"E1", "Glitter", "VES", "5", "0", "5"},
	)
	fx.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(fx.status)
		if fx.status == http.StatusOK {
			_, _ = w.Write(fx.export)
		}
	}))
	t.Cleanup(fx.server.Close)

	t.Setenv("BASE_DIR", dir)
	t.Setenv("STOCK_API_URL", fx.server.URL)
	t.Setenv("STORAGE_BUCKET_NAME", "")
	t.Setenv("PUBSUB_TOPIC", "")
	t.Setenv("SNAPSHOT_BACKEND", "file")
	fx.settings = config.LoadSettings()
	if err := fx.settings.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}

	s := fx.settings
	writeWorkbook(t, s.InputLinesToProcessFile, [][]interface{}{{"LINEA"}, {"PELOTAS"}, {"ESPECIALES"}})
	writeWorkbook(t, s.InputGeneralesFile, [][]interface{}{{"CODIGO", "ORDEN", "UNID_MASTER"}, {"001", "", ""}})
	writeWorkbook(t, s.InputEspecialesFile, [][]interface{}{{"CODIGO", "MOTIVO"}, {"E1", "Promo"}})
	writeWorkbook(t, s.InputBaseTotalFile, [][]interface{}{
		{"CODIGO", "NOMBRE", "LINEA", "COD_EAN", "PRECIO"},
		{"001", "Ball", "PELOTAS", "7750001", "2.5"},
		{"E1", especialNombre, "ESPECIALES", "", "N/A"},
	})
	return fx
}

func stagingLeftovers(t *testing.T, s *config.Settings) []string {
	t.Helper()
	var found []string
	for _, dir := range []string{s.SalidaDir, s.ProcesamientoDir} {
		matches, err := filepath.Glob(filepath.Join(dir, stagingPrefix+"*"))
		if err != nil {
			t.Fatalf("glob: %v", err)
		}
		found = append(found, matches...)
	}
	return found
}

func (fx *fixture) pipeline(now time.Time) *Pipeline {
	p := NewPipeline(fx.settings, history.NewFileStore(fx.settings.HistoricosDir))
	p.Now = func() time.Time { return now }
	return p
}

func TestPipelineRunEndToEnd(t *testing.T) {
	fx := newFixture(t, "Glitter")
	today := time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)

	// leftovers of an earlier run, the state file must survive the cleanup
	stale := filepath.Join(fx.settings.DatosDir, "REPT_STOCK_old.xlsx")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed stale export: %v", err)
	}
	if err := os.WriteFile(fx.settings.PreviousStockFile, []byte(`{"001": 40}`), 0o644); err != nil {
		t.Fatalf("seed previous stock: %v", err)
	}

	summary, err := fx.pipeline(today).Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if summary.Status != StatusSucceeded || summary.Products != 2 || !summary.SnapshotSaved {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Reference != "VES" || len(summary.Warehouses) != 2 {
		t.Fatalf("unexpected schema in summary %+v", summary)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale export removed, stat err %v", err)
	}

	raw, err := os.ReadFile(fx.settings.OutputStockGeneralesFile)
	if err != nil {
		t.Fatalf("read stock feed: %v", err)
	}
	var feed []models.ProductoStock
	if err := json.Unmarshal(raw, &feed); err != nil {
		t.Fatalf("decode stock feed: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("expected 2 feed records, got %+v", feed)
	}
	ball := feed[0]
	if ball.Codigo != "001" || ball.Nombre != "Ball" || ball.Linea != "PELOTAS" || ball.StockReferencial != 50 || ball.UPorCaja != 1 {
		t.Fatalf("unexpected ball record %+v", ball)
	}
	if ball.Almacenes["VES"].Disponible != 50 || ball.Almacenes["LIMA"].Total != 3 {
		t.Fatalf("unexpected warehouses %+v", ball.Almacenes)
	}

	var daily map[string]int
	snapPath := filepath.Join(fx.settings.HistoricosDir, history.SnapshotFileName(today))
	raw, err = os.ReadFile(snapPath)
	if err != nil {
		t.Fatalf("read daily snapshot: %v", err)
	}
	if err := json.Unmarshal(raw, &daily); err != nil || daily["001"] != 50 || daily["E1"] != 5 {
		t.Fatalf("unexpected daily snapshot %v (%v)", daily, err)
	}

	var previous map[string]int
	raw, err = os.ReadFile(fx.settings.PreviousStockFile)
	if err != nil {
		t.Fatalf("read previous stock: %v", err)
	}
	if err := json.Unmarshal(raw, &previous); err != nil || previous["001"] != 50 {
		t.Fatalf("unexpected previous stock %v (%v)", previous, err)
	}

	for _, out := range []string{
		fx.settings.ConsolidatedFile,
		fx.settings.OutputStockReportFile,
		fx.settings.OutputEspecialesFile,
		fx.settings.OutputProductosLocalFile,
		fx.settings.OutputHistoricalFile,
	} {
		if _, err := os.Stat(out); err != nil {
			t.Fatalf("expected output %s: %v", out, err)
		}
	}
	if n := len(summary.Outputs); n == 0 || summary.Outputs[n-1] != fx.settings.OutputHistoricalFile {
		t.Fatalf("expected historical report listed last, got %v", summary.Outputs)
	}
	if left := stagingLeftovers(t, fx.settings); len(left) != 0 {
		t.Fatalf("staged files left behind: %v", left)
	}
}

func TestPipelineSecondRunKeepsFirstSnapshot(t *testing.T) {
	fx := newFixture(t, "Glitter")
	today := time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)
	if _, err := fx.pipeline(today).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	fx.export = stockExport(t, []interface{}{"001", "Ball", "VES", "1", "0", "1"})
	summary, err := fx.pipeline(today.Add(3 * time.Hour)).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if summary.SnapshotSaved {
		t.Fatalf("second run of the day must not replace the snapshot")
	}
	var daily map[string]int
	raw, err := os.ReadFile(filepath.Join(fx.settings.HistoricosDir, history.SnapshotFileName(today)))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if err := json.Unmarshal(raw, &daily); err != nil || daily["001"] != 50 {
		t.Fatalf("expected first snapshot kept, got %v (%v)", daily, err)
	}
}

func TestPipelineInvalidFeedAbortsBeforeSnapshot(t *testing.T) {
	fx := newFixture(t, "")
	previousFeed := []byte("[]\n")
	if err := os.WriteFile(fx.settings.OutputStockGeneralesFile, previousFeed, 0o644); err != nil {
		t.Fatalf("seed feed: %v", err)
	}
	today := time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)

	summary, err := fx.pipeline(today).Run(context.Background())
	if err == nil {
		t.Fatalf("expected schema failure to abort the run")
	}
	if summary.Status != StatusFailed {
		t.Fatalf("unexpected status %q", summary.Status)
	}
	got, _ := os.ReadFile(fx.settings.OutputStockGeneralesFile)
	if string(got) != string(previousFeed) {
		t.Fatalf("previous feed modified: %s", got)
	}
	if _, err := os.Stat(filepath.Join(fx.settings.HistoricosDir, history.SnapshotFileName(today))); !os.IsNotExist(err) {
		t.Fatalf("snapshot must not be saved after a fatal error, stat err %v", err)
	}
	if _, err := os.Stat(fx.settings.PreviousStockFile); !os.IsNotExist(err) {
		t.Fatalf("previous stock must not be saved after a fatal error, stat err %v", err)
	}
}

func TestPipelineFailedRunKeepsPublishedOutputs(t *testing.T) {
	fx := newFixture(t, "")
	s := fx.settings
	published := map[string][]byte{}
	for _, out := range []string{
		s.ConsolidatedFile,
		s.OutputStockReportFile,
		s.OutputEspecialesFile,
		s.OutputProductosLocalFile,
		s.OutputStockGeneralesFile,
		s.OutputHistoricalFile,
	} {
		content := []byte("last good " + filepath.Base(out))
		if err := os.WriteFile(out, content, 0o644); err != nil {
			t.Fatalf("seed %s: %v", out, err)
		}
		published[out] = content
	}

	summary, err := fx.pipeline(time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)).Run(context.Background())
	if err == nil {
		t.Fatalf("expected schema failure to abort the run")
	}
	if len(summary.Outputs) != 0 {
		t.Fatalf("no output expected on a failed run, got %v", summary.Outputs)
	}
	for out, want := range published {
		got, err := os.ReadFile(out)
		if err != nil {
			t.Fatalf("read %s: %v", out, err)
		}
		if string(got) != string(want) {
			t.Fatalf("%s modified by a failed run: %q", filepath.Base(out), got)
		}
	}
	if left := stagingLeftovers(t, s); len(left) != 0 {
		t.Fatalf("staged files left behind: %v", left)
	}
}

func TestPipelineMalformedPreviousStock(t *testing.T) {
	fx := newFixture(t, "Glitter")
	if err := os.WriteFile(fx.settings.PreviousStockFile, []byte(`{"001": 4`), 0o644); err != nil {
		t.Fatalf("seed previous stock: %v", err)
	}
	today := time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)

	for i, now := range []time.Time{today, today.AddDate(0, 0, 1)} {
		summary, err := fx.pipeline(now).Run(context.Background())
		if err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
		if !summary.SnapshotSaved {
			t.Fatalf("run %d: expected snapshot saved", i+1)
		}
		if _, err := os.Stat(filepath.Join(fx.settings.HistoricosDir, history.SnapshotFileName(now))); err != nil {
			t.Fatalf("run %d: snapshot missing: %v", i+1, err)
		}
	}
	var previous map[string]int
	raw, err := os.ReadFile(fx.settings.PreviousStockFile)
	if err != nil {
		t.Fatalf("read previous stock: %v", err)
	}
	if err := json.Unmarshal(raw, &previous); err != nil || previous["001"] != 50 {
		t.Fatalf("expected previous stock rewritten, got %v (%v)", previous, err)
	}
}

func TestPipelineDownloadFailure(t *testing.T) {
	fx := newFixture(t, "Glitter")
	fx.status = http.StatusBadGateway

	summary, err := fx.pipeline(time.Now()).Run(context.Background())
	if err == nil {
		t.Fatalf("expected download failure")
	}
	if len(summary.Outputs) != 0 {
		t.Fatalf("no output expected, got %v", summary.Outputs)
	}
	if _, err := os.Stat(fx.settings.ConsolidatedFile); !os.IsNotExist(err) {
		t.Fatalf("consolidated workbook must not exist, stat err %v", err)
	}
}

func TestCleanTempFilesKeepsState(t *testing.T) {
	t.Setenv("BASE_DIR", t.TempDir())
	s := config.LoadSettings()
	if err := s.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	removed := []string{
		filepath.Join(s.TempDir, "old.tmp"),
		filepath.Join(s.TempDir, "scratch.json"),
		filepath.Join(s.SalidaDir, "reporte_final_1_backup.xlsx"),
		filepath.Join(s.DatosDir, "REPT_STOCK_2024.xls"),
		filepath.Join(s.SalidaDir, stagingPrefix+"run-1-reporte_stock_hoy.xlsx"),
		filepath.Join(s.ProcesamientoDir, stagingPrefix+"run-1-data_stock_completo.xlsx"),
	}
	kept := []string{
		s.PreviousStockFile,
		filepath.Join(s.SalidaDir, "reporte_stock_hoy.xlsx"),
		filepath.Join(s.DatosDir, "codigos_generales.xlsx"),
	}
	for _, f := range append(append([]string{}, removed...), kept...) {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatalf("seed %s: %v", f, err)
		}
	}
	if n := CleanTempFiles(s); n != len(removed) {
		t.Fatalf("expected %d files removed, got %d", len(removed), n)
	}
	for _, f := range removed {
		if _, err := os.Stat(f); !os.IsNotExist(err) {
			t.Fatalf("%s must be removed", f)
		}
	}
	for _, f := range kept {
		if _, err := os.Stat(f); err != nil {
			t.Fatalf("%s must be kept: %v", f, err)
		}
	}
}
