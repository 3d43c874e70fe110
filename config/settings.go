package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Settings centralizes every path and tunable of the pipeline and the web endpoint.
// Values come from the environment (optionally a .env file) with the defaults below.
type Settings struct {
	BaseDir          string
	DatosDir         string
	SalidaDir        string
	ProcesamientoDir string
	LogsDir          string
	HistoricosDir    string
	TempDir          string
	StateDir         string

	InputGeneralesFile       string
	InputEspecialesFile      string
	InputLinesToProcessFile  string
	InputBaseTotalFile       string
	OutputStockReportFile    string
	OutputEspecialesFile     string
	OutputHistoricalFile     string
	OutputProductosLocalFile string
	OutputStockGeneralesFile string
	ConsolidatedFile         string
	PreviousStockFile        string
	TempURLRegistryFile      string

	StockAPIURL         string
	StockAPITimeout     time.Duration
	StockExportSkipRows int
	ReferenceWarehouse  string

	StorageBucketName string
	UploadReports     bool

	RedisAddress  string
	PubSubTopic   string
	SnapshotStore string

	APIPort         string
	SignedURLTTL    time.Duration
	TempURLTTL      time.Duration
	RateLimitCalls  int
	RateLimitWindow time.Duration
}

const (
	SnapshotStoreFile  = "file"
	SnapshotStoreMySQL = "mysql"
)

func init() {
	// Load env from .env
	godotenv.Load()
}

// LoadSettings reads the environment once per call; callers keep the returned value.
func LoadSettings() *Settings {
	baseDir := envOr("BASE_DIR", ".")
	datos := envOr("DATOS_DIR", filepath.Join(baseDir, "datos"))
	salida := envOr("SALIDA_DIR", filepath.Join(baseDir, "salida"))
	procesamiento := envOr("PROCESAMIENTO_DIR", filepath.Join(baseDir, "procesamiento"))
	temp := filepath.Join(procesamiento, "temp")

	s := &Settings{
		BaseDir:          baseDir,
		DatosDir:         datos,
		SalidaDir:        salida,
		ProcesamientoDir: procesamiento,
		LogsDir:          filepath.Join(procesamiento, "logs"),
		HistoricosDir:    envOr("HISTORICOS_DIR", filepath.Join(procesamiento, "historicos")),
		TempDir:          temp,
		StateDir:         filepath.Join(procesamiento, "state"),

		InputGeneralesFile:       envOr("INPUT_GENERALES_FILE", filepath.Join(datos, "codigos_generales.xlsx")),
		InputEspecialesFile:      envOr("INPUT_ESPECIALES_FILE", filepath.Join(datos, "codigos_especiales.xlsx")),
		InputLinesToProcessFile:  envOr("INPUT_LINES_FILE", filepath.Join(datos, "lineas_a_procesar.xlsx")),
		InputBaseTotalFile:       envOr("INPUT_BASE_TOTAL_FILE", filepath.Join(datos, "base_total.xls")),
		OutputStockReportFile:    filepath.Join(salida, "reporte_stock_hoy.xlsx"),
		OutputEspecialesFile:     filepath.Join(salida, "reporte_especiales.xlsx"),
		OutputHistoricalFile:     filepath.Join(salida, "reporte_historico_general_VES.xlsx"),
		OutputProductosLocalFile: filepath.Join(salida, "productos_local.json"),
		OutputStockGeneralesFile: filepath.Join(salida, "stock_generales.json"),
		ConsolidatedFile:         filepath.Join(procesamiento, "data_stock_completo.xlsx"),
		PreviousStockFile:        filepath.Join(procesamiento, "state", "previous_stock.json"),
		TempURLRegistryFile:      filepath.Join(salida, "temp", "temp_urls.json"),

		StockAPIURL:         envOr("STOCK_API_URL", "http://default.url/if/not/set"),
		StockAPITimeout:     time.Duration(intFromEnv("STOCK_API_TIMEOUT_SECONDS", 120)) * time.Second,
		StockExportSkipRows: intFromEnv("STOCK_EXPORT_SKIP_ROWS", 10),
		ReferenceWarehouse:  strings.ToUpper(envOr("REFERENCE_WAREHOUSE", "VES")),

		StorageBucketName: strings.TrimSpace(os.Getenv("STORAGE_BUCKET_NAME")),
		UploadReports:     boolFromEnv("UPLOAD_REPORTS", true),

		RedisAddress:  strings.TrimSpace(os.Getenv("REDIS_ADDRESS")),
		PubSubTopic:   strings.TrimSpace(os.Getenv("PUBSUB_TOPIC")),
		SnapshotStore: strings.ToLower(envOr("SNAPSHOT_BACKEND", SnapshotStoreFile)),

		APIPort:         envOr("API_PORT", "8080"),
		SignedURLTTL:    time.Duration(intFromEnv("SIGNED_URL_MINUTES", 30)) * time.Minute,
		TempURLTTL:      time.Duration(intFromEnv("TEMP_URL_MINUTES", 30)) * time.Minute,
		RateLimitCalls:  intFromEnv("RATE_LIMIT_MAX_REQUESTS", 5),
		RateLimitWindow: time.Duration(intFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
	}
	return s
}

// RequiredDirs lists the directories bootstrapped before every run.
func (s *Settings) RequiredDirs() []string {
	return []string{s.DatosDir, s.SalidaDir, s.ProcesamientoDir, s.LogsDir, s.HistoricosDir, s.TempDir, s.StateDir}
}

func (s *Settings) EnsureDirs() error {
	for _, dir := range s.RequiredDirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func boolFromEnv(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y":
		return true
	case "0", "false", "no", "n":
		return false
	}
	return def
}
