package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/middlewares"
	"github.com/mmdatafocus/stock_backend/utils"
	"github.com/mmdatafocus/stock_backend/workflow"
	"github.com/sirupsen/logrus"
)

const (
	defaultPort = "8080"
	// reportObject is the workbook behind /api/reporte-temp-url.
	reportObject  = "reporte_stock_hoy.xlsx"
	purgeInterval = 5 * time.Minute
)

type signFunc func(ctx context.Context, bucket, objectKey string, expires time.Duration) (*utils.SignedDownload, error)

// reportStore is the part of the bucket the endpoints read.
type reportStore struct {
	exists   func(ctx context.Context, bucket, objectKey string) (bool, error)
	metadata func(ctx context.Context, bucket, objectKey string) (*utils.ObjectMetadata, error)
	list     func(ctx context.Context, bucket, prefix string) ([]utils.ObjectMetadata, error)
}

func gcsReportStore() reportStore {
	return reportStore{
		exists:   utils.ObjectExistsInGCS,
		metadata: utils.GetObjectMetadata,
		list:     utils.ListObjects,
	}
}

// apiServer holds the dependencies of the report endpoints.
type apiServer struct {
	settings *config.Settings
	tempURLs *utils.TempURLManager
	limiter  *middlewares.RateLimiter
	sign     signFunc
	store    reportStore
	status   func(ctx context.Context) (*workflow.RunSummary, bool, error)
}

func newAPIServer(settings *config.Settings) *apiServer {
	return &apiServer{
		settings: settings,
		tempURLs: utils.NewTempURLManager(settings.TempURLRegistryFile),
		limiter:  middlewares.NewRateLimiter(settings.RateLimitCalls, settings.RateLimitWindow),
		sign:     utils.SignDownload,
		store:    gcsReportStore(),
		status:   workflow.LastRunSummary,
	}
}

func (s *apiServer) routes(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/health", healthHandler)
	api.GET("/reporte-temp-url", s.limiter.Middleware(), s.reportTempURLHandler())
	api.GET("/reportes", s.listReportsHandler())
	api.GET("/reportes/:name", s.reportInfoHandler())
	api.POST("/temp-url", s.limiter.Middleware(), s.issueTempURLHandler())
	api.GET("/temp-url/:token", s.tempURLFileHandler())
	api.GET("/status", s.statusHandler())
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// reportTempURLHandler signs a short-lived GET URL for the daily report.
func (s *apiServer) reportTempURLHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()
		bucket := s.settings.StorageBucketName
		if bucket == "" {
			config.LogError(logger, "server.go", "reportTempURLHandler", "bucket not configured", nil, errors.New("STORAGE_BUCKET_NAME not set"))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo generar URL"})
			return
		}
		ok, err := s.store.exists(c.Request.Context(), bucket, reportObject)
		if err != nil {
			config.LogError(logger, "server.go", "reportTempURLHandler", "check report", reportObject, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo generar URL"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Reporte no disponible"})
			return
		}
		signed, err := s.sign(c.Request.Context(), bucket, reportObject, s.settings.SignedURLTTL)
		if err != nil {
			config.LogError(logger, "server.go", "reportTempURLHandler", "sign download", reportObject, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo generar URL"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"url":        signed.URL,
			"expires_in": int(s.settings.SignedURLTTL.Minutes()),
		})
	}
}

type reportInfo struct {
	utils.ObjectMetadata
	URL string `json:"url"`
}

// listReportsHandler lists the uploaded reports, optionally under ?prefix=.
func (s *apiServer) listReportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bucket := s.settings.StorageBucketName
		if bucket == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage not configured"})
			return
		}
		objects, err := s.store.list(c.Request.Context(), bucket, c.Query("prefix"))
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "listReportsHandler", "list reports", bucket, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo listar reportes"})
			return
		}
		out := make([]reportInfo, 0, len(objects))
		for _, obj := range objects {
			out = append(out, reportInfo{ObjectMetadata: obj, URL: utils.BuildObjectAccessURL(bucket, obj.Name)})
		}
		c.JSON(http.StatusOK, gin.H{"reports": out})
	}
}

func (s *apiServer) reportInfoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bucket := s.settings.StorageBucketName
		if bucket == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage not configured"})
			return
		}
		name := filepath.Base(c.Param("name"))
		meta, err := s.store.metadata(c.Request.Context(), bucket, name)
		if errors.Is(err, storage.ErrObjectNotExist) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Archivo no encontrado"})
			return
		}
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "reportInfoHandler", "object metadata", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo leer el reporte"})
			return
		}
		c.JSON(http.StatusOK, reportInfo{ObjectMetadata: *meta, URL: utils.BuildObjectAccessURL(bucket, meta.Name)})
	}
}

type tempURLRequest struct {
	File string `json:"file" binding:"required"`
}

// issueTempURLHandler registers a local download token for a file of the
// output directory.
func (s *apiServer) issueTempURLHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tempURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": utils.ProcessValidationErrors(err)})
			return
		}
		name := filepath.Base(strings.TrimSpace(req.File))
		path := filepath.Join(s.settings.SalidaDir, name)
		if name == "." || name == string(filepath.Separator) || !utils.FileExists(path) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Archivo no encontrado"})
			return
		}
		token, expiry, err := s.tempURLs.Generate(path, s.settings.TempURLTTL)
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "issueTempURLHandler", "generate token", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "No se pudo generar URL"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"url":        "/api/temp-url/" + token,
			"expires_at": expiry.UTC().Format(time.RFC3339),
		})
	}
}

func (s *apiServer) tempURLFileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path, err := s.tempURLs.FilePath(c.Param("token"))
		if err != nil || !utils.FileExists(path) {
			c.JSON(http.StatusNotFound, gin.H{"error": "URL inválida"})
			return
		}
		c.FileAttachment(path, filepath.Base(path))
	}
}

func (s *apiServer) statusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, ok, err := s.status(c.Request.Context())
		if err != nil {
			config.LogError(config.GetLogger(), "server.go", "statusHandler", "read run summary", nil, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status unavailable"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no run recorded"})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// purgeExpired drops stale rate limiter keys and expired tokens until ctx ends.
func (s *apiServer) purgeExpired(ctx context.Context) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			keys := s.limiter.Purge()
			tokens, err := s.tempURLs.Purge()
			if err != nil {
				config.LogError(config.GetLogger(), "server.go", "purgeExpired", "purge temp urls", nil, err)
			}
			if keys > 0 || tokens > 0 {
				config.GetLogger().WithFields(logrus.Fields{
					"rate_limit_keys": keys,
					"temp_urls":       tokens,
				}).Debug("expired entries purged")
			}
		}
	}
}

func newRouter(s *apiServer) *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())

	corsConfig := cors.DefaultConfig()
	// In production require an explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", middlewares.CorrelationHeader)
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	r.Use(cors.New(corsConfig))

	r.Use(customErrorLogger(config.GetLogger()))
	r.Use(gin.Recovery())
	s.routes(r)
	r.NoRoute(customNotFoundHandler)
	return r
}

func main() {
	settings := config.LoadSettings()
	port := os.Getenv("PORT")
	if port == "" {
		port = settings.APIPort
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	if err := settings.EnsureDirs(); err != nil {
		logger.WithFields(logrus.Fields{"field": "dirs"}).Fatal(err.Error())
	}

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	api := newAPIServer(settings)
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(api),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	purgeCtx, cancelPurge := context.WithCancel(context.Background())
	defer cancelPurge()
	go api.purgeExpired(purgeCtx)

	// Redis only backs /api/status; the endpoint degrades without it.
	if settings.RedisAddress != "" {
		if err := config.ConnectRedis(sigCtx, settings.RedisAddress, 5); err != nil {
			logger.WithFields(logrus.Fields{"field": "redis"}).Warn("status endpoint without redis: " + err.Error())
		}
	}
	logger.WithFields(logrus.Fields{"port": port}).Info("report api started")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	cancelPurge()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	config.CloseRedis()
}

// customErrorLogger is a custom Gin middleware that logs only errors
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
