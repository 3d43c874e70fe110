package workflow

import (
	"os"
	"path/filepath"

	"github.com/mmdatafocus/stock_backend/config"
	"github.com/sirupsen/logrus"
)

// TempFilePatterns lists the leftovers of earlier runs. The state dir holding
// the previous-run stock is never matched.
func TempFilePatterns(settings *config.Settings) []string {
	return []string{
		filepath.Join(settings.DatosDir, "REPT_STOCK_*.xls*"),
		filepath.Join(settings.TempDir, "*.tmp"),
		filepath.Join(settings.TempDir, "*.json"),
		filepath.Join(settings.SalidaDir, "reporte_final_*_backup.xlsx"),
		filepath.Join(settings.SalidaDir, stagingPrefix+"*"),
		filepath.Join(settings.ProcesamientoDir, stagingPrefix+"*"),
	}
}

// CleanTempFiles removes the files matching TempFilePatterns. Failures to
// remove a file are logged and skipped.
func CleanTempFiles(settings *config.Settings) int {
	logger := config.GetLogger()
	cleaned := 0
	for _, pattern := range TempFilePatterns(settings) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			config.LogError(logger, "workflow", "CleanTempFiles", "glob", pattern, err)
			continue
		}
		for _, file := range matches {
			if err := os.Remove(file); err != nil {
				logger.WithFields(logrus.Fields{"file": file, "error": err.Error()}).Warn("could not remove temp file")
				continue
			}
			logger.WithField("file", file).Debug("temp file removed")
			cleaned++
		}
	}
	logger.WithField("removed", cleaned).Info("temp cleanup finished")
	return cleaned
}
