package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/models"
	"github.com/mmdatafocus/stock_backend/utils"
	"github.com/sirupsen/logrus"
)

// Zero-based column positions of the stock export.
const (
	colCodigo      = 1
	colNombre      = 2
	colAlmacen     = 9
	colStockTotal  = 13
	colPredespacho = 16
	colDisponible  = 18
)

const DefaultDownloadTimeout = 120 * time.Second

type StockExportOptions struct {
	// SkipRows is the number of banner rows above the header row.
	SkipRows int
	// ReferenceToken selects the reference warehouse, "VES" by default.
	ReferenceToken string
}

// DownloadStockExport fetches the stock export workbook. Any transport error
// or non-2xx status is returned.
func DownloadStockExport(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("STOCK_API_URL is empty")
	}
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download stock export: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download stock export: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download stock export: %w", err)
	}
	config.GetLogger().WithField("bytes", len(data)).Info("stock export downloaded")
	return data, nil
}

// ParseStockExport pivots the export into one row per code with a cell per
// warehouse and negotiates the warehouse schema.
func ParseStockExport(data []byte, opts StockExportOptions) (*models.StockPivot, error) {
	rows, err := readSheetRows(data)
	if err != nil {
		return nil, fmt.Errorf("parse stock export: %w", err)
	}
	return pivotStockRows(rows, opts), nil
}

func pivotStockRows(rows [][]string, opts StockExportOptions) *models.StockPivot {
	logger := config.GetLogger()

	// the row after the skipped banner is the header
	start := opts.SkipRows + 1
	if start > len(rows) {
		start = len(rows)
	}

	type record struct {
		code, name, warehouse string
		cell                  models.WarehouseStock
	}
	var (
		records    []record
		warehouses []string
		seenWh     = map[string]bool{}
		skipped    int
	)
	for _, row := range rows[start:] {
		code := utils.CleanCode(cell(row, colCodigo))
		warehouse := strings.TrimSpace(cell(row, colAlmacen))
		if code == "" || warehouse == "" {
			skipped++
			continue
		}
		if !seenWh[warehouse] {
			seenWh[warehouse] = true
			warehouses = append(warehouses, warehouse)
		}
		records = append(records, record{
			code:      code,
			name:      strings.TrimSpace(cell(row, colNombre)),
			warehouse: warehouse,
			cell: models.WarehouseStock{
				StockTotal:  utils.ParseIntOrZero(cell(row, colStockTotal)),
				Predespacho: utils.ParseIntOrZero(cell(row, colPredespacho)),
				Disponible:  utils.ParseIntOrZero(cell(row, colDisponible)),
			},
		})
	}

	token := opts.ReferenceToken
	if token == "" {
		token = "VES"
	}
	pivot := models.NewStockPivot(models.NewWarehouseSchema(warehouses, token))
	for _, r := range records {
		byWh, ok := pivot.Cells[r.code]
		if !ok {
			byWh = make(map[string]models.WarehouseStock)
			pivot.Cells[r.code] = byWh
			pivot.Order = append(pivot.Order, r.code)
			pivot.Names[r.code] = r.name
		}
		if _, dup := byWh[r.warehouse]; dup {
			continue
		}
		byWh[r.warehouse] = r.cell
	}

	if !pivot.Schema.HasReference() {
		logger.WithField("token", token).Warn("reference warehouse not found in stock export, stock_referencial defaults to 0")
	}
	logger.WithFields(logrus.Fields{
		"products":   len(pivot.Order),
		"warehouses": pivot.Schema.Warehouses,
		"reference":  pivot.Schema.Reference,
		"skipped":    skipped,
	}).Info("stock export parsed")
	return pivot
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
