package reports

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/models"
	"github.com/mmdatafocus/stock_backend/utils"
	"github.com/sirupsen/logrus"
)

// ErrInvalidFeed aborts stock_generales.json; no file is written.
var ErrInvalidFeed = errors.New("stock feed failed schema validation")

var (
	feedValidator     *validator.Validate
	feedValidatorOnce sync.Once
)

func getFeedValidator() *validator.Validate {
	feedValidatorOnce.Do(func() {
		feedValidator = validator.New()
		feedValidator.SetTagName("binding")
	})
	return feedValidator
}

// Keywords is the search index of a product: sorted unique lower-case tokens
// of its name, code and barcodes.
func Keywords(r models.ConsolidatedRow) string {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(r.Nombre)) {
		set[tok] = true
	}
	for _, v := range []string{r.Codigo, r.Ean, r.Ean14} {
		if tok := strings.ToLower(utils.CleanBarcode(v)); tok != "" {
			set[tok] = true
		}
	}
	tokens := make([]string, 0, len(set))
	for tok := range set {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func lineSet(lines []string) map[string]bool {
	set := make(map[string]bool, len(lines))
	for _, l := range lines {
		set[l] = true
	}
	return set
}

// BuildProductosLocal keeps the snapshot products whose line is processed.
func BuildProductosLocal(snapshot *models.ConsolidatedSnapshot, lines []string) []models.ProductoLocal {
	wanted := lineSet(lines)
	out := make([]models.ProductoLocal, 0)
	if snapshot == nil {
		return out
	}
	for _, r := range snapshot.Rows {
		if !wanted[r.Linea] {
			continue
		}
		out = append(out, models.ProductoLocal{
			Codigo:           r.Codigo,
			Nombre:           r.Nombre,
			Linea:            r.Linea,
			Ean:              utils.CleanBarcode(r.Ean),
			Ean14:            utils.CleanBarcode(r.Ean14),
			Precio:           r.Precio,
			CanKgUm:          r.CanKgUm,
			UPorCaja:         r.UPorCaja,
			StockReferencial: r.StockReferencial,
			Keywords:         Keywords(r),
		})
	}
	return out
}

func WriteProductosLocal(path string, snapshot *models.ConsolidatedSnapshot, lines []string) error {
	logger := config.GetLogger()
	productos := BuildProductosLocal(snapshot, lines)
	if len(productos) == 0 {
		logger.Warn("no products for productos_local.json")
		return ErrNothingToWrite
	}
	if err := writeFeed(path, productos); err != nil {
		config.LogError(logger, "reports", "WriteProductosLocal", "write feed", path, err)
		return err
	}
	logger.WithField("products", len(productos)).Info("productos_local.json written")
	return nil
}

// BuildStockGenerales stacks the general rows of the processed lines and
// every special row, keeping the first row per code.
func BuildStockGenerales(generales, especiales []models.ConsolidatedRow, lines []string, schema models.WarehouseSchema) []models.ProductoStock {
	wanted := lineSet(lines)
	seen := make(map[string]bool)
	out := make([]models.ProductoStock, 0, len(generales)+len(especiales))

	add := func(r models.ConsolidatedRow) {
		if seen[r.Codigo] {
			return
		}
		seen[r.Codigo] = true
		almacenes := make(map[string]models.AlmacenStock, len(schema.Warehouses))
		for _, wh := range schema.Warehouses {
			cell := r.Cell(wh)
			almacenes[wh] = models.AlmacenStock{Total: cell.StockTotal, Disponible: cell.Disponible}
		}
		out = append(out, models.ProductoStock{
			Codigo:           r.Codigo,
			Nombre:           r.Nombre,
			Linea:            r.Linea,
			Ean:              utils.CleanBarcode(r.Ean),
			Ean14:            utils.CleanBarcode(r.Ean14),
			Precio:           r.Precio,
			CanKgUm:          r.CanKgUm,
			UPorCaja:         r.UPorCaja,
			StockReferencial: r.StockReferencial,
			Almacenes:        almacenes,
		})
	}
	for _, r := range generales {
		if wanted[r.Linea] {
			add(r)
		}
	}
	for _, r := range especiales {
		add(r)
	}
	return out
}

// ValidateStockGenerales checks every record and reports the first failure.
func ValidateStockGenerales(records []models.ProductoStock) error {
	v := getFeedValidator()
	for i := range records {
		if err := v.Struct(records[i]); err != nil {
			fields := utils.ProcessValidationErrors(err)
			config.GetLogger().WithFields(logrus.Fields{
				"codigo": records[i].Codigo,
				"fields": fields,
			}).Error("stock feed record failed validation")
			return fmt.Errorf("%w: record %d (codigo %q): %v", ErrInvalidFeed, i, records[i].Codigo, err)
		}
	}
	return nil
}

// WriteStockGenerales writes stock_generales.json only when every record
// validates; on failure the previous file is left untouched.
func WriteStockGenerales(path string, generales, especiales []models.ConsolidatedRow, lines []string, schema models.WarehouseSchema) error {
	records := BuildStockGenerales(generales, especiales, lines, schema)
	if len(records) > 0 {
		config.GetLogger().WithField("records", len(records)).Info("validating stock feed schema")
		if err := ValidateStockGenerales(records); err != nil {
			config.LogError(config.GetLogger(), "reports", "WriteStockGenerales", "schema validation", path, err)
			return err
		}
	}
	return WriteStockFeed(path, records)
}

// WriteStockFeed writes records that already passed ValidateStockGenerales.
func WriteStockFeed(path string, records []models.ProductoStock) error {
	logger := config.GetLogger()
	if len(records) == 0 {
		logger.Warn("no data for stock_generales.json")
		return ErrNothingToWrite
	}
	if err := writeFeed(path, records); err != nil {
		config.LogError(logger, "reports", "WriteStockFeed", "write feed", path, err)
		return err
	}
	logger.WithField("records", len(records)).Info("stock_generales.json written")
	return nil
}

// writeFeed encodes with 4-space indent and keeps non-ASCII and HTML
// characters as they are.
func writeFeed(path string, v interface{}) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, buf.Bytes())
}
