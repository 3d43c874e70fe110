package loader

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/stock_backend/models"
)

func TestLoadBaseExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base_total.xlsx")
	writeWorkbook(t, path, [][]interface{}{
		{"CODIGO", "NOMBRE", "LINEA", "COD_EAN", "COD_EAN_14", "PRECIO", "FLG_INACTIVO"},
		{" 00 1", "Ball", " PELOTAS ", "7750000000012.0", "", "12.5", "0"},
		{"", "Ghost", "PELOTAS", "", "", "", ""},
		{"002", "Brush", "PINTURA", "775 0001", "17750000000012", "N/A", "1"},
	})

	products, err := LoadBaseExport(path)
	if err != nil {
		t.Fatalf("LoadBaseExport error: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	p := products[0]
	if p.Codigo != "001" || p.Linea != "PELOTAS" || p.Ean != "7750000000012" || p.Precio != 12.5 || p.CanKgUm != 0 {
		t.Fatalf("unexpected first product %+v", p)
	}
	if products[1].Ean != "7750001" || products[1].Precio != 0 {
		t.Fatalf("unexpected second product %+v", products[1])
	}
}

func TestLoadBaseExportLegacyXLS(t *testing.T) {
	products, err := LoadBaseExport(filepath.Join("testdata", "base_total.xls"))
	if err != nil {
		t.Fatalf("LoadBaseExport error: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	p := products[0]
	if p.Codigo != "001" || p.Nombre != "Ball" || p.Linea != "PELOTAS" || p.Ean != "7750000000012" || p.Precio != 12.5 || p.CanKgUm != 0.25 {
		t.Fatalf("unexpected first product %+v", p)
	}
	if products[1].Codigo != "002" || products[1].Ean != "7750001" || products[1].Ean14 != "17750000000012" || products[1].Precio != 0 {
		t.Fatalf("unexpected second product %+v", products[1])
	}
}

func TestLoadBaseExportMissingRequiredColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base_total.xlsx")
	writeWorkbook(t, path, [][]interface{}{
		{"CODIGO", "NOMBRE"},
		{"001", "Ball"},
	})
	if _, err := LoadBaseExport(path); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codigos_especiales.xlsx")
	writeWorkbook(t, path, [][]interface{}{
		{"CODIGO", "NOMBRE", "LINEA", "ORDEN", "UNID_MASTER", "MOTIVO"},
		{" 900 ", "Special", "OTROS", "2", "abc", "Liquidacion"},
	})
	rows, err := LoadCatalog(path, models.CatalogSourceSpecial)
	if err != nil {
		t.Fatalf("LoadCatalog error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.Codigo != "900" || r.Orden != "2" || r.UPorCaja != "abc" || r.Motivo != "Liquidacion" {
		t.Fatalf("unexpected catalog row %+v", r)
	}
}

func TestLoadCatalogStripsInternalSpaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codigos_generales.xlsx")
	writeWorkbook(t, path, [][]interface{}{
		{"CODIGO", "NOMBRE"},
		{" 9 00 ", "Spaced"},
		{"0 01", "Ball"},
	})
	rows, err := LoadCatalog(path, models.CatalogSourceGeneral)
	if err != nil {
		t.Fatalf("LoadCatalog error: %v", err)
	}
	if len(rows) != 2 || rows[0].Codigo != "900" || rows[1].Codigo != "001" {
		t.Fatalf("expected codes 900 and 001, got %+v", rows)
	}
}

func TestLoadLinesToProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lineas_a_procesar.xlsx")
	writeWorkbook(t, path, [][]interface{}{
		{"LINEA"},
		{" PELOTAS "},
		{"ESPECIALES"},
		{"PINTURA"},
		{"PELOTAS"},
	})
	lines, err := LoadLinesToProcess(path)
	if err != nil {
		t.Fatalf("LoadLinesToProcess error: %v", err)
	}
	if len(lines) != 2 || lines[0] != "PELOTAS" || lines[1] != "PINTURA" {
		t.Fatalf("unexpected lines %v", lines)
	}
}

func TestLoadLinesToProcessEmptyIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lineas_a_procesar.xlsx")
	writeWorkbook(t, path, [][]interface{}{
		{"LINEA"},
		{"ESPECIALES"},
	})
	if _, err := LoadLinesToProcess(path); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
