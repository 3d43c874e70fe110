package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/stock_backend/config"
	"github.com/mmdatafocus/stock_backend/middlewares"
	"github.com/mmdatafocus/stock_backend/utils"
	"github.com/mmdatafocus/stock_backend/workflow"
)

func testAPI(t *testing.T) (*apiServer, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	settings := &config.Settings{
		SalidaDir:           dir,
		TempURLRegistryFile: filepath.Join(dir, "temp", "temp_urls.json"),
		StorageBucketName:   "reports-bucket",
		SignedURLTTL:        30 * time.Minute,
		TempURLTTL:          30 * time.Minute,
		RateLimitCalls:      5,
		RateLimitWindow:     time.Minute,
	}
	api := newAPIServer(settings)
	api.sign = func(ctx context.Context, bucket, objectKey string, expires time.Duration) (*utils.SignedDownload, error) {
		return &utils.SignedDownload{
			URL:       "https://storage.example/" + bucket + "/" + objectKey,
			Method:    http.MethodGet,
			Bucket:    bucket,
			ObjectKey: objectKey,
			ExpiresAt: time.Now().Add(expires),
		}, nil
	}
	objects := map[string]utils.ObjectMetadata{}
	for _, obj := range []utils.ObjectMetadata{
		{Name: reportObject, Size: 2048, SizeFormatted: utils.FormatFileSize(2048), ContentType: utils.ContentTypeXLSX},
		{Name: "stock_generales.json", Size: 10, SizeFormatted: utils.FormatFileSize(10), ContentType: utils.ContentTypeJSON},
	} {
		objects[obj.Name] = obj
	}
	api.store = reportStore{
		exists: func(ctx context.Context, bucket, objectKey string) (bool, error) {
			_, ok := objects[objectKey]
			return ok, nil
		},
		metadata: func(ctx context.Context, bucket, objectKey string) (*utils.ObjectMetadata, error) {
			obj, ok := objects[objectKey]
			if !ok {
				return nil, storage.ErrObjectNotExist
			}
			return &obj, nil
		},
		list: func(ctx context.Context, bucket, prefix string) ([]utils.ObjectMetadata, error) {
			var out []utils.ObjectMetadata
			for _, name := range []string{reportObject, "stock_generales.json"} {
				if strings.HasPrefix(name, prefix) {
					out = append(out, objects[name])
				}
			}
			return out, nil
		},
	}
	api.status = func(ctx context.Context) (*workflow.RunSummary, bool, error) {
		return nil, false, nil
	}
	return api, newRouter(api)
}

func do(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	_, r := testAPI(t)
	w := do(r, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK || w.Body.String() != `{"status":"healthy"}` {
		t.Fatalf("unexpected health response %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get(middlewares.CorrelationHeader) == "" {
		t.Fatalf("expected a correlation id header")
	}
}

func TestReportTempURLIsRateLimited(t *testing.T) {
	_, r := testAPI(t)
	for i := 0; i < 5; i++ {
		w := do(r, http.MethodGet, "/api/reporte-temp-url", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("call %d: unexpected status %d", i+1, w.Code)
		}
		var resp struct {
			URL       string `json:"url"`
			ExpiresIn int    `json:"expires_in"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.URL != "https://storage.example/reports-bucket/reporte_stock_hoy.xlsx" || resp.ExpiresIn != 30 {
			t.Fatalf("unexpected response %+v", resp)
		}
	}
	w := do(r, http.MethodGet, "/api/reporte-temp-url", nil)
	if w.Code != http.StatusTooManyRequests || w.Body.String() != `{"error":"Too many requests"}` {
		t.Fatalf("sixth call: unexpected %d %s", w.Code, w.Body.String())
	}
}

func TestReportTempURLSignFailure(t *testing.T) {
	api, r := testAPI(t)
	api.sign = func(ctx context.Context, bucket, objectKey string, expires time.Duration) (*utils.SignedDownload, error) {
		return nil, errors.New("no credentials")
	}
	if w := do(r, http.MethodGet, "/api/reporte-temp-url", nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestReportTempURLMissingReport(t *testing.T) {
	api, r := testAPI(t)
	api.store.exists = func(ctx context.Context, bucket, objectKey string) (bool, error) {
		return false, nil
	}
	w := do(r, http.MethodGet, "/api/reporte-temp-url", nil)
	if w.Code != http.StatusNotFound || w.Body.String() != `{"error":"Reporte no disponible"}` {
		t.Fatalf("unexpected %d %s", w.Code, w.Body.String())
	}
}

func TestListReports(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "")
	_, r := testAPI(t)
	w := do(r, http.MethodGet, "/api/reportes?prefix=reporte", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", w.Code)
	}
	var resp struct {
		Reports []reportInfo `json:"reports"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Reports) != 1 {
		t.Fatalf("expected one report, got %+v", resp.Reports)
	}
	got := resp.Reports[0]
	if got.Name != reportObject || got.SizeFormatted != "2.00KB" || got.URL != "https://storage.googleapis.com/reports-bucket/"+reportObject {
		t.Fatalf("unexpected report %+v", got)
	}
}

func TestReportInfo(t *testing.T) {
	_, r := testAPI(t)
	if w := do(r, http.MethodGet, "/api/reportes/stock_generales.json", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", w.Code, w.Body.String())
	}
	w := do(r, http.MethodGet, "/api/reportes/missing.xlsx", nil)
	if w.Code != http.StatusNotFound || w.Body.String() != `{"error":"Archivo no encontrado"}` {
		t.Fatalf("unexpected %d %s", w.Code, w.Body.String())
	}
}

func TestTempURLRoundTrip(t *testing.T) {
	api, r := testAPI(t)
	content := []byte("xlsx-bytes")
	if err := os.WriteFile(filepath.Join(api.settings.SalidaDir, "reporte_especiales.xlsx"), content, 0o644); err != nil {
		t.Fatalf("seed report: %v", err)
	}

	w := do(r, http.MethodPost, "/api/temp-url", []byte(`{"file":"../reporte_especiales.xlsx"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("issue token: %d %s", w.Code, w.Body.String())
	}
	var issued struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &issued); err != nil || issued.Token == "" {
		t.Fatalf("decode token: %v %s", err, w.Body.String())
	}

	w = do(r, http.MethodGet, issued.URL, nil)
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), content) {
		t.Fatalf("download: %d %q", w.Code, w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/temp-url/unknown", nil)
	if w.Code != http.StatusNotFound || w.Body.String() != `{"error":"URL inválida"}` {
		t.Fatalf("unknown token: %d %s", w.Code, w.Body.String())
	}
}

func TestIssueTempURLMissingFile(t *testing.T) {
	_, r := testAPI(t)
	if w := do(r, http.MethodPost, "/api/temp-url", []byte(`{"file":"nope.xlsx"}`)); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/temp-url", []byte(`{}`)); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStatus(t *testing.T) {
	api, r := testAPI(t)
	if w := do(r, http.MethodGet, "/api/status", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a run, got %d", w.Code)
	}
	api.status = func(ctx context.Context) (*workflow.RunSummary, bool, error) {
		return &workflow.RunSummary{RunId: "run-1", Status: workflow.StatusSucceeded}, true, nil
	}
	w := do(r, http.MethodGet, "/api/status", nil)
	var got workflow.RunSummary
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil || got.RunId != "run-1" {
		t.Fatalf("unexpected status body %s (%v)", w.Body.String(), err)
	}
}
