package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ujpm/Microsmart-PF/internal/agents"
	"github.com/ujpm/Microsmart-PF/internal/domain"
	"github.com/ujpm/Microsmart-PF/internal/service"
	"github.com/ujpm/Microsmart-PF/internal/staging"
)

type stubStore struct {
	matches []domain.Match
}

func (s *stubStore) Upload(context.Context, string, io.Reader, int64, string) error {
	return nil
}

func (s *stubStore) Search(context.Context, string, int) ([]domain.Match, error) {
	return s.matches, nil
}

func newRouter(svc service.Diagnostics) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := New(svc, 10*1024*1024, zap.NewNop())
	router.GET("/", h.HealthCheck)
	router.POST("/analyze", h.Analyze)
	router.POST("/search", h.Search)
	return router
}

func demoService(t *testing.T) (service.Diagnostics, string) {
	t.Helper()
	dir := t.TempDir()
	svc := service.NewDiagnostics(
		agents.NewSimulatedDetector(),
		agents.NewSimulatedReporter(),
		staging.New(dir, zap.NewNop()),
		nil, nil,
		zap.NewNop(),
	)
	return svc, dir
}

func multipartSample(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", "smear.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	svc, _ := demoService(t)
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "MicroSmart PF", body["system"])
	assert.Equal(t, false, body["memory"])
}

func TestAnalyzeNotReady(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	svc := service.NewDiagnostics(nil, nil, staging.New(dir, zap.NewNop()), nil, nil, zap.NewNop())
	router := newRouter(svc)

	buf, contentType := multipartSample(t)
	req := httptest.NewRequest(http.MethodPost, "/analyze", buf)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "AI Agents are not ready.", body["detail"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no file staged when agents are not ready")
}

func TestAnalyzeSuccess(t *testing.T) {
	t.Parallel()

	svc, dir := demoService(t)
	router := newRouter(svc)

	buf, contentType := multipartSample(t)
	req := httptest.NewRequest(http.MethodPost, "/analyze", buf)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result domain.CaseResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.CaseID)
	assert.Equal(t, 150, result.Analysis.Counts["Red_Blood_Cell"])
	assert.InDelta(t, 10.0, result.Analysis.ParasitemiaPct, 1e-9)
	assert.Contains(t, result.Report, "Severe Malaria")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged file removed synchronously when the store is absent")
}

func TestAnalyzeMissingFile(t *testing.T) {
	t.Parallel()

	svc, _ := demoService(t)
	router := newRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchWithoutStore(t *testing.T) {
	t.Parallel()

	svc, _ := demoService(t)
	router := newRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"severe"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchReturnsMatches(t *testing.T) {
	t.Parallel()

	store := &stubStore{matches: []domain.Match{{ID: "cases/abc/report.md", Score: 0.88, Text: "Severe Malaria"}}}
	svc := service.NewDiagnostics(nil, nil, staging.New(t.TempDir(), zap.NewNop()), nil, store, zap.NewNop())
	router := newRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"severe"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Matches []domain.Match `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Matches, 1)
	assert.Equal(t, "cases/abc/report.md", body.Matches[0].ID)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	t.Parallel()

	svc, _ := demoService(t)
	router := newRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
