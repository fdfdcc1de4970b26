package core

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetguard/internal/config"
	"github.com/JonMunkholm/sheetguard/internal/schema"
	"github.com/JonMunkholm/sheetguard/internal/store"
)

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{
		MaxFileSize:      1 << 20,
		MaxConcurrent:    2,
		MaxWaitTime:      time.Second,
		Timeout:          time.Minute,
		BatchParallelism: 2,
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.NewDirStore(t.TempDir())
	require.NoError(t, err)
	return NewService(st, testUploadConfig())
}

func TestService_SaveAndValidateUpload(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	entry, err := svc.SaveSchema(ctx, "reports", []byte(reportSchema))
	require.NoError(t, err)
	assert.Equal(t, "reports.json", entry.ID)

	body := "Id,Label\n1,x\n2,y\n"
	res, err := svc.ValidateUpload(ctx, entry.ID, "report_2023.csv", strings.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"Worksheet: Sheet1"}, res.Diagnostics)

	entries, err := svc.ListSchemas(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "reports.json", entries[0].Name)
}

func TestService_SaveSchemaRejectsInvalidDocument(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.SaveSchema(ctx, "bad.json", []byte(`{"sheets":[{"columns":[{"name":"A","type":"date"}]}]}`))
	require.ErrorIs(t, err, schema.ErrInvalidSchema)
	assert.Equal(t, "SCH001", MapError(err).Code)

	entries, err := svc.ListSchemas(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_SaveYAMLSchema(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	doc := "sheets:\n  - columns:\n      - name: Id\n        type: number\n"
	entry, err := svc.SaveSchema(ctx, "ids.yaml", []byte(doc))
	require.NoError(t, err)

	sch, err := svc.GetSchema(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "number", sch.Sheets[0].Columns[0].Type.String())
}

func TestService_ValidateUploadErrors(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.SaveSchema(ctx, "reports.json", []byte(reportSchema))
	require.NoError(t, err)

	_, err = svc.ValidateUpload(ctx, "", "a.csv", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrMissingSchema)

	_, err = svc.ValidateUpload(ctx, "reports.json", "", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrMissingFile)

	_, err = svc.ValidateUpload(ctx, "nope.json", "a.csv", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.ValidateUpload(ctx, "reports.json", "a.csv", strings.NewReader("x"), 2<<20)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	big := strings.Repeat("a", (1<<20)+1)
	_, err = svc.ValidateUpload(ctx, "reports.json", "a.csv", strings.NewReader(big), -1)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestService_ValidateWithBusyLimiter(t *testing.T) {
	cfg := testUploadConfig()
	cfg.MaxConcurrent = 1
	cfg.MaxWaitTime = 10 * time.Millisecond
	svc := NewService(nil, cfg)

	require.True(t, svc.limiter.TryAcquire())
	defer svc.limiter.Release()

	_, err := svc.ValidateWith(context.Background(), mustSchema(t, reportSchema), BytesSource("report_2023.csv", []byte("Id\n1\n")))
	assert.ErrorIs(t, err, ErrTooManyValidations)
	assert.Equal(t, 1, svc.LimiterStatus().Active)
}

// captureLogs routes the default logger into a buffer for the rest of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestService_RunLogCarriesClient(t *testing.T) {
	logs := captureLogs(t)
	svc := NewService(nil, testUploadConfig())

	ctx := ContextWithClient(context.Background(), "203.0.113.7", "curl/8.5.0")
	res, err := svc.ValidateWith(ctx, mustSchema(t, reportSchema), BytesSource("report_2023.csv", []byte("Id,Label\n1,x\n")))
	require.NoError(t, err)
	assert.True(t, res.Success)

	out := logs.String()
	assert.Contains(t, out, `"msg":"validation finished"`)
	assert.Contains(t, out, `"client_ip":"203.0.113.7"`)
	assert.Contains(t, out, `"user_agent":"curl/8.5.0"`)
	assert.NotContains(t, out, "waiting for a validation slot")
	assert.Equal(t, 0, svc.LimiterStatus().Active)
}

func TestService_BusyLimiterLogsWait(t *testing.T) {
	logs := captureLogs(t)
	cfg := testUploadConfig()
	cfg.MaxConcurrent = 1
	cfg.MaxWaitTime = 10 * time.Millisecond
	svc := NewService(nil, cfg)

	require.True(t, svc.limiter.TryAcquire())
	defer svc.limiter.Release()

	_, err := svc.ValidateWith(context.Background(), mustSchema(t, reportSchema), BytesSource("report_2023.csv", []byte("Id\n1\n")))
	assert.ErrorIs(t, err, ErrTooManyValidations)
	assert.Contains(t, logs.String(), `"msg":"waiting for a validation slot"`)
	assert.NotContains(t, logs.String(), "user_agent")
}

func TestService_ValidateBatchKeepsOrder(t *testing.T) {
	svc := NewService(nil, testUploadConfig())
	sch := mustSchema(t, reportSchema)

	var sources []Source
	for i := 0; i < 6; i++ {
		body := "Id,Label\n1,x\n"
		if i%2 == 1 {
			body = "Id,Label\nbad,x\n"
		}
		sources = append(sources, BytesSource(fmt.Sprintf("report_%04d.csv", i), []byte(body)))
	}

	results, err := svc.ValidateBatch(context.Background(), sch, sources, 3)
	require.NoError(t, err)
	require.Len(t, results, len(sources))
	for i, res := range results {
		assert.Equal(t, sources[i].Name(), res.File)
		assert.Equal(t, i%2 == 0, res.Success, res.File)
	}
}

func TestService_ValidateBatchStopsOnMissingFile(t *testing.T) {
	svc := NewService(nil, testUploadConfig())
	sources := []Source{
		BytesSource("report_2023.csv", []byte("Id,Label\n1,x\n")),
		FileSource(filepath.Join(t.TempDir(), "absent.csv")),
	}

	_, err := svc.ValidateBatch(context.Background(), mustSchema(t, reportSchema), sources, 0)
	require.ErrorIs(t, err, ErrMissingFile)
	assert.Contains(t, err.Error(), "absent.csv")
}

func TestService_WithoutStore(t *testing.T) {
	svc := NewService(nil, testUploadConfig())
	ctx := context.Background()

	_, err := svc.ListSchemas(ctx)
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = svc.GetSchema(ctx, "a.json")
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = svc.SaveSchema(ctx, "a.json", []byte(reportSchema))
	assert.ErrorIs(t, err, ErrNoStore)
	assert.ErrorIs(t, svc.DeleteSchema(ctx, "a.json"), ErrNoStore)
}

func TestService_DeleteSchema(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.SaveSchema(ctx, "reports.json", []byte(reportSchema))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSchema(ctx, "reports.json"))
	_, err = svc.GetSchema(ctx, "reports.json")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSourcesInDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.csv", "a.xlsx", "notes.txt", "c.xls"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.csv"), 0o755))

	sources, err := SourcesInDir(dir)
	require.NoError(t, err)

	var names []string
	for _, s := range sources {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"a.xlsx", "b.csv", "c.xls"}, names)
}

func TestService_ValidateReaderInlineSchema(t *testing.T) {
	svc := NewService(nil, testUploadConfig())
	sch := mustSchema(t, reportSchema)

	body := "Id,Label\nabc,x\n"
	res, err := svc.ValidateReader(context.Background(), sch, "report_2023.csv", strings.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Problems())

	_, err = svc.ValidateReader(context.Background(), nil, "report_2023.csv", strings.NewReader(body), -1)
	assert.ErrorIs(t, err, ErrMissingSchema)
}
