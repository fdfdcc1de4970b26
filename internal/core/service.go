package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/sheetguard/internal/config"
	"github.com/JonMunkholm/sheetguard/internal/logging"
	"github.com/JonMunkholm/sheetguard/internal/schema"
	"github.com/JonMunkholm/sheetguard/internal/store"
)

// ErrFileTooLarge is returned when an upload exceeds the configured size limit.
var ErrFileTooLarge = errors.New("file too large")

// ErrNoStore is returned by schema operations on a Service built without a store.
var ErrNoStore = errors.New("no schema store configured")

// Service is the entry point for transports: it bounds concurrency, loads stored
// schemas, records metrics and logs every run.
type Service struct {
	engine  *Engine
	store   store.Store
	limiter *ValidationLimiter
	cfg     config.UploadConfig
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithEngine replaces the default Engine.
func WithEngine(e *Engine) ServiceOption {
	return func(s *Service) { s.engine = e }
}

// NewService creates a Service. st may be nil for callers that always pass
// schemas inline (the CLI).
func NewService(st store.Store, cfg config.UploadConfig, opts ...ServiceOption) *Service {
	s := &Service{
		engine:  NewEngine(),
		store:   st,
		limiter: NewValidationLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxFileSize returns the upload size limit in bytes; zero means unlimited.
func (s *Service) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

// LimiterStatus reports validation slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForValidations blocks until running validations finish or ctx ends.
func (s *Service) WaitForValidations(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ValidateUpload validates an uploaded file against a stored schema. size is the
// declared length of r, or -1 when unknown.
func (s *Service) ValidateUpload(ctx context.Context, schemaID, fileName string, r io.Reader, size int64) (Result, error) {
	if r == nil || fileName == "" {
		return Result{}, ErrMissingFile
	}
	if schemaID == "" {
		return Result{}, ErrMissingSchema
	}
	if limit := s.cfg.MaxFileSize; limit > 0 && size > limit {
		return Result{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, limit)
	}

	sch, err := s.GetSchema(ctx, schemaID)
	if err != nil {
		return Result{}, err
	}
	return s.ValidateReader(ctx, sch, fileName, r, size)
}

// ValidateReader validates an uploaded file against an inline schema, applying
// the same size limit as ValidateUpload.
func (s *Service) ValidateReader(ctx context.Context, sch *schema.Schema, fileName string, r io.Reader, size int64) (Result, error) {
	if r == nil || fileName == "" {
		return Result{}, ErrMissingFile
	}
	if sch == nil {
		return Result{}, ErrMissingSchema
	}
	if limit := s.cfg.MaxFileSize; limit > 0 && size > limit {
		return Result{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, limit)
	}

	data, err := s.readUpload(r)
	if err != nil {
		return Result{}, err
	}
	return s.ValidateWith(ctx, sch, BytesSource(fileName, data))
}

func (s *Service) readUpload(r io.Reader) ([]byte, error) {
	limit := s.cfg.MaxFileSize
	if limit <= 0 {
		return io.ReadAll(r)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if n > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, limit)
	}
	return buf.Bytes(), nil
}

// ValidateWith validates src against an inline schema.
func (s *Service) ValidateWith(ctx context.Context, sch *schema.Schema, src Source) (Result, error) {
	if src == nil {
		return Result{}, ErrMissingFile
	}
	if sch == nil {
		return Result{}, ErrMissingSchema
	}

	if err := s.acquire(ctx); err != nil {
		if errors.Is(err, ErrTooManyValidations) {
			validationsRejected.Inc()
		}
		return Result{}, err
	}
	defer s.limiter.Release()
	validationsInFlight.Inc()
	defer validationsInFlight.Dec()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	format := FormatOf(src.Name())
	log := logging.WithFields(ctx,
		"run_id", uuid.NewString(),
		"file", src.Name(),
		"format", format,
	)
	if ip := ClientIPFromContext(ctx); ip != "" {
		log = log.With("client_ip", ip)
	}
	if ua := UserAgentFromContext(ctx); ua != "" {
		log = log.With("user_agent", ua)
	}

	start := time.Now()
	res, err := s.engine.Validate(ctx, src, sch)
	elapsed := time.Since(start)
	if err != nil {
		recordError(format)
		log.Warn("validation aborted", "error", err, "duration", elapsed)
		return Result{}, err
	}

	recordResult(format, res, elapsed.Seconds())
	log.Info("validation finished",
		"success", res.Success,
		"problems", res.Problems(),
		"duration", elapsed,
	)
	return res, nil
}

// acquire takes a validation slot, skipping the wait timer when one is free.
func (s *Service) acquire(ctx context.Context) error {
	if s.limiter.TryAcquire() {
		return nil
	}
	logging.FromContext(ctx).Debug("waiting for a validation slot",
		"active", s.limiter.ActiveCount(),
		"max_concurrent", s.limiter.MaxConcurrent(),
	)
	return s.limiter.Acquire(ctx)
}

// ValidateBatch validates independent files against one schema, at most
// parallelism at a time (the configured BatchParallelism when <= 0). Results are
// in the order of sources. The first error cancels the rest of the batch.
func (s *Service) ValidateBatch(ctx context.Context, sch *schema.Schema, sources []Source, parallelism int) ([]Result, error) {
	if sch == nil {
		return nil, ErrMissingSchema
	}
	if parallelism <= 0 {
		parallelism = max(s.cfg.BatchParallelism, 1)
	}

	results := make([]Result, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, src := range sources {
		g.Go(func() error {
			res, err := s.ValidateWith(gctx, sch, src)
			if err != nil {
				name := "<nil>"
				if src != nil {
					name = src.Name()
				}
				return fmt.Errorf("%s: %w", name, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SourcesInDir returns a Source for every .xlsx, .xls and .csv file directly
// inside dir, sorted by name.
func SourcesInDir(dir string) ([]Source, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var names []string
	for _, f := range files {
		if !f.IsDir() && FormatOf(f.Name()) != FormatUnsupported {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)

	sources := make([]Source, len(names))
	for i, name := range names {
		sources[i] = FileSource(filepath.Join(dir, name))
	}
	return sources, nil
}

// ListSchemas returns the stored schema entries.
func (s *Service) ListSchemas(ctx context.Context) ([]store.Entry, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.List(ctx)
}

// GetSchemaDocument returns a stored document as written.
func (s *Service) GetSchemaDocument(ctx context.Context, id string) (store.Document, error) {
	if s.store == nil {
		return store.Document{}, ErrNoStore
	}
	return s.store.Get(ctx, id)
}

// GetSchema loads and parses a stored schema.
func (s *Service) GetSchema(ctx context.Context, id string) (*schema.Schema, error) {
	doc, err := s.GetSchemaDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	sch, err := doc.Schema()
	if err != nil {
		return nil, fmt.Errorf("stored schema %s: %w", id, err)
	}
	return sch, nil
}

// SaveSchema parses data and stores it under name. Documents that do not parse
// are rejected with the parse error and nothing is written.
func (s *Service) SaveSchema(ctx context.Context, name string, data []byte) (store.Entry, error) {
	if s.store == nil {
		return store.Entry{}, ErrNoStore
	}
	name, err := store.CleanName(name)
	if err != nil {
		return store.Entry{}, err
	}

	doc := store.Document{Entry: store.Entry{Name: name}, Data: data}
	if _, err := doc.Schema(); err != nil {
		return store.Entry{}, err
	}

	entry, err := s.store.Put(ctx, name, data)
	if err != nil {
		return store.Entry{}, err
	}
	logging.FromContext(ctx).Info("schema saved", "id", entry.ID, "name", entry.Name)
	return entry, nil
}

// DeleteSchema removes a stored schema.
func (s *Service) DeleteSchema(ctx context.Context, id string) error {
	if s.store == nil {
		return ErrNoStore
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("schema deleted", "id", id)
	return nil
}
