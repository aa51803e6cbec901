package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/print-hub-api/internal/models"
	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
	"github.com/noah-isme/print-hub-api/pkg/scanner"
	"github.com/noah-isme/print-hub-api/pkg/storage"
)

// blobWriter is the subset of the blob store used by ingestion.
type blobWriter interface {
	Put(r io.Reader, originalName string) (storage.BlobInfo, error)
	Delete(key string) (bool, error)
}

// IngestionConfig bounds what uploads are accepted.
type IngestionConfig struct {
	AllowedExtensions []string
	MaxFileSize       int64
	ScanTimeout       time.Duration
}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// IngestionService validates, scans and stores uploads.
type IngestionService struct {
	blobs   blobWriter
	scanner scanner.Scanner
	metrics *MetricsService
	logger  *zap.Logger
	allowed map[string]struct{}
	maxSize int64
	timeout time.Duration
}

// NewIngestionService constructs an IngestionService.
func NewIngestionService(blobs blobWriter, sc scanner.Scanner, metrics *MetricsService, logger *zap.Logger, cfg IngestionConfig) *IngestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sc == nil {
		sc = scanner.Noop{}
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 25 * 1024 * 1024
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = 10 * time.Second
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.TrimPrefix(strings.ToLower(ext), ".")] = struct{}{}
	}
	return &IngestionService{
		blobs:   blobs,
		scanner: sc,
		metrics: metrics,
		logger:  logger,
		allowed: allowed,
		maxSize: cfg.MaxFileSize,
		timeout: cfg.ScanTimeout,
	}
}

// MaxFileSize is the largest accepted upload in bytes.
func (s *IngestionService) MaxFileSize() int64 {
	return s.maxSize
}

// Ingest runs the upload through type, size and malware checks and stores it.
// On success exactly one blob exists; on any error none does.
func (s *IngestionService) Ingest(ctx context.Context, upload Upload) (*models.FileReference, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(upload.Filename)), ".")
	if _, ok := s.allowed[ext]; !ok || ext == "" {
		s.metrics.IngestionRejected("unsupported_type")
		return nil, appErrors.Clone(appErrors.ErrUnsupportedType, fmt.Sprintf("file type %q is not allowed", ext))
	}
	if upload.Size > s.maxSize {
		s.metrics.IngestionRejected("too_large")
		return nil, appErrors.Clone(appErrors.ErrTooLarge, fmt.Sprintf("file exceeds the maximum allowed size of %d MB", s.maxSize/(1024*1024)))
	}
	if upload.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}

	if err := s.scan(ctx, upload); err != nil {
		return nil, err
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to rewind upload")
	}

	// Size is re-checked on the stream in case the declared size understated it.
	limited := &io.LimitedReader{R: upload.Content, N: s.maxSize + 1}
	info, err := s.blobs.Put(limited, upload.Filename)
	if err != nil {
		s.metrics.IngestionRejected("storage")
		s.logger.Error("failed to store upload", zap.String("filename", upload.Filename), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, appErrors.ErrStorage.Message)
	}
	if info.Size > s.maxSize {
		s.discard(info.Key)
		s.metrics.IngestionRejected("too_large")
		return nil, appErrors.Clone(appErrors.ErrTooLarge, fmt.Sprintf("file exceeds the maximum allowed size of %d MB", s.maxSize/(1024*1024)))
	}

	return &models.FileReference{
		Key:          info.Key,
		OriginalName: upload.Filename,
		Size:         info.Size,
		MimeType:     upload.MimeType,
	}, nil
}

type scanResult struct {
	verdict scanner.Verdict
	err     error
}

// scan bounds the scanner by the configured timeout even when it ignores ctx.
// A scanner still running after the deadline is cut off from the upload before it is stored.
func (s *IngestionService) scan(ctx context.Context, upload Upload) error {
	scanCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	guarded := &detachableReader{r: upload.Content}
	done := make(chan scanResult, 1)
	go func() {
		verdict, err := s.scanner.Scan(scanCtx, guarded)
		done <- scanResult{verdict: verdict, err: err}
	}()

	var res scanResult
	select {
	case res = <-done:
	case <-scanCtx.Done():
		guarded.detach()
		res = scanResult{err: scanCtx.Err()}
	}

	if res.err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		s.metrics.ScannerUnavailable()
		s.logger.Warn("malware scan unavailable, accepting upload unscanned", zap.String("filename", upload.Filename), zap.Error(res.err))
		return nil
	}
	if !res.verdict.Clean {
		s.metrics.IngestionRejected("malware")
		s.logger.Warn("malware detected in upload", zap.String("filename", upload.Filename), zap.String("signature", res.verdict.Signature))
		return appErrors.ErrMalware
	}
	return nil
}

// detachableReader stops serving reads once detached, so an abandoned scan cannot
// race the rewind and store that follow it.
type detachableReader struct {
	mu       sync.Mutex
	r        io.Reader
	detached bool
}

func (d *detachableReader) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detached {
		return 0, errScanAbandoned
	}
	return d.r.Read(p)
}

func (d *detachableReader) detach() {
	d.mu.Lock()
	d.detached = true
	d.mu.Unlock()
}

var errScanAbandoned = errors.New("scan abandoned after timeout")

// discard removes a blob written by a rejected upload.
func (s *IngestionService) discard(key string) {
	if _, err := s.blobs.Delete(key); err != nil {
		s.logger.Error("failed to discard rejected upload", zap.String("key", key), zap.Error(err))
	}
}
