package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
	"github.com/noah-isme/print-hub-api/pkg/scanner"
	"github.com/noah-isme/print-hub-api/pkg/storage"
)

type stubScanner struct {
	verdict scanner.Verdict
	err     error
	block   bool
	seen    []byte
}

func (s *stubScanner) Scan(ctx context.Context, r io.Reader) (scanner.Verdict, error) {
	if s.block {
		<-ctx.Done()
		return scanner.Verdict{}, ctx.Err()
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return scanner.Verdict{}, err
	}
	s.seen = data
	return s.verdict, s.err
}

type failingBlobWriter struct{}

func (failingBlobWriter) Put(io.Reader, string) (storage.BlobInfo, error) {
	return storage.BlobInfo{}, errors.New("disk full")
}

func (failingBlobWriter) Delete(string) (bool, error) { return false, nil }

func newIngestionFixture(t *testing.T, sc scanner.Scanner, maxSize int64) (*IngestionService, *storage.BlobStore) {
	t.Helper()
	store, err := storage.NewBlobStore(t.TempDir())
	require.NoError(t, err)
	svc := NewIngestionService(store, sc, NewMetricsService(), zap.NewNop(), IngestionConfig{
		AllowedExtensions: []string{"pdf", "docx", "png"},
		MaxFileSize:       maxSize,
		ScanTimeout:       50 * time.Millisecond,
	})
	return svc, store
}

func blobCount(t *testing.T, store *storage.BlobStore) int {
	t.Helper()
	blobs, err := store.List("")
	require.NoError(t, err)
	return len(blobs)
}

func TestIngestStoresCleanUpload(t *testing.T) {
	sc := &stubScanner{verdict: scanner.Verdict{Clean: true}}
	svc, store := newIngestionFixture(t, sc, 1024)
	content := []byte("%PDF-1.4 thesis")

	ref, err := svc.Ingest(context.Background(), Upload{Filename: "Thesis.PDF", Size: int64(len(content)), MimeType: "application/pdf", Content: bytes.NewReader(content)})
	require.NoError(t, err)
	assert.Equal(t, content, sc.seen)
	assert.True(t, strings.HasSuffix(ref.Key, "-Thesis.PDF"))
	assert.Equal(t, int64(len(content)), ref.Size)
	assert.Equal(t, "application/pdf", ref.MimeType)

	require.Equal(t, 1, blobCount(t, store))
	f, _, err := store.Open(ref.Key)
	require.NoError(t, err)
	defer f.Close()
	stored, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, content, stored)
}

func TestIngestRejections(t *testing.T) {
	const maxSize = 30

	cases := []struct {
		name    string
		scanner scanner.Scanner
		upload  Upload
		code    string
	}{
		{
			name:    "unsupported extension",
			scanner: &stubScanner{verdict: scanner.Verdict{Clean: true}},
			upload:  Upload{Filename: "payload.exe", Size: 4, Content: strings.NewReader("MZ..")},
			code:    appErrors.ErrUnsupportedType.Code,
		},
		{
			name:    "missing extension",
			scanner: &stubScanner{verdict: scanner.Verdict{Clean: true}},
			upload:  Upload{Filename: "README", Size: 4, Content: strings.NewReader("text")},
			code:    appErrors.ErrUnsupportedType.Code,
		},
		{
			name:    "declared size too large",
			scanner: &stubScanner{verdict: scanner.Verdict{Clean: true}},
			upload:  Upload{Filename: "big.pdf", Size: maxSize + 1, Content: strings.NewReader(strings.Repeat("a", maxSize+1))},
			code:    appErrors.ErrTooLarge.Code,
		},
		{
			name:    "understated size",
			scanner: &stubScanner{verdict: scanner.Verdict{Clean: true}},
			upload:  Upload{Filename: "sneaky.pdf", Size: 1, Content: strings.NewReader(strings.Repeat("a", maxSize*2))},
			code:    appErrors.ErrTooLarge.Code,
		},
		{
			name:    "malware",
			scanner: &stubScanner{verdict: scanner.Verdict{Clean: false, Signature: "Eicar-Test-Signature"}},
			upload:  Upload{Filename: "eicar.pdf", Size: 4, Content: strings.NewReader("X5O!")},
			code:    appErrors.ErrMalware.Code,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, store := newIngestionFixture(t, tc.scanner, maxSize)
			ref, err := svc.Ingest(context.Background(), tc.upload)
			require.Error(t, err)
			assert.Nil(t, ref)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
			assert.Equal(t, 0, blobCount(t, store))
		})
	}
}

func TestIngestRejectsThirtyMegabytesWithDefaultLimit(t *testing.T) {
	store, err := storage.NewBlobStore(t.TempDir())
	require.NoError(t, err)
	svc := NewIngestionService(store, nil, nil, nil, IngestionConfig{AllowedExtensions: []string{"pdf"}})

	payload := bytes.NewReader(make([]byte, 30*1024*1024))
	_, err = svc.Ingest(context.Background(), Upload{Filename: "scan.pdf", Size: payload.Size(), Content: payload})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTooLarge.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, blobCount(t, store))
}

func TestIngestProceedsWhenScannerUnavailable(t *testing.T) {
	for name, sc := range map[string]*stubScanner{
		"error":   {err: errors.New("connection refused")},
		"timeout": {block: true},
	} {
		t.Run(name, func(t *testing.T) {
			svc, store := newIngestionFixture(t, sc, 1024)
			ref, err := svc.Ingest(context.Background(), Upload{Filename: "notes.docx", Size: 5, Content: strings.NewReader("hello")})
			require.NoError(t, err)
			assert.NotEmpty(t, ref.Key)
			assert.Equal(t, 1, blobCount(t, store))
		})
	}
}

// hungScanner never returns on its own and does not watch ctx.
type hungScanner struct {
	release chan struct{}
}

func (h *hungScanner) Scan(_ context.Context, r io.Reader) (scanner.Verdict, error) {
	<-h.release
	_, err := io.ReadAll(r)
	return scanner.Verdict{Clean: true}, err
}

func TestIngestBoundsScannerThatIgnoresContext(t *testing.T) {
	sc := &hungScanner{release: make(chan struct{})}
	defer close(sc.release)

	metrics := NewMetricsService()
	store, err := storage.NewBlobStore(t.TempDir())
	require.NoError(t, err)
	svc := NewIngestionService(store, sc, metrics, zap.NewNop(), IngestionConfig{
		AllowedExtensions: []string{"pdf"},
		MaxFileSize:       1024,
		ScanTimeout:       100 * time.Millisecond,
	})

	type outcome struct {
		key string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		ref, err := svc.Ingest(context.Background(), Upload{Filename: "thesis.pdf", Size: 9, Content: strings.NewReader("%PDF-1.7\n")})
		if err != nil {
			done <- outcome{err: err}
			return
		}
		done <- outcome{key: ref.Key}
	}()

	select {
	case got := <-done:
		require.NoError(t, got.err)
		assert.NotEmpty(t, got.key)
		assert.Equal(t, 1, blobCount(t, store))
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.scannerUnavailable))
	case <-time.After(2 * time.Second):
		t.Fatal("ingest still blocked long after the scan timeout")
	}
}

func TestIngestStorageFailure(t *testing.T) {
	svc := NewIngestionService(failingBlobWriter{}, scanner.Noop{}, nil, nil, IngestionConfig{AllowedExtensions: []string{"pdf"}})

	_, err := svc.Ingest(context.Background(), Upload{Filename: "a.pdf", Size: 3, Content: strings.NewReader("pdf")})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrStorage.Code, appErr.Code)
	assert.Equal(t, 503, appErr.Status)
}
